package flv

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/flowmux/ingestcore/common/errs"
	"github.com/flowmux/ingestcore/media/amf"
	"github.com/flowmux/ingestcore/media/codec/aac"
	"github.com/flowmux/ingestcore/media/codec/avc"
	"github.com/flowmux/ingestcore/media/codec/h264"
	"github.com/flowmux/ingestcore/media/mediainfo"
	"github.com/flowmux/ingestcore/utils"
)

// audioSampleRates is the FLV soundRate index table, §6.
var audioSampleRates = [4]int{5500, 11025, 22050, 44100}

const (
	soundFormatMP3 = 2
	soundFormatAAC = 10

	videoCodecAVC = 7

	aacPacketTypeSequenceHeader = 0
	aacPacketTypeRaw            = 1

	avcPacketTypeSequenceHeader = 0
	avcPacketTypeNALU           = 1
	avcPacketTypeEndOfSequence  = 2

	videoFrameTypeKey     = 1
	videoFrameTypeCommand = 5
)

// Callbacks is the capability record a caller installs on a Demuxer at
// construction. All four slots are optional; a nil slot is simply not
// invoked. Callbacks are called synchronously from ParseChunk and must
// not block.
type Callbacks struct {
	OnData       func(track Track, data []byte, pts, dts int32)
	OnMediaInfo  func(info mediainfo.MediaInfo)
	OnScriptData func(metadata interface{})
	OnTimestamp  func(pts, dts int32)
}

// Demuxer incrementally parses an FLV byte stream delivered in arbitrary
// byte-range chunks via ParseChunk. It is single-use: create, feed
// chunks with monotonically non-decreasing byteStart, then discard. It is
// not reentrant across concurrent calls.
type Demuxer struct {
	cb Callbacks

	headerParsed bool

	audioTrack Track
	videoTrack Track

	agg *mediainfo.Aggregator

	audioDispatched bool
	videoDispatched bool

	haveBeginTime bool
	beginTime     int32
	endTime       int32

	audioBytes int64
	videoBytes int64

	hasKeyFrame bool

	sampler     frameRateSampler
	nalLengthSize int

	nowMillis func() int64
}

// Option configures a Demuxer at construction.
type Option func(*Demuxer)

// WithClock overrides the wall-clock source the frame-rate sampler uses.
// Defaults to utils.TimeNowMillisecond. Exposed for deterministic tests.
func WithClock(now func() int64) Option {
	return func(d *Demuxer) { d.nowMillis = now }
}

// NewDemuxer constructs a Demuxer that invokes cb as it parses.
func NewDemuxer(cb Callbacks, opts ...Option) *Demuxer {
	d := &Demuxer{
		cb:         cb,
		audioTrack: Track{Kind: TrackAudio, ID: 0},
		videoTrack: Track{Kind: TrackVideo, ID: 1},
		agg:        mediainfo.New(),
		nowMillis:  func() int64 { return int64(utils.TimeNowMillisecond()) },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ParseChunk consumes as much of buf as forms complete tags, starting at
// absolute stream offset byteStart. It returns the number of bytes
// consumed; if consumed < len(buf), the caller must resubmit the
// unconsumed tail prepended to subsequent data. A FormatError is returned
// only for an invalid FLV signature; anything else recoverable at the tag
// level is logged and skipped.
func (d *Demuxer) ParseChunk(buf []byte, byteStart int64) (consumed int64, err error) {
	off := 0

	if !d.headerParsed {
		if len(buf) < flvHeaderSize+previousTagSizeLen {
			return 0, nil
		}
		if buf[0] != 'F' || buf[1] != 'L' || buf[2] != 'V' {
			return 0, errors.Wrap(errs.ErrBadFLVSignature, "flv: bad signature")
		}
		flags := buf[4]
		hasVideo := flags&0x01 != 0
		hasAudio := flags&0x04 != 0
		d.agg.SetStreamFlags(hasAudio, hasVideo)
		dataOffset := int(utils.BytesToUint32(buf[5:9]))
		if dataOffset < flvHeaderSize {
			dataOffset = flvHeaderSize
		}
		if len(buf) < dataOffset+previousTagSizeLen {
			return 0, nil
		}
		off = dataOffset + previousTagSizeLen // skip header + previousTagSize0
		d.headerParsed = true
	}

	// off now sits directly at a tag header: the previousTagSize0 field
	// was already consumed above, and every tag's own trailing
	// previousTagSize is consumed as part of advancing past it below, so
	// the next tag header is always reached without a separate read.
	for off+tagHeaderSize <= len(buf) {
		rewindPoint := off
		hdr := parseTagHeader(buf[off : off+tagHeaderSize])
		payloadStart := off + tagHeaderSize
		payloadEnd := payloadStart + hdr.dataSize

		if payloadEnd+previousTagSizeLen > len(buf) {
			// incomplete tag (or its trailing previousTagSize hasn't
			// arrived yet): rewind and let the caller resend from here.
			return int64(rewindPoint), nil
		}

		if hdr.streamID == 0 {
			if !d.haveBeginTime {
				d.haveBeginTime = true
				d.beginTime = hdr.timestamp
			}
			d.endTime = hdr.timestamp

			payload := buf[payloadStart:payloadEnd]
			switch hdr.tagType {
			case tagTypeAudio:
				d.audioBytes += int64(hdr.dataSize)
				d.dispatchAudio(payload, hdr.timestamp)
			case tagTypeVideo:
				d.videoBytes += int64(hdr.dataSize)
				d.dispatchVideo(payload, hdr.timestamp)
			case tagTypeScript:
				d.dispatchScript(payload)
			default:
				log.Warn().Uint8("tagType", hdr.tagType).Msg("flv: unknown tag type, skipping")
			}
		}

		off = payloadEnd + previousTagSizeLen
	}

	d.updateBitrate()

	return int64(off), nil
}

func (d *Demuxer) updateBitrate() {
	if !d.haveBeginTime {
		return
	}
	durationSec := float64(d.endTime-d.beginTime) / 1000.0
	if durationSec <= 0 {
		return
	}
	if d.audioBytes > 0 {
		d.agg.SetAudioDataRate(int(float64(d.audioBytes)*8/durationSec/1000 + 0.5))
	}
	if d.videoBytes > 0 {
		d.agg.SetVideoDataRate(int(float64(d.videoBytes)*8/durationSec/1000 + 0.5))
	}
}

func (d *Demuxer) emit() {
	d.agg.MarkEmitted()
	if d.cb.OnMediaInfo != nil {
		d.cb.OnMediaInfo(d.agg.Snapshot())
	}
}

func (d *Demuxer) dispatchAudio(payload []byte, timestamp int32) {
	if len(payload) < 1 {
		return
	}
	header := payload[0]
	soundFormat := header >> 4
	soundRateIdx := (header >> 2) & 0x03
	soundType := header & 0x01 // 0 = mono, 1 = stereo, for every FLV sound format
	body := payload[1:]

	var codec string
	switch soundFormat {
	case soundFormatAAC:
		codec = "aac"
	case soundFormatMP3:
		codec = "mp3"
	}

	headerChannelCount := int(soundType) + 1

	if codec == "aac" && len(body) >= 1 {
		aacPacketType := body[0]
		body = body[1:]

		sampleRate := audioSampleRates[soundRateIdx]
		channelCount := headerChannelCount
		if aacPacketType == aacPacketTypeSequenceHeader && len(body) > 0 {
			cfg := aac.Parse(body)
			if cfg.SampleRate > 0 {
				sampleRate = cfg.SampleRate
			}
			if cfg.ChannelCount > 0 {
				channelCount = cfg.ChannelCount
			}
		}
		if !d.audioDispatched {
			d.audioDispatched = true
			d.agg.SetAudio(codec, sampleRate, channelCount)
			d.emit()
		}
	}

	if codec == "mp3" && !d.audioDispatched {
		d.audioDispatched = true
		d.agg.SetAudio(codec, audioSampleRates[soundRateIdx], headerChannelCount)
		d.emit()
	}

	if d.cb.OnData != nil {
		d.audioTrack.SequenceNumber++
		d.cb.OnData(d.audioTrack, body, timestamp, timestamp)
	}
}

func (d *Demuxer) dispatchVideo(payload []byte, timestamp int32) {
	if len(payload) < 5 {
		return
	}
	header := payload[0]
	frameType := header >> 4
	codecID := header & 0x0f

	if codecID != videoCodecAVC {
		return
	}
	if frameType == videoFrameTypeCommand {
		return
	}

	avcPacketType := payload[1]
	ct := uint32(payload[2])<<16 | uint32(payload[3])<<8 | uint32(payload[4])
	compositionTime := signExtendCompositionTime(ct)
	body := payload[5:]

	switch avcPacketType {
	case avcPacketTypeSequenceHeader:
		rec, err := avc.Parse(body)
		if err != nil {
			log.Warn().Err(err).Msg("flv: malformed avc decoder configuration record")
			return
		}
		d.agg.SetAVCConfig(rec.ProfileIDC, rec.LevelIDC, rec.SPS, rec.PPS, rec.SPSInfo)
		d.nalLengthSize = int(rec.LengthSizeMinusOne) + 1
		d.videoDispatched = true
		d.emit()

	case avcPacketTypeNALU:
		dts := timestamp
		pts := dts + compositionTime
		if d.cb.OnTimestamp != nil {
			d.cb.OnTimestamp(pts, dts)
		}

		now := d.nowMillis()
		if ts, ok := seiTimestampMillis(body, d.nalLengthSize); ok {
			now = ts
		}
		if fps, ok := d.sampler.Sample(pts, now); ok {
			if d.agg.SetSampledFPS(fps) {
				d.emit()
			}
		}

		if frameType == videoFrameTypeKey {
			d.hasKeyFrame = true
		}

		if d.cb.OnData != nil {
			d.videoTrack.SequenceNumber++
			d.cb.OnData(d.videoTrack, body, pts, dts)
		}

	case avcPacketTypeEndOfSequence:
		// end of sequence, nothing to forward.

	default:
		log.Warn().Uint8("avcPacketType", avcPacketType).Msg("flv: unknown avc packet type")
	}
}

func (d *Demuxer) dispatchScript(payload []byte) {
	_, n, err := amf.Decode(payload)
	if err != nil {
		log.Warn().Err(err).Msg("flv: failed to decode script tag name")
		return
	}
	value, _, err := amf.Decode(payload[n:])
	if err != nil {
		log.Warn().Err(err).Msg("flv: failed to decode script tag value")
		return
	}

	d.agg.SetMetadata(value)
	if m, ok := value.(map[string]interface{}); ok {
		width, hasW := toInt(m["width"])
		height, hasH := toInt(m["height"])
		if hasW && hasH {
			d.agg.SetScriptDimensions(width, height)
		}
		if fps, ok := toFloat(m["framerate"]); ok {
			d.agg.SetScriptFrameRate(fps)
		}
	}

	if d.cb.OnScriptData != nil {
		d.cb.OnScriptData(value)
	}
	d.emit()
}

// seiTimestampMillis scans an AVCC NALU stream (each NAL prefixed by a
// lengthSize-byte big-endian length, per the sequence header's
// lengthSizeMinusOne) for an embedded SEI wall-clock timestamp, giving the
// frame-rate sampler a more accurate "now" than local receipt time when
// the encoder embeds one. lengthSize of 0 means no sequence header has
// been seen yet; the scan is skipped.
func seiTimestampMillis(body []byte, lengthSize int) (int64, bool) {
	if lengthSize <= 0 || lengthSize > 4 {
		return 0, false
	}
	for off := 0; off+lengthSize <= len(body); {
		length := 0
		for i := 0; i < lengthSize; i++ {
			length = length<<8 | int(body[off+i])
		}
		off += lengthSize
		if off+length > len(body) || length < 1 {
			return 0, false
		}
		if ts, ok := h264.ParseSEITimestamp(body[off : off+length]); ok {
			return int64(ts), true
		}
		off += length
	}
	return 0, false
}

func toInt(v interface{}) (int, bool) {
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func toFloat(v interface{}) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

