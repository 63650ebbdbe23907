// Package mediainfo aggregates the evolving description of an FLV stream
// into a single consolidated record, merging updates from script-data
// (onMetaData), the AVC decoder configuration record, the SPS parser, and
// runtime frame-rate sampling.
//
// Grounded on bugVanisher-streamer's protocol/common/info.go, which plays
// the same "single struct the rest of the pipeline fills in piecemeal"
// role for its own stream-info record.
package mediainfo

import (
	"fmt"

	"github.com/flowmux/ingestcore/media/codec/h264"
)

// MediaInfo is the consolidated record handed to onMediaInfo. Fields left
// unset by the stream are their Go zero value; Snapshot fills in the
// defaults from §4.7 only at emission time.
type MediaInfo struct {
	HasAudio bool
	HasVideo bool

	AudioCodec string // "aac", "mp3", or ""
	VideoCodec string // "avc" or ""

	// AudioCodecString and VideoCodecString are the MSE codec strings for
	// the above, e.g. "mp4a.40.2" / "avc1.<profile><level>" (§6).
	AudioCodecString string
	VideoCodecString string

	AudioSampleRate   int
	AudioChannelCount int
	AudioDataRate     int // kbps, rolling
	VideoDataRate     int // kbps, rolling

	Width  int
	Height int

	Profile uint8
	Level   uint8
	SPS     []byte
	PPS     []byte

	ChromaFormat string
	BitDepth     int
	PixFmt       string

	ColorRange  string
	ColorPrimariesName string
	ColorTransferName  string
	ColorSpaceName     string

	ColorPrimariesRaw       uint8
	TransferCharacteristics uint8
	MatrixCoefficients      uint8

	FrameRate float64
	FPS       float64

	Metadata interface{}
}

// Aggregator holds the raw, never-defaulted state of a MediaInfo record
// plus the bookkeeping needed to apply the "don't overwrite SPS-derived
// dimensions with script-data" and "emit at least once" rules.
type Aggregator struct {
	info MediaInfo

	dimsFromSPS     bool
	haveColorimetry bool
	everEmitted     bool
	lastReportedFPS float64
}

// New returns an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{}
}

// SetStreamFlags records the FLV header's hasAudio/hasVideo bits.
func (a *Aggregator) SetStreamFlags(hasAudio, hasVideo bool) {
	a.info.HasAudio = hasAudio
	a.info.HasVideo = hasVideo
}

// SetAudio records the coarse audio description derived from the FLV
// audio tag header (codec name, sample rate, channel count).
func (a *Aggregator) SetAudio(codec string, sampleRate, channelCount int) {
	a.info.AudioCodec = codec
	switch codec {
	case "aac":
		a.info.AudioCodecString = "mp4a.40.2"
	case "mp3":
		a.info.AudioCodecString = "mp4a.6b"
	}
	if sampleRate > 0 {
		a.info.AudioSampleRate = sampleRate
	}
	if channelCount > 0 {
		a.info.AudioChannelCount = channelCount
	}
}

// SetAudioDataRate updates the rolling audio bitrate, in kbps.
func (a *Aggregator) SetAudioDataRate(kbps int) { a.info.AudioDataRate = kbps }

// SetVideoDataRate updates the rolling video bitrate, in kbps.
func (a *Aggregator) SetVideoDataRate(kbps int) { a.info.VideoDataRate = kbps }

// SetAVCConfig records the profile/level/SPS/PPS from an AVC decoder
// configuration record and folds in the SPS's dimensions and colorimetry.
// sps and pps must be owned copies; SPS dimensions always win over any
// prior script-data dimensions (dimsFromSPS is set here so a later
// script-data update will not overwrite them).
func (a *Aggregator) SetAVCConfig(profile, level uint8, sps, pps []byte, info h264.SPSInfo) {
	a.info.VideoCodec = "avc"
	a.info.Profile = profile
	a.info.Level = level
	a.info.SPS = sps
	a.info.PPS = pps
	a.info.VideoCodecString = fmt.Sprintf("avc1.%02x%02x", profile, level)

	if info.Width > 0 && info.Height > 0 {
		a.info.Width = info.Width
		a.info.Height = info.Height
		a.dimsFromSPS = true
	}

	a.info.ChromaFormat = info.ChromaFormat()
	a.info.BitDepth = info.BitDepthLuma()
	a.info.PixFmt = info.PixFmt()

	if info.VUI != nil {
		a.haveColorimetry = true
		if info.VUI.FullRange {
			a.info.ColorRange = "full"
		} else {
			a.info.ColorRange = "limited"
		}
		a.info.ColorPrimariesRaw = info.VUI.ColorPrimaries
		a.info.TransferCharacteristics = info.VUI.TransferCharacteristics
		a.info.MatrixCoefficients = info.VUI.MatrixCoefficients
		a.info.ColorPrimariesName = h264.ColorPrimariesName(info.VUI.ColorPrimaries)
		a.info.ColorTransferName = h264.TransferCharacteristicsName(info.VUI.TransferCharacteristics)
		a.info.ColorSpaceName = h264.MatrixCoefficientsName(info.VUI.MatrixCoefficients)
		if info.VUI.FPS != nil {
			a.info.FrameRate = *info.VUI.FPS
			a.info.FPS = *info.VUI.FPS
		}
	}
}

// SetScriptDimensions applies onMetaData's width/height, but only if the
// SPS has not already supplied them (§4.6.3).
func (a *Aggregator) SetScriptDimensions(width, height int) {
	if a.dimsFromSPS {
		return
	}
	if width > 0 && height > 0 {
		a.info.Width = width
		a.info.Height = height
	}
}

// SetScriptFrameRate applies onMetaData's framerate field.
func (a *Aggregator) SetScriptFrameRate(fps float64) {
	if fps > 0 {
		a.info.FrameRate = fps
		a.info.FPS = fps
	}
}

// SetMetadata stores the decoded onMetaData value verbatim.
func (a *Aggregator) SetMetadata(v interface{}) { a.info.Metadata = v }

// SetSampledFPS applies the frame-rate sampler's latest estimate. It
// returns true the first time a value is recorded, or whenever it differs
// from the last reported value by more than 0.5 fps (§4.6.4) — the
// caller uses this to decide whether to re-emit MediaInfo.
func (a *Aggregator) SetSampledFPS(fps float64) bool {
	significant := a.lastReportedFPS == 0 || abs(fps-a.lastReportedFPS) > 0.5
	a.info.FrameRate = fps
	a.info.FPS = fps
	if significant {
		a.lastReportedFPS = fps
	}
	return significant
}

// MarkEmitted records that a MediaInfo dispatch has happened at least
// once, independent of which event triggered it. The AVC-config,
// audio-sequence-header and script-data paths dispatch unconditionally
// and call this directly; only the frame-rate sampler path is gated, via
// SetSampledFPS's return value.
func (a *Aggregator) MarkEmitted() { a.everEmitted = true }

// Snapshot returns the MediaInfo as it should be handed to onMediaInfo:
// a copy with the §4.7 defaults applied for any field the stream has not
// yet supplied. The stored state itself is never mutated, so a later,
// more precise value can still win.
func (a *Aggregator) Snapshot() MediaInfo {
	out := a.info

	if out.PixFmt == "" {
		out.PixFmt = "yuv420p"
	}
	if out.ColorRange == "" {
		out.ColorRange = "limited"
	}
	if out.ColorSpaceName == "" {
		out.ColorSpaceName = "bt709"
	}
	if out.ColorTransferName == "" {
		out.ColorTransferName = "bt709"
	}
	if out.ColorPrimariesName == "" {
		out.ColorPrimariesName = "bt709"
	}
	if out.ChromaFormat == "" {
		out.ChromaFormat = "4:2:0"
	}
	if out.BitDepth == 0 {
		out.BitDepth = 8
	}
	return out
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
