// Package flv implements an incremental demultiplexer for the FLV
// container: header validation, tag framing recovery across arbitrary
// byte-range chunks, audio/video/script dispatch, and media-info
// consolidation.
//
// Grounded on bugVanisher-streamer's media/container/flv package (the
// teacher's pull-based, io.Reader-backed Demuxer) and its slice_test.go
// fixture style; restructured around a push/callback model since the
// target protocol hands the demuxer byte ranges rather than an io.Reader.
package flv

import "github.com/flowmux/ingestcore/utils"

// Track kinds.
const (
	TrackAudio = "audio"
	TrackVideo = "video"
)

// Track identifies one of the demuxer's two output tracks. A Demuxer
// holds exactly one audio and one video Track for its whole lifetime;
// SequenceNumber increments on every onData delivered for that track.
type Track struct {
	Kind           string
	ID             int
	SequenceNumber int64
}

// FLV tag type markers (ISO FLV 1.0 §E.4.1).
const (
	tagTypeAudio  = 8
	tagTypeVideo  = 9
	tagTypeScript = 18
)

// flvHeaderSize is the fixed 9-byte FLV file header.
const flvHeaderSize = 9

// tagHeaderSize is the fixed 11-byte tag header that follows every
// previousTagSize field.
const tagHeaderSize = 11

// previousTagSizeLen is the size of the 4-byte field preceding every tag
// (including the lone previousTagSize0 after the file header).
const previousTagSizeLen = 4

type tagHeader struct {
	tagType   uint8
	dataSize  int
	timestamp int32
	streamID  uint32
}

// parseTagHeader decodes the 11-byte tag header at the start of b.
// b must have length >= tagHeaderSize.
func parseTagHeader(b []byte) tagHeader {
	tagType := b[0] & 0x1f
	dataSize := int(utils.Uint24BE(b[1:4]))
	timestampLow := utils.Uint24BE(b[4:7])
	timestampExt := uint32(b[7])
	timestamp := int32(timestampExt<<24 | timestampLow)
	streamID := utils.Uint24BE(b[8:11])
	return tagHeader{tagType: tagType, dataSize: dataSize, timestamp: timestamp, streamID: streamID}
}

// signExtendCompositionTime converts a 24-bit two's-complement
// composition_time field into a signed 32-bit value, per §3/§8.6.
func signExtendCompositionTime(ct uint32) int32 {
	return int32((ct + 0xFF800000) ^ 0xFF800000)
}
