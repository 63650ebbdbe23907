package h264

import "encoding/binary"

// seiTimestampPayloadType is the payload_type this pipeline recognizes as
// carrying an 8-byte big-endian wall-clock timestamp, mirroring
// bugVanisher-streamer's h264parser.ParseSEI PayloadType==242 branch.
const seiTimestampPayloadType = 242

// ParseSEITimestamp scans one SEI NAL unit (including its 1-byte NAL
// header) for a payload_type 242, payload_size 8 message and returns its
// embedded timestamp. It reports ok=false for any other SEI content,
// including the generic user-data (payload_type 5) message this pipeline
// has no use for.
func ParseSEITimestamp(nal []byte) (ts uint64, ok bool) {
	if len(nal) < 1 || NALUnitType(nal[0]) != NALTypeSEI {
		return 0, false
	}
	rbsp := EBSPToRBSP(nal[1:])

	payloadType := 0
	i := 0
	for i < len(rbsp) && rbsp[i] == 0xff {
		payloadType += 0xff
		i++
	}
	if i >= len(rbsp) {
		return 0, false
	}
	payloadType += int(rbsp[i])
	i++

	payloadSize := 0
	for i < len(rbsp) && rbsp[i] == 0xff {
		payloadSize += 0xff
		i++
	}
	if i >= len(rbsp) {
		return 0, false
	}
	payloadSize += int(rbsp[i])
	i++

	if payloadType != seiTimestampPayloadType || payloadSize != 8 || i+8 > len(rbsp) {
		return 0, false
	}
	return binary.BigEndian.Uint64(rbsp[i : i+8]), true
}
