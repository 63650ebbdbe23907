// Package h264 implements the byte-accurate pieces of an H.264 elementary
// stream needed to derive playback metadata from an SPS: emulation
// prevention removal and the SPS/VUI parser itself.
//
// Grounded on bugVanisher-streamer's media/codec/h264parser package (the
// RemoveH264orH265EmulationBytes / ParseSPS / parseVuiParameters trio),
// restructured around media/bits's positional cursor instead of an
// io.Reader-backed GolombBitReader.
package h264

// NAL unit type values relevant to this package; see ITU-T H.264 Table 7-1.
const (
	NALTypeSlice = 1
	NALTypeIDR   = 5
	NALTypeSEI   = 6
	NALTypeSPS   = 7
	NALTypePPS   = 8
	NALTypeAUD   = 9
)

// NALUnitType extracts the nal_unit_type field from a NAL unit's first
// header byte.
func NALUnitType(firstByte byte) int {
	return int(firstByte & 0x1f)
}

// IsSliceNAL reports whether typ identifies a coded slice (VCL) NAL unit.
func IsSliceNAL(typ int) bool {
	return typ >= 1 && typ <= 5
}

// EBSPToRBSP strips H.264 emulation-prevention bytes: every 0x03 that
// follows the two-byte sequence 0x00 0x00 is removed. The result is never
// longer than the input.
func EBSPToRBSP(b []byte) []byte {
	out := make([]byte, 0, len(b))
	i := 0
	for i < len(b) {
		if i+2 < len(b) && b[i] == 0x00 && b[i+1] == 0x00 && b[i+2] == 0x03 {
			out = append(out, 0x00, 0x00)
			i += 3
			continue
		}
		out = append(out, b[i])
		i++
	}
	return out
}
