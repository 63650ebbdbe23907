// Package avc decodes the AVCDecoderConfigurationRecord carried in FLV
// AVC sequence header tags (ISO/IEC 14496-15 §5.2.4.1).
//
// Grounded on bugVanisher-streamer's media/codec/h264parser.AVCDecoderConfRecord
// and its Unmarshal method, restructured around media/bits.Reader and
// media/codec/h264.ParseSPS instead of the teacher's GolombBitReader.
package avc

import (
	"github.com/pkg/errors"

	"github.com/flowmux/ingestcore/media/codec/h264"
)

// ErrTooShort is returned when the record is truncated before its declared
// SPS/PPS counts can be honored.
var ErrTooShort = errors.New("avc: decoder configuration record too short")

// Record is the decoded subset of an AVCDecoderConfigurationRecord. SPS and
// PPS hold only the first entry of each (a stream with multiple SPS/PPS is
// vanishingly rare in FLV and the extra entries carry no metadata this
// pipeline needs). Both slices are owned copies, independent of the input
// buffer.
type Record struct {
	ConfigurationVersion uint8
	ProfileIDC           uint8
	ProfileCompatibility uint8
	LevelIDC             uint8
	LengthSizeMinusOne   uint8
	SPS                  []byte
	PPS                  []byte
	SPSInfo              h264.SPSInfo
}

// Parse decodes an AVCDecoderConfigurationRecord. It returns ErrTooShort if
// the buffer ends before the declared SPS/PPS lists are fully present; a
// record with zero SPS or PPS entries is accepted (SPSInfo is left zero).
func Parse(b []byte) (Record, error) {
	var rec Record
	if len(b) < 6 {
		return rec, ErrTooShort
	}
	rec.ConfigurationVersion = b[0]
	rec.ProfileIDC = b[1]
	rec.ProfileCompatibility = b[2]
	rec.LevelIDC = b[3]
	rec.LengthSizeMinusOne = b[4] & 0x03

	numSPS := int(b[5] & 0x1f)
	off := 6
	for i := 0; i < numSPS; i++ {
		if off+2 > len(b) {
			return rec, ErrTooShort
		}
		length := int(b[off])<<8 | int(b[off+1])
		off += 2
		if off+length > len(b) {
			return rec, ErrTooShort
		}
		if i == 0 {
			rec.SPS = append([]byte(nil), b[off:off+length]...)
			rbsp := h264.EBSPToRBSP(rec.SPS)
			rec.SPSInfo = h264.ParseSPS(rbsp)
		}
		off += length
	}

	if off >= len(b) {
		return rec, ErrTooShort
	}
	numPPS := int(b[off])
	off++
	for i := 0; i < numPPS; i++ {
		if off+2 > len(b) {
			return rec, ErrTooShort
		}
		length := int(b[off])<<8 | int(b[off+1])
		off += 2
		if off+length > len(b) {
			return rec, ErrTooShort
		}
		if i == 0 {
			rec.PPS = append([]byte(nil), b[off:off+length]...)
		}
		off += length
	}

	return rec, nil
}

// CodecString renders the "avc1.<profile><level>" MSE codec string,
// hex-encoding profile_idc and level_idc to two lowercase digits each.
func (r Record) CodecString() string {
	const hexDigits = "0123456789abcdef"
	hex := func(v uint8) [2]byte {
		return [2]byte{hexDigits[v>>4], hexDigits[v&0xf]}
	}
	p, l := hex(r.ProfileIDC), hex(r.LevelIDC)
	return "avc1." + string(p[:]) + string(l[:])
}
