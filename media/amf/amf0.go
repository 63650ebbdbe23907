// Package amf decodes AMF0-encoded values (Adobe AMF0 specification),
// the tagged-union wire format FLV onMetaData script tags carry.
//
// Grounded on bugVanisher-streamer's media/protocol/rtmp package, which
// decodes AMF0 command/metadata objects off the wire in the same style
// (byte-at-a-time, marker-dispatched); rebuilt here as a standalone
// decoder, depending only on github.com/pkg/errors, since the teacher's
// amf.go lives outside the retrieval pack.
package amf

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/pkg/errors"
)

// AMF0 type markers.
const (
	markerNumber      = 0x00
	markerBoolean     = 0x01
	markerString      = 0x02
	markerObject      = 0x03
	markerNull        = 0x05
	markerUndefined   = 0x06
	markerECMAArray   = 0x08
	markerObjectEnd   = 0x09
	markerStrictArray = 0x0a
	markerDate        = 0x0b
	markerLongString  = 0x0c
)

// ErrTruncated is returned when a value's encoding runs past the end of
// the buffer.
var ErrTruncated = errors.New("amf: truncated value")

// ErrUnsupportedMarker is returned for a marker byte this decoder does not
// implement (reference, XML document, typed object, avmplus).
var ErrUnsupportedMarker = errors.New("amf: unsupported marker")

// Undefined is the decoded Go value for the AMF0 "undefined" marker.
type Undefined struct{}

// Null is the decoded Go value for the AMF0 "null" marker.
type Null struct{}

// Date is the decoded Go value for the AMF0 "date" marker: milliseconds
// since epoch plus the encoded (and otherwise unused) timezone offset.
type Date struct {
	Time           time.Time
	TimezoneOffset int16
}

// Decode reads a single AMF0-encoded value from the start of data and
// returns it along with the number of bytes consumed. Object and ECMA
// array values decode into map[string]interface{}; strict arrays decode
// into []interface{}.
func Decode(data []byte) (interface{}, int, error) {
	if len(data) < 1 {
		return nil, 0, ErrTruncated
	}
	switch data[0] {
	case markerNumber:
		if len(data) < 9 {
			return nil, 0, ErrTruncated
		}
		bits := binary.BigEndian.Uint64(data[1:9])
		return math.Float64frombits(bits), 9, nil

	case markerBoolean:
		if len(data) < 2 {
			return nil, 0, ErrTruncated
		}
		return data[1] != 0, 2, nil

	case markerString:
		s, n, err := decodeShortString(data[1:])
		return s, n + 1, err

	case markerObject:
		m, n, err := decodeObjectBody(data[1:])
		return m, n + 1, err

	case markerNull:
		return Null{}, 1, nil

	case markerUndefined:
		return Undefined{}, 1, nil

	case markerECMAArray:
		if len(data) < 5 {
			return nil, 0, ErrTruncated
		}
		// the declared count is advisory; the object still terminates on
		// the 00 00 09 marker, exactly as a plain object does.
		m, n, err := decodeObjectBody(data[5:])
		return m, n + 5, err

	case markerStrictArray:
		if len(data) < 5 {
			return nil, 0, ErrTruncated
		}
		count := binary.BigEndian.Uint32(data[1:5])
		off := 5
		arr := make([]interface{}, 0, count)
		for i := uint32(0); i < count; i++ {
			if off >= len(data) {
				return nil, 0, ErrTruncated
			}
			v, n, err := Decode(data[off:])
			if err != nil {
				return nil, 0, err
			}
			arr = append(arr, v)
			off += n
		}
		return arr, off, nil

	case markerDate:
		if len(data) < 11 {
			return nil, 0, ErrTruncated
		}
		ms := math.Float64frombits(binary.BigEndian.Uint64(data[1:9]))
		tz := int16(binary.BigEndian.Uint16(data[9:11]))
		return Date{
			Time:           time.UnixMilli(int64(ms)).UTC(),
			TimezoneOffset: tz,
		}, 11, nil

	case markerLongString:
		if len(data) < 5 {
			return nil, 0, ErrTruncated
		}
		length := int(binary.BigEndian.Uint32(data[1:5]))
		if len(data) < 5+length {
			return nil, 0, ErrTruncated
		}
		return string(data[5 : 5+length]), 5 + length, nil

	default:
		return nil, 0, errors.Wrapf(ErrUnsupportedMarker, "marker 0x%02x", data[0])
	}
}

// decodeShortString reads a u16-length-prefixed UTF-8 string (the format
// used both standalone and as every object key).
func decodeShortString(data []byte) (string, int, error) {
	if len(data) < 2 {
		return "", 0, ErrTruncated
	}
	length := int(binary.BigEndian.Uint16(data[0:2]))
	if len(data) < 2+length {
		return "", 0, ErrTruncated
	}
	return string(data[2 : 2+length]), 2 + length, nil
}

// decodeObjectBody reads key/value pairs until the 00 00 09 end marker.
// data must start immediately after the object's own type marker (or
// after the ECMA array's element-count field).
func decodeObjectBody(data []byte) (map[string]interface{}, int, error) {
	m := make(map[string]interface{})
	off := 0
	for {
		if off+3 <= len(data) && data[off] == 0 && data[off+1] == 0 && data[off+2] == markerObjectEnd {
			return m, off + 3, nil
		}
		key, n, err := decodeShortString(data[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n
		if off >= len(data) {
			return nil, 0, ErrTruncated
		}
		val, n, err := Decode(data[off:])
		if err != nil {
			return nil, 0, err
		}
		m[key] = val
		off += n
	}
}
