package utils

import (
	"encoding/binary"
	"runtime"
	"time"
)

// PanicRecoverWithInfo recovers from a panic and returns the formatted
// stack trace alongside the recovered value, for callers that want to log
// both (see main.go).
func PanicRecoverWithInfo() (recovered interface{}, stack string) {
	if r := recover(); r != nil {
		const size = 64 << 10
		buf := make([]byte, size)
		buf = buf[:runtime.Stack(buf, false)]
		return r, string(buf)
	}
	return nil, ""
}

// TimeNowMillisecond returns the current wall clock time as Unix
// milliseconds, used as the frame-rate sampler's fallback clock when a
// video tag carries no SEI timestamp message (payload type 242).
func TimeNowMillisecond() uint64 {
	return uint64(time.Now().UnixNano() / int64(time.Millisecond))
}

// Uint24BE decodes a 3-byte big-endian unsigned integer, the width FLV
// uses for tag data size, timestamp-low and stream ID fields.
func Uint24BE(buf []byte) uint32 {
	return uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2])
}

// BytesToUint32 decodes a 4-byte big-endian unsigned integer, the width
// FLV uses for its header's dataOffset field.
func BytesToUint32(buf []byte) uint32 {
	return binary.BigEndian.Uint32(buf)
}
