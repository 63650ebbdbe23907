package h264

import "testing"

func buildSEITimestampNAL(ts uint64) []byte {
	nal := []byte{0x06} // forbidden_zero_bit=0, nal_ref_idc=0, type=6 (SEI)
	nal = append(nal, 242, 8)
	for i := 7; i >= 0; i-- {
		nal = append(nal, byte(ts>>(8*uint(i))))
	}
	return nal
}

func TestParseSEITimestamp(t *testing.T) {
	nal := buildSEITimestampNAL(1234567890)
	ts, ok := ParseSEITimestamp(nal)
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if ts != 1234567890 {
		t.Fatalf("ts = %d; want 1234567890", ts)
	}
}

func TestParseSEITimestampWrongType(t *testing.T) {
	nal := []byte{0x01, 242, 8, 0, 0, 0, 0, 0, 0, 0, 1} // slice NAL, not SEI
	if _, ok := ParseSEITimestamp(nal); ok {
		t.Fatalf("expected ok=false for non-SEI NAL")
	}
}

func TestParseSEITimestampOtherPayload(t *testing.T) {
	nal := []byte{0x06, 5, 16}
	nal = append(nal, make([]byte, 16)...)
	if _, ok := ParseSEITimestamp(nal); ok {
		t.Fatalf("expected ok=false for payload_type 5")
	}
}
