package amf

import (
	"reflect"
	"testing"
)

func TestDecodeNumber(t *testing.T) {
	b := []byte{0x00, 0x40, 0x09, 0x21, 0xfb, 0x54, 0x44, 0x2d, 0x18} // pi
	v, n, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if n != 9 {
		t.Fatalf("consumed = %d; want 9", n)
	}
	f, ok := v.(float64)
	if !ok || f < 3.14159 || f > 3.14160 {
		t.Fatalf("v = %v; want pi", v)
	}
}

func TestDecodeStringAndBoolean(t *testing.T) {
	b := []byte{0x02, 0x00, 0x02, 'h', 'i'}
	v, n, err := Decode(b)
	if err != nil || v != "hi" || n != 5 {
		t.Fatalf("Decode() = %v, %d, %v; want hi, 5, nil", v, n, err)
	}

	b2 := []byte{0x01, 0x01}
	v2, n2, err := Decode(b2)
	if err != nil || v2 != true || n2 != 2 {
		t.Fatalf("Decode() = %v, %d, %v; want true, 2, nil", v2, n2, err)
	}
}

func TestDecodeObject(t *testing.T) {
	// { "width": 1920.0 }
	b := []byte{0x03,
		0x00, 0x05, 'w', 'i', 'd', 't', 'h',
		0x00, 0x40, 0x9e, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // 1920.0
		0x00, 0x00, 0x09,
	}
	v, n, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if n != len(b) {
		t.Fatalf("consumed = %d; want %d", n, len(b))
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		t.Fatalf("v = %v (%T); want map", v, v)
	}
	if m["width"] != 1920.0 {
		t.Fatalf("width = %v; want 1920.0", m["width"])
	}
}

func TestDecodeStrictArray(t *testing.T) {
	b := []byte{0x0a, 0x00, 0x00, 0x00, 0x02,
		0x01, 0x01, // true
		0x01, 0x00, // false
	}
	v, n, err := Decode(b)
	if err != nil || n != len(b) {
		t.Fatalf("Decode() = %v, %d, %v", v, n, err)
	}
	want := []interface{}{true, false}
	if !reflect.DeepEqual(v, want) {
		t.Fatalf("v = %v; want %v", v, want)
	}
}

func TestDecodeNullUndefined(t *testing.T) {
	v, n, err := Decode([]byte{0x05})
	if err != nil || n != 1 {
		t.Fatalf("Decode(null) = %v, %d, %v", v, n, err)
	}
	if _, ok := v.(Null); !ok {
		t.Fatalf("v = %T; want Null", v)
	}

	v2, n2, err := Decode([]byte{0x06})
	if err != nil || n2 != 1 {
		t.Fatalf("Decode(undefined) = %v, %d, %v", v2, n2, err)
	}
	if _, ok := v2.(Undefined); !ok {
		t.Fatalf("v = %T; want Undefined", v2)
	}
}

func TestDecodeTruncated(t *testing.T) {
	if _, _, err := Decode([]byte{0x00, 0x01}); err != ErrTruncated {
		t.Fatalf("err = %v; want ErrTruncated", err)
	}
}

func TestDecodeUnsupportedMarker(t *testing.T) {
	if _, _, err := Decode([]byte{0xff}); err == nil {
		t.Fatalf("expected error for unsupported marker")
	}
}
