package wire

import (
	"bytes"
	"testing"
)

func TestCursorPutGetRoundTrip(t *testing.T) {
	buf := make([]byte, 8)
	c := NewCursor(buf)

	if err := c.PutU8(0x42); err != nil {
		t.Fatalf("PutU8: %v", err)
	}
	if err := c.PutU16(0xBEEF); err != nil {
		t.Fatalf("PutU16: %v", err)
	}
	if err := c.PutBytes([]byte{1, 2, 3}); err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	if err := c.PutU8(0x99); err != nil {
		t.Fatalf("PutU8: %v", err)
	}

	if c.Pos() != 7 {
		t.Fatalf("Pos() = %d, want 7", c.Pos())
	}

	r := NewCursor(buf)
	u8, err := r.GetU8()
	if err != nil || u8 != 0x42 {
		t.Fatalf("GetU8() = %v, %v, want 0x42, nil", u8, err)
	}
	u16, err := r.GetU16()
	if err != nil || u16 != 0xBEEF {
		t.Fatalf("GetU16() = 0x%04x, %v, want 0xBEEF, nil", u16, err)
	}
	raw, err := r.GetBytes(3)
	if err != nil || !bytes.Equal(raw, []byte{1, 2, 3}) {
		t.Fatalf("GetBytes(3) = %v, %v, want [1 2 3], nil", raw, err)
	}
	last, err := r.GetU8()
	if err != nil || last != 0x99 {
		t.Fatalf("GetU8() = %v, %v, want 0x99, nil", last, err)
	}
}

func TestCursorU16LittleEndian(t *testing.T) {
	buf := make([]byte, 2)
	c := NewCursor(buf)
	_ = c.PutU16(0x1234)
	if buf[0] != 0x34 || buf[1] != 0x12 {
		t.Fatalf("PutU16(0x1234) wrote %02x %02x, want 34 12 (little-endian)", buf[0], buf[1])
	}
}

func TestCursorOutOfBounds(t *testing.T) {
	buf := make([]byte, 1)
	c := NewCursor(buf)
	if err := c.PutU16(0x0001); err == nil {
		t.Fatal("PutU16 into a 1-byte buffer should have failed")
	}

	r := NewCursor(buf)
	_, _ = r.GetU8()
	if _, err := r.GetU8(); err == nil {
		t.Fatal("GetU8 past the end of a 1-byte buffer should have failed")
	}
}

func TestCursorRemainingAndBytes(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	c := NewCursor(buf)
	_, _ = c.GetU8()
	_, _ = c.GetU8()

	if !bytes.Equal(c.Bytes(), []byte{1, 2}) {
		t.Fatalf("Bytes() = %v, want [1 2]", c.Bytes())
	}
	if !bytes.Equal(c.Remaining(), []byte{3, 4}) {
		t.Fatalf("Remaining() = %v, want [3 4]", c.Remaining())
	}
}
