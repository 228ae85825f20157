package framer

import (
	"testing"

	"github.com/djtremolo/thermit/internal/crc"
)

func buildFrame(t *testing.T, body []byte) []byte {
	t.Helper()
	crcVal := crc.Compute(body)
	full := make([]byte, len(body)+2)
	copy(full, body)
	full[len(body)] = byte(crcVal & 0xFF)
	full[len(body)+1] = byte(crcVal >> 8)
	return Wrap(full)
}

func TestFollowValidFrame(t *testing.T) {
	body := []byte{0x04, 0xFF, 0xFF, 0xFF, 0x00, 0x03, 'a', 'b', 'c'}
	wire := buildFrame(t, body)

	f := New(crc.Compute)
	for _, b := range wire {
		f.Follow(b)
	}

	if !f.IsReady() {
		t.Fatalf("framer did not finish on a valid frame")
	}
	if string(f.Body()) != string(body) {
		t.Fatalf("Body() = %v, want %v", f.Body(), body)
	}
	if f.CRCErrors() != 0 {
		t.Fatalf("CRCErrors() = %d, want 0", f.CRCErrors())
	}
}

func TestFollowMaxPayloadInclusive(t *testing.T) {
	payload := make([]byte, PayloadMax)
	for i := range payload {
		payload[i] = byte(i)
	}
	body := append([]byte{0x04, 0xFF, 0xFF, 0xFF, 0x00, byte(len(payload))}, payload...)
	wire := buildFrame(t, body)

	f := New(crc.Compute)
	for _, b := range wire {
		f.Follow(b)
	}

	if !f.IsReady() {
		t.Fatalf("framer should accept PLEN == PayloadMax (%d)", PayloadMax)
	}
	if f.PayloadLen() != PayloadMax {
		t.Fatalf("PayloadLen() = %d, want %d", f.PayloadLen(), PayloadMax)
	}
}

func TestFollowRestartsOnOversizedLen(t *testing.T) {
	f := New(crc.Compute)
	f.Follow(StartChar)
	f.Follow(StartChar)
	for i := 0; i < 5; i++ {
		f.Follow(0x00)
	}
	f.Follow(PayloadMax + 1)

	if f.IsReady() {
		t.Fatalf("framer should not finish after an oversized PLEN")
	}

	// The framer must have reset to StateStart, not gotten stuck: feed a
	// fresh valid frame and confirm it still recognizes it.
	body := []byte{0x04, 0xFF, 0xFF, 0xFF, 0x00, 0x00}
	wire := buildFrame(t, body)
	for _, b := range wire {
		f.Follow(b)
	}
	if !f.IsReady() {
		t.Fatalf("framer did not recover after an oversized-PLEN restart")
	}
}

func TestFollowDetectsCRCCorruption(t *testing.T) {
	body := []byte{0x04, 0xFF, 0xFF, 0xFF, 0x00, 0x02, 'h', 'i'}
	wire := buildFrame(t, body)
	wire[len(wire)-4] ^= 0xFF // invert every bit of the CRC_lo byte

	f := New(crc.Compute)
	for _, b := range wire {
		f.Follow(b)
	}

	if f.IsReady() {
		t.Fatalf("framer should not finish on a corrupted CRC")
	}
	if f.CRCErrors() != 1 {
		t.Fatalf("CRCErrors() = %d, want 1", f.CRCErrors())
	}
}

func TestFollowZeroLengthPayload(t *testing.T) {
	body := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0x00}
	wire := buildFrame(t, body)

	f := New(crc.Compute)
	for _, b := range wire {
		f.Follow(b)
	}

	if !f.IsReady() {
		t.Fatalf("framer did not finish on a zero-payload frame")
	}
	if f.PayloadLen() != 0 {
		t.Fatalf("PayloadLen() = %d, want 0", f.PayloadLen())
	}
}

func TestFollowResetsAfterConsumedFrame(t *testing.T) {
	body := []byte{0x04, 0xFF, 0xFF, 0xFF, 0x00, 0x00}
	wire := buildFrame(t, body)

	f := New(crc.Compute)
	for _, b := range wire {
		f.Follow(b)
	}
	if !f.IsReady() {
		t.Fatalf("setup: first frame did not finish")
	}

	// Feeding the next frame's bytes must discard the finished one and
	// start fresh rather than appending onto stale state.
	for _, b := range wire {
		f.Follow(b)
	}
	if !f.IsReady() {
		t.Fatalf("framer did not recognize a second identical frame after the first")
	}
}

func TestWrapAddsSentinels(t *testing.T) {
	body := []byte{1, 2, 3}
	wrapped := Wrap(body)
	if len(wrapped) != len(body)+4 {
		t.Fatalf("Wrap length = %d, want %d", len(wrapped), len(body)+4)
	}
	if wrapped[0] != StartChar || wrapped[1] != StartChar {
		t.Fatalf("Wrap did not prefix two start sentinels")
	}
	if wrapped[len(wrapped)-1] != StopChar || wrapped[len(wrapped)-2] != StopChar {
		t.Fatalf("Wrap did not suffix two stop sentinels")
	}
}
