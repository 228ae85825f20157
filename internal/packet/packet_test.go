package packet

import (
	"bytes"
	"testing"

	"github.com/djtremolo/thermit/internal/crc"
)

func TestBuildParseRoundTrip(t *testing.T) {
	f := &Frame{
		FCode:       FCodeDataTransfer,
		RecFileId:   3,
		RecFeedback: 7,
		SndFileId:   9,
		SndChunkNo:  2,
		Payload:     []byte("hello chunk"),
	}

	body, err := Build(f, crc.Compute)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// body is header+payload+crc; Parse expects header+payload plus the
	// CRC passed separately (as the framer would have already consumed
	// and normalized it).
	crcOffset := len(body) - FooterLength
	wireCRC := uint16(body[crcOffset]) | uint16(body[crcOffset+1])<<8

	parsed, err := Parse(body[:crcOffset], wireCRC, crc.Compute)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if parsed.FCode != f.FCode || parsed.RecFileId != f.RecFileId ||
		parsed.RecFeedback != f.RecFeedback || parsed.SndFileId != f.SndFileId ||
		parsed.SndChunkNo != f.SndChunkNo || !bytes.Equal(parsed.Payload, f.Payload) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", parsed, f)
	}
}

func TestParseRejectsCRCMismatch(t *testing.T) {
	f := &Frame{FCode: FCodeDataTransfer, SndFileId: 1}
	body, _ := Build(f, crc.Compute)
	crcOffset := len(body) - FooterLength

	if _, err := Parse(body[:crcOffset], 0xDEAD, crc.Compute); err == nil {
		t.Fatal("Parse should reject a mismatched CRC")
	}
}

func TestParseRejectsOversizedPayloadLen(t *testing.T) {
	body := []byte{0x04, 0xFF, 0xFF, 0xFF, 0x00, byte(PayloadMaxGuard + 1)}
	if _, err := Parse(body, 0, crc.Compute); err == nil {
		t.Fatal("Parse should reject payloadLen > PayloadMaxGuard")
	}
}

func TestParseRejectsShortBody(t *testing.T) {
	if _, err := Parse([]byte{1, 2, 3}, 0, crc.Compute); err == nil {
		t.Fatal("Parse should reject a body shorter than HeaderLength")
	}
}

func TestBuildRejectsOversizedPayload(t *testing.T) {
	f := &Frame{FCode: FCodeDataTransfer, Payload: make([]byte, PayloadMaxGuard+1)}
	if _, err := Build(f, crc.Compute); err == nil {
		t.Fatal("Build should reject a payload longer than PayloadMaxGuard")
	}
}

func TestBodyLen(t *testing.T) {
	f := &Frame{Payload: make([]byte, 10)}
	if got := f.BodyLen(); got != HeaderLength+10+FooterLength {
		t.Fatalf("BodyLen() = %d, want %d", got, HeaderLength+10+FooterLength)
	}
}
