// Package packet implements the thermit frame body: parsing and building
// the function code, ids, feedback, chunk number, payload and CRC that
// travel inside the stream framer's sentinels.
package packet

import (
	"fmt"

	"github.com/djtremolo/thermit/internal/wire"
)

// Function codes, the closed set thermit frames may carry.
const (
	FCodeSyncProposal             = 0x01
	FCodeSyncResponse             = 0x02
	FCodeSyncAck                  = 0x03
	FCodeDataTransfer             = 0x04
	FCodeNewFileStart             = 0x05
	FCodeWriteTerminatedForcefully = 0xFE
	FCodeOutOfSync                = 0xFF
)

// FeedbackFileReady is the recFeedback value meaning "the receiver
// considers the currently open incoming file complete".
const FeedbackFileReady = 0xFF

// HeaderLength is the fixed part of a frame body before its payload:
// fCode, recFileId, recFeedback, sndFileId, sndChunkNo, payloadLen.
const HeaderLength = 6

// FooterLength is the trailing CRC16.
const FooterLength = 2

// Frame is a parsed or to-be-built thermit frame body.
type Frame struct {
	FCode       byte
	RecFileId   byte
	RecFeedback byte
	SndFileId   byte
	SndChunkNo  byte
	Payload     []byte
}

// BodyLen returns the frame's length on the wire, header+payload+CRC.
func (f *Frame) BodyLen() int {
	return HeaderLength + len(f.Payload) + FooterLength
}

// Parse validates and decodes a frame body (header+len+payload, i.e. the
// bytes the stream framer accumulates) together with its already-received
// CRC value. receivedCRC must already be normalized to the true CRC-16
// (see framer.Framer.ReceivedCRC) regardless of where body came from — a
// byte-stream framer or a packet-aware device that delivers whole frames.
func Parse(body []byte, receivedCRC uint16, crc16 func([]byte) uint16) (*Frame, error) {
	if len(body) < HeaderLength {
		return nil, fmt.Errorf("packet: body too short: %d bytes", len(body))
	}

	c := wire.NewCursor(body)
	fCode, _ := c.GetU8()
	recFileId, _ := c.GetU8()
	recFeedback, _ := c.GetU8()
	sndFileId, _ := c.GetU8()
	sndChunkNo, _ := c.GetU8()
	payloadLen, _ := c.GetU8()

	if payloadLen > PayloadMaxGuard {
		return nil, fmt.Errorf("packet: payloadLen %d exceeds max %d", payloadLen, PayloadMaxGuard)
	}

	wantLen := HeaderLength + int(payloadLen)
	if len(body) != wantLen {
		return nil, fmt.Errorf("packet: bodyLen %d != payloadLen+%d (%d)", len(body), HeaderLength, wantLen)
	}

	payload, err := c.GetBytes(int(payloadLen))
	if err != nil {
		return nil, err
	}

	computed := crc16(body)
	if computed != receivedCRC {
		return nil, fmt.Errorf("packet: crc mismatch: computed=0x%04x received=0x%04x", computed, receivedCRC)
	}

	payloadCopy := make([]byte, len(payload))
	copy(payloadCopy, payload)

	return &Frame{
		FCode:       fCode,
		RecFileId:   recFileId,
		RecFeedback: recFeedback,
		SndFileId:   sndFileId,
		SndChunkNo:  sndChunkNo,
		Payload:     payloadCopy,
	}, nil
}

// PayloadMaxGuard mirrors framer.PayloadMax (both 112) so that packet
// does not import the framer package; the two values are kept equal by
// hand, no test compares them.
const PayloadMaxGuard = 112

// Build serializes f into a frame body (header+len+payload+CRC), ready to
// be handed to the framer for sentinel wrapping.
func Build(f *Frame, crc16 func([]byte) uint16) ([]byte, error) {
	if len(f.Payload) > PayloadMaxGuard {
		return nil, fmt.Errorf("packet: payload length %d exceeds max %d", len(f.Payload), PayloadMaxGuard)
	}

	buf := make([]byte, HeaderLength+len(f.Payload)+FooterLength)
	c := wire.NewCursor(buf)

	_ = c.PutU8(f.FCode)
	_ = c.PutU8(f.RecFileId)
	_ = c.PutU8(f.RecFeedback)
	_ = c.PutU8(f.SndFileId)
	_ = c.PutU8(f.SndChunkNo)
	_ = c.PutU8(byte(len(f.Payload)))
	_ = c.PutBytes(f.Payload)

	body := buf[:HeaderLength+len(f.Payload)]
	crcValue := crc16(body)
	_ = c.PutU16(crcValue)

	return buf, nil
}
