package packet

import (
	"fmt"

	"github.com/djtremolo/thermit/internal/wire"
)

// ParametersSize is the fixed wire size of a serialized Parameters value.
const ParametersSize = 10

// Parameters is the negotiated session parameter set (spec.md §3).
type Parameters struct {
	Version      uint16
	ChunkSize    uint16
	MaxFileSize  uint16
	KeepAliveMs  uint16
	BurstLength  uint16
}

// Serialize writes p as 5 little-endian u16 fields (10 bytes total).
func (p Parameters) Serialize() []byte {
	buf := make([]byte, ParametersSize)
	c := wire.NewCursor(buf)
	_ = c.PutU16(p.Version)
	_ = c.PutU16(p.ChunkSize)
	_ = c.PutU16(p.MaxFileSize)
	_ = c.PutU16(p.KeepAliveMs)
	_ = c.PutU16(p.BurstLength)
	return buf
}

// DeserializeParameters reads a 10-byte negotiation payload.
func DeserializeParameters(buf []byte) (Parameters, error) {
	if len(buf) != ParametersSize {
		return Parameters{}, fmt.Errorf("packet: parameter payload must be %d bytes, got %d", ParametersSize, len(buf))
	}
	c := wire.NewCursor(buf)
	var p Parameters
	p.Version, _ = c.GetU16()
	p.ChunkSize, _ = c.GetU16()
	p.MaxFileSize, _ = c.GetU16()
	p.KeepAliveMs, _ = c.GetU16()
	p.BurstLength, _ = c.GetU16()
	return p, nil
}

// ChunkCountMax is the largest number of chunks a progress bitmap
// tracks (spec.md §6), declared here as well as in the progress package
// so BestCommon can enforce its maxFileSize cap without importing it.
const ChunkCountMax = 250

// BestCommon computes the elementwise-minimum parameter set of a and b,
// then applies the two derived caps from spec.md §4.3: maxFileSize is
// capped to chunkSize*CHUNK_COUNT_MAX, and burstLength is capped to
// maxFileSize/chunkSize. It is idempotent and commutative in its two
// arguments by construction; see internal/packet/params_test.go.
func BestCommon(a, b Parameters) Parameters {
	min := func(x, y uint16) uint16 {
		if x < y {
			return x
		}
		return y
	}

	out := Parameters{
		Version:     min(a.Version, b.Version),
		ChunkSize:   min(a.ChunkSize, b.ChunkSize),
		MaxFileSize: min(a.MaxFileSize, b.MaxFileSize),
		KeepAliveMs: min(a.KeepAliveMs, b.KeepAliveMs),
		BurstLength: min(a.BurstLength, b.BurstLength),
	}

	if out.ChunkSize > 0 {
		maxByChunks := uint32(out.ChunkSize) * ChunkCountMax
		if maxByChunks > 0xFFFF {
			maxByChunks = 0xFFFF
		}
		out.MaxFileSize = min(out.MaxFileSize, uint16(maxByChunks))

		maxBurst := out.MaxFileSize / out.ChunkSize
		out.BurstLength = min(out.BurstLength, maxBurst)
	}

	return out
}
