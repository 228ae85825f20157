// Package wire provides a small bounds-checked cursor for reading and
// writing the little-endian fields used by the thermit wire format.
package wire

import "fmt"

// Cursor advances a position over a fixed byte slice, putting or getting
// u8/u16 fields in little-endian order. It never grows the underlying
// slice and never allocates.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor wraps buf for sequential reading or writing starting at offset 0.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Pos returns the current offset into the underlying buffer.
func (c *Cursor) Pos() int {
	return c.pos
}

// Len returns the distance travelled from the start of the buffer, the
// Go equivalent of msgLen(start, currentPosition) in the original codec.
func (c *Cursor) Len() int {
	return c.pos
}

// Bytes returns the portion of the buffer written or read so far.
func (c *Cursor) Bytes() []byte {
	return c.buf[:c.pos]
}

// Remaining returns the unread/unwritten tail of the buffer.
func (c *Cursor) Remaining() []byte {
	return c.buf[c.pos:]
}

func (c *Cursor) requireCap(n int) error {
	if c.pos+n > len(c.buf) {
		return fmt.Errorf("wire: cursor out of bounds: pos=%d need=%d cap=%d", c.pos, n, len(c.buf))
	}
	return nil
}

// PutU8 writes a single byte and advances the cursor.
func (c *Cursor) PutU8(v uint8) error {
	if err := c.requireCap(1); err != nil {
		return err
	}
	c.buf[c.pos] = v
	c.pos++
	return nil
}

// PutU16 writes v little-endian and advances the cursor by 2.
func (c *Cursor) PutU16(v uint16) error {
	if err := c.requireCap(2); err != nil {
		return err
	}
	c.buf[c.pos] = byte(v & 0xFF)
	c.buf[c.pos+1] = byte((v >> 8) & 0xFF)
	c.pos += 2
	return nil
}

// PutBytes copies b into the buffer and advances the cursor by len(b).
func (c *Cursor) PutBytes(b []byte) error {
	if err := c.requireCap(len(b)); err != nil {
		return err
	}
	copy(c.buf[c.pos:], b)
	c.pos += len(b)
	return nil
}

// GetU8 reads a single byte and advances the cursor.
func (c *Cursor) GetU8() (uint8, error) {
	if err := c.requireCap(1); err != nil {
		return 0, err
	}
	v := c.buf[c.pos]
	c.pos++
	return v, nil
}

// GetU16 reads a little-endian uint16 and advances the cursor by 2.
func (c *Cursor) GetU16() (uint16, error) {
	if err := c.requireCap(2); err != nil {
		return 0, err
	}
	v := uint16(c.buf[c.pos]) | uint16(c.buf[c.pos+1])<<8
	c.pos += 2
	return v, nil
}

// GetBytes reads n raw bytes and advances the cursor by n.
func (c *Cursor) GetBytes(n int) ([]byte, error) {
	if err := c.requireCap(n); err != nil {
		return nil, err
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}
