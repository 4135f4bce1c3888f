// Package cursor implements ByteCursor, the little-endian primitive
// reader shared by every binary decoder in this module. It is a flat,
// bounds-checked forward cursor rather than a tree of sub-buffers: none
// of these formats need overlap/gap bookkeeping, only a safe "read N
// bytes and advance" primitive.
package cursor

import (
	"math"

	"github.com/yuzusoft/scenekit/internal/ferr"
)

// Cursor reads little-endian primitives out of a byte slice, tracking a
// read position. Every read is bounds-checked; a read past the end of
// the buffer returns a Truncated error instead of panicking.
type Cursor struct {
	buf []byte
	pos int
}

// New wraps buf for sequential reading starting at offset 0.
func New(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Offset returns the current read position, for end-of-stream assertions.
func (c *Cursor) Offset() int { return c.pos }

// Len returns the total buffer length.
func (c *Cursor) Len() int { return len(c.buf) }

// Remaining returns how many bytes are left to read.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// Seek moves the cursor to an absolute offset.
func (c *Cursor) Seek(off int) error {
	if off < 0 || off > len(c.buf) {
		return ferr.New(ferr.Truncated, "seek to %d out of range [0,%d]", off, len(c.buf))
	}
	c.pos = off
	return nil
}

func (c *Cursor) need(n int) error {
	if n < 0 || c.pos+n > len(c.buf) {
		return ferr.New(ferr.Truncated, "need %d bytes at offset %d, have %d", n, c.pos, len(c.buf)-c.pos)
	}
	return nil
}

// Bytes reads n raw bytes and advances the cursor.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// U8 reads one byte.
func (c *Cursor) U8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.buf[c.pos]
	c.pos++
	return v, nil
}

// U16LE reads a little-endian uint16.
func (c *Cursor) U16LE() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := uint16(c.buf[c.pos]) | uint16(c.buf[c.pos+1])<<8
	c.pos += 2
	return v, nil
}

// U32LE reads a little-endian uint32.
func (c *Cursor) U32LE() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := uint32(c.buf[c.pos]) | uint32(c.buf[c.pos+1])<<8 |
		uint32(c.buf[c.pos+2])<<16 | uint32(c.buf[c.pos+3])<<24
	c.pos += 4
	return v, nil
}

// I32LE reads a little-endian int32.
func (c *Cursor) I32LE() (int32, error) {
	v, err := c.U32LE()
	return int32(v), err
}

// F32LE reads a little-endian IEEE-754 float32.
func (c *Cursor) F32LE() (float32, error) {
	v, err := c.U32LE()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// F64LE reads a little-endian IEEE-754 float64.
func (c *Cursor) F64LE() (float64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(c.buf[c.pos+i]) << (8 * i)
	}
	c.pos += 8
	return math.Float64frombits(v), nil
}

// FourCC reads 4 bytes as an ASCII tag, e.g. "QNT\x00".
func (c *Cursor) FourCC() (string, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmaskFunc transforms one raw byte of a cstr before it is appended to
// the decoded string, e.g. AAR v2's (b - 0x60) mod 256 name unmasking.
type UnmaskFunc func(b byte) byte

// CStr reads a NUL-terminated string, consuming the terminator. If
// unmask is non-nil it is applied to each byte (other than the
// terminator) before decoding.
func (c *Cursor) CStr(unmask UnmaskFunc) (string, error) {
	start := c.pos
	for {
		if c.pos >= len(c.buf) {
			return "", ferr.New(ferr.Truncated, "unterminated cstr starting at offset %d", start)
		}
		if c.buf[c.pos] == 0 {
			break
		}
		c.pos++
	}
	raw := c.buf[start:c.pos]
	c.pos++ // consume terminator

	if unmask == nil {
		return string(raw), nil
	}
	out := make([]byte, len(raw))
	for i, b := range raw {
		out[i] = unmask(b)
	}
	return string(out), nil
}
