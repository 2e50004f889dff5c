package tdsflow

import "encoding/binary"

// Cursor is a bounds-checked, forward-only reader over a captured byte
// slice. It never panics: every read reports whether enough bytes remained,
// and a failed read leaves the cursor positioned where it started.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor wraps buf for bounds-checked reading starting at offset 0.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Pos returns the current read offset.
func (c *Cursor) Pos() int { return c.pos }

// Len returns the number of unread bytes remaining.
func (c *Cursor) Len() int { return len(c.buf) - c.pos }

// IsEmpty reports whether no bytes remain.
func (c *Cursor) IsEmpty() bool { return c.pos >= len(c.buf) }

// Remaining returns the unread tail of the buffer without consuming it.
func (c *Cursor) Remaining() []byte { return c.buf[c.pos:] }

// Drop discards n bytes. Returns false (and drops nothing) if fewer than n
// bytes remain.
func (c *Cursor) Drop(n int) bool {
	if n < 0 || c.Len() < n {
		return false
	}
	c.pos += n
	return true
}

// ReadBytes returns a copy of the next n bytes and advances the cursor.
func (c *Cursor) ReadBytes(n int) ([]byte, bool) {
	if n < 0 || c.Len() < n {
		return nil, false
	}
	out := make([]byte, n)
	copy(out, c.buf[c.pos:c.pos+n])
	c.pos += n
	return out, true
}

// PeekBytes returns a view (not a copy) of the next n bytes without
// consuming them.
func (c *Cursor) PeekBytes(n int) ([]byte, bool) {
	if n < 0 || c.Len() < n {
		return nil, false
	}
	return c.buf[c.pos : c.pos+n], true
}

// PeekAt returns a view of n bytes starting offset bytes past the cursor's
// current position, without consuming anything. Used by the
// pre-7.2 COLMETADATA heuristic (spec 4.F) which must look ahead.
func (c *Cursor) PeekAt(offset, n int) ([]byte, bool) {
	start := c.pos + offset
	if offset < 0 || n < 0 || start < 0 || start+n > len(c.buf) {
		return nil, false
	}
	return c.buf[start : start+n], true
}

func (c *Cursor) ReadU8() (uint8, bool) {
	b, ok := c.ReadBytes(1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

func (c *Cursor) ReadU16LE() (uint16, bool) {
	b, ok := c.ReadBytes(2)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b), true
}

func (c *Cursor) ReadU16BE() (uint16, bool) {
	b, ok := c.ReadBytes(2)
	if !ok {
		return 0, false
	}
	return binary.BigEndian.Uint16(b), true
}

func (c *Cursor) ReadU32LE() (uint32, bool) {
	b, ok := c.ReadBytes(4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

func (c *Cursor) ReadU32BE() (uint32, bool) {
	b, ok := c.ReadBytes(4)
	if !ok {
		return 0, false
	}
	return binary.BigEndian.Uint32(b), true
}

func (c *Cursor) ReadU64LE() (uint64, bool) {
	b, ok := c.ReadBytes(8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b), true
}

// ReadFixedIntLE reads an n-byte (1..=8) little-endian unsigned integer,
// zero-extended into a uint64. Used for fixed-width TypeValue payloads
// whose width is only known at decode time (spec 4.A).
func (c *Cursor) ReadFixedIntLE(n int) (uint64, bool) {
	if n < 1 || n > 8 {
		return 0, false
	}
	b, ok := c.ReadBytes(n)
	if !ok {
		return 0, false
	}
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, true
}

// PeekU8At peeks a single byte offset bytes past the current position
// without consuming. Convenience wrapper over PeekAt for the common n=1 case.
func (c *Cursor) PeekU8At(offset int) (uint8, bool) {
	b, ok := c.PeekAt(offset, 1)
	if !ok {
		return 0, false
	}
	return b[0], true
}
