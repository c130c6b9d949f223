package payload

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"unicode/utf8"
)

// Buffer holds the content of a received message together with its read
// cursor. Every handle to the same message shares one *Buffer, so Replace and
// Seek are seen by all of them.
type Buffer struct {
	mu     sync.RWMutex
	data   []byte
	cursor int
}

// NewBuffer wraps data without copying it.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// Bytes returns a copy of the content.
func (b *Buffer) Bytes() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return bytes.Clone(b.data)
}

func (b *Buffer) Cursor() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cursor
}

// Seek moves the read cursor to pos.
func (b *Buffer) Seek(pos int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pos < 0 {
		return fmt.Errorf("%w: cannot move cursor to %d", ErrNegativeIndex, pos)
	}
	if pos >= len(b.data) {
		return fmt.Errorf("%w: cannot move cursor to %d, message is %d bytes", ErrOutOfBounds, pos, len(b.data))
	}
	b.cursor = pos
	return nil
}

// Replace swaps the content and rewinds the cursor.
func (b *Buffer) Replace(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = data
	b.cursor = 0
}

// span returns width bytes at index. The caller holds the lock.
func (b *Buffer) span(index, width int) ([]byte, error) {
	if index < 0 {
		return nil, fmt.Errorf("%w: index %d is less than 0", ErrNegativeIndex, index)
	}
	if index > len(b.data) || len(b.data)-index < width {
		return nil, fmt.Errorf("%w: need %d bytes at index %d, message is %d bytes", ErrOutOfBounds, width, index, len(b.data))
	}
	return b.data[index : index+width], nil
}

// ---------------------------------------------------------------------------
// Fixed-width reads
// ---------------------------------------------------------------------------

func readAt[T any](b *Buffer, index, width int, decode func([]byte) T) (T, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var zero T
	p, err := b.span(index, width)
	if err != nil {
		return zero, err
	}
	return decode(p), nil
}

func readCursor[T any](b *Buffer, width int, decode func([]byte) T) (T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var zero T
	p, err := b.span(b.cursor, width)
	if err != nil {
		return zero, err
	}
	b.cursor += width
	return decode(p), nil
}

func u8(p []byte) uint8    { return p[0] }
func s8(p []byte) int8     { return int8(p[0]) }
func u16(p []byte) uint16  { return binary.LittleEndian.Uint16(p) }
func s16(p []byte) int16   { return int16(binary.LittleEndian.Uint16(p)) }
func u32(p []byte) uint32  { return binary.LittleEndian.Uint32(p) }
func s32(p []byte) int32   { return int32(binary.LittleEndian.Uint32(p)) }
func f32(p []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(p)) }

func (b *Buffer) UnsignedByte(index int) (uint8, error)   { return readAt(b, index, 1, u8) }
func (b *Buffer) SignedByte(index int) (int8, error)      { return readAt(b, index, 1, s8) }
func (b *Buffer) UnsignedShort(index int) (uint16, error) { return readAt(b, index, 2, u16) }
func (b *Buffer) SignedShort(index int) (int16, error)    { return readAt(b, index, 2, s16) }
func (b *Buffer) UnsignedInt(index int) (uint32, error)   { return readAt(b, index, 4, u32) }
func (b *Buffer) SignedInt(index int) (int32, error)      { return readAt(b, index, 4, s32) }
func (b *Buffer) Float(index int) (float32, error)        { return readAt(b, index, 4, f32) }

func (b *Buffer) CursorUnsignedByte() (uint8, error)   { return readCursor(b, 1, u8) }
func (b *Buffer) CursorSignedByte() (int8, error)      { return readCursor(b, 1, s8) }
func (b *Buffer) CursorUnsignedShort() (uint16, error) { return readCursor(b, 2, u16) }
func (b *Buffer) CursorSignedShort() (int16, error)    { return readCursor(b, 2, s16) }
func (b *Buffer) CursorUnsignedInt() (uint32, error)   { return readCursor(b, 4, u32) }
func (b *Buffer) CursorSignedInt() (int32, error)      { return readCursor(b, 4, s32) }
func (b *Buffer) CursorFloat() (float32, error)        { return readCursor(b, 4, f32) }

// ---------------------------------------------------------------------------
// Text reads
// ---------------------------------------------------------------------------

func (b *Buffer) sizedString(index, size int) (string, error) {
	if size < 0 {
		return "", fmt.Errorf("%w: string size %d is less than 0", ErrNegativeIndex, size)
	}
	p, err := b.span(index, size)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(p) {
		return "", fmt.Errorf("%w: %d bytes at index %d", ErrInvalidUTF8, size, index)
	}
	return string(p), nil
}

// terminatedString returns the text at index and the bytes it occupies,
// terminator included.
func (b *Buffer) terminatedString(index int) (string, int, error) {
	if _, err := b.span(index, 0); err != nil {
		return "", 0, err
	}
	rest := b.data[index:]
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		return "", 0, fmt.Errorf("%w: no terminator after index %d", ErrNoTerminator, index)
	}
	if !utf8.Valid(rest[:end]) {
		return "", 0, fmt.Errorf("%w: %d bytes at index %d", ErrInvalidUTF8, end, index)
	}
	return string(rest[:end]), end + 1, nil
}

func (b *Buffer) asciiByte(index int) (string, error) {
	p, err := b.span(index, 1)
	if err != nil {
		return "", err
	}
	c := p[0]
	switch {
	case c > 127:
		return "", fmt.Errorf("%w: value %d at index %d", ErrNotASCII, c, index)
	case c < 0x20 || c == 0x7F:
		return "", fmt.Errorf("%w: value %d at index %d", ErrUnprintable, c, index)
	}
	return string(rune(c)), nil
}

// StringWithSize reads exactly size bytes of UTF-8 text at index.
func (b *Buffer) StringWithSize(index, size int) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sizedString(index, size)
}

// TerminatedString reads null-terminated UTF-8 text at index.
func (b *Buffer) TerminatedString(index int) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, _, err := b.terminatedString(index)
	return s, err
}

// ASCIIByte reads one printable ASCII character at index.
func (b *Buffer) ASCIIByte(index int) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.asciiByte(index)
}

func (b *Buffer) CursorStringWithSize(size int) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.sizedString(b.cursor, size)
	if err == nil {
		b.cursor += size
	}
	return s, err
}

func (b *Buffer) CursorTerminatedString() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, n, err := b.terminatedString(b.cursor)
	if err == nil {
		b.cursor += n
	}
	return s, err
}

func (b *Buffer) CursorASCIIByte() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.asciiByte(b.cursor)
	if err == nil {
		b.cursor++
	}
	return s, err
}
