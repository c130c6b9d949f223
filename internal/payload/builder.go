package payload

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// Builder accumulates the binary content of the next outgoing message.
// Values are appended at the end; multi-byte values are little-endian.
type Builder struct {
	data  []byte
	limit int
}

// NewBuilder returns an empty builder. A limit above zero caps the content
// size; appends that would cross it fail with ErrTooLarge and change nothing.
func NewBuilder(limit int) *Builder {
	return &Builder{limit: limit}
}

func (b *Builder) reserve(n int) error {
	if b.limit > 0 && len(b.data)+n > b.limit {
		return fmt.Errorf("%w: %d + %d bytes exceeds %d", ErrTooLarge, len(b.data), n, b.limit)
	}
	return nil
}

func (b *Builder) add(p ...byte) error {
	if err := b.reserve(len(p)); err != nil {
		return err
	}
	b.data = append(b.data, p...)
	return nil
}

// AddByte appends one byte. Both signed and unsigned byte values are accepted.
func (b *Builder) AddByte(v int) error {
	if v < math.MinInt8 || v > math.MaxUint8 {
		return fmt.Errorf("%w: byte value %d is not between -128 and 255", ErrOutOfRange, v)
	}
	return b.add(byte(v))
}

// AddByteText appends the single byte of a one-character string.
func (b *Builder) AddByteText(s string) error {
	if len(s) != 1 {
		return fmt.Errorf("%w: byte text must be exactly one byte, got %d", ErrOutOfRange, len(s))
	}
	return b.add(s[0])
}

// AddShort appends two bytes. Both signed and unsigned short values are accepted.
func (b *Builder) AddShort(v int) error {
	if v < math.MinInt16 || v > math.MaxUint16 {
		return fmt.Errorf("%w: short value %d is not between -32768 and 65535", ErrOutOfRange, v)
	}
	return b.add(binary.LittleEndian.AppendUint16(nil, uint16(v))...)
}

func (b *Builder) AddInt(v int32) error {
	return b.add(binary.LittleEndian.AppendUint32(nil, uint32(v))...)
}

func (b *Builder) AddFloat(v float32) error {
	return b.add(binary.LittleEndian.AppendUint32(nil, math.Float32bits(v))...)
}

// AddString appends s and a null terminator.
func (b *Builder) AddString(s string) error {
	if err := b.reserve(len(s) + 1); err != nil {
		return err
	}
	b.data = append(b.data, s...)
	b.data = append(b.data, 0)
	return nil
}

func (b *Builder) AddStringWithoutNull(s string) error {
	if err := b.reserve(len(s)); err != nil {
		return err
	}
	b.data = append(b.data, s...)
	return nil
}

func (b *Builder) AddBinary(p []byte) error {
	return b.add(p...)
}

// AddFile appends the full contents of the file at path.
func (b *Builder) AddFile(path string) error {
	if path == "" {
		return fmt.Errorf("payload: cannot add file, no path given")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("payload: cannot add file %q: %w", path, err)
	}
	if err := b.reserve(int(info.Size())); err != nil {
		return err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("payload: cannot add file %q: %w", path, err)
	}
	return b.add(content...)
}

// Resize sets the content length to n, zero-filling any new bytes.
func (b *Builder) Resize(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: cannot resize to negative size %d", ErrOutOfRange, n)
	}
	if n <= len(b.data) {
		clear(b.data[n:])
		b.data = b.data[:n]
		return nil
	}
	return b.add(make([]byte, n-len(b.data))...)
}

// Replace swaps the content for a copy of p.
func (b *Builder) Replace(p []byte) {
	b.data = append(b.data[:0:0], p...)
}

func (b *Builder) Clear() { b.data = b.data[:0] }

func (b *Builder) Len() int { return len(b.data) }

// Bytes returns the content. The slice is only valid until the next mutation.
func (b *Builder) Bytes() []byte { return b.data }
