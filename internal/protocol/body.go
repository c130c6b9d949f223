package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformedBody is returned when a frame body does not match its kind's layout.
var ErrMalformedBody = errors.New("protocol: malformed body")

// bodyWriter appends little-endian fields to a frame body.
type bodyWriter struct {
	buf []byte
}

func (w *bodyWriter) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *bodyWriter) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *bodyWriter) bytes(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *bodyWriter) flag(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

// str writes s followed by a NUL terminator.
func (w *bodyWriter) str(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

// bodyReader consumes fields from a frame body. The first failure sticks and
// every later read returns zero values.
type bodyReader struct {
	b   []byte
	off int
	err error
}

func (r *bodyReader) need(n int, what string) bool {
	if r.err != nil {
		return false
	}
	if len(r.b)-r.off < n {
		r.err = fmt.Errorf("%w: missing %s at offset %d", ErrMalformedBody, what, r.off)
		return false
	}
	return true
}

func (r *bodyReader) u8(what string) uint8 {
	if !r.need(1, what) {
		return 0
	}
	v := r.b[r.off]
	r.off++
	return v
}

func (r *bodyReader) u16(what string) uint16 {
	if !r.need(2, what) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.b[r.off:])
	r.off += 2
	return v
}

func (r *bodyReader) flag(what string) bool {
	return r.u8(what) != 0
}

func (r *bodyReader) str(what string) string {
	if r.err != nil {
		return ""
	}
	end := bytes.IndexByte(r.b[r.off:], 0)
	if end < 0 {
		r.err = fmt.Errorf("%w: unterminated %s at offset %d", ErrMalformedBody, what, r.off)
		return ""
	}
	s := string(r.b[r.off : r.off+end])
	r.off += end + 1
	return s
}

// rest returns a copy of everything not yet consumed.
func (r *bodyReader) rest() []byte {
	if r.err != nil || r.off >= len(r.b) {
		return nil
	}
	out := make([]byte, len(r.b)-r.off)
	copy(out, r.b[r.off:])
	r.off = len(r.b)
	return out
}

// done reports the sticky error, or an error when unread bytes remain.
func (r *bodyReader) done() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.b) {
		return fmt.Errorf("%w: %d unexpected trailing bytes", ErrMalformedBody, len(r.b)-r.off)
	}
	return nil
}
