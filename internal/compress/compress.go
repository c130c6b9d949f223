// Package compress deflates and inflates message payloads with zlib.
package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

const (
	// Headroom is how far compressed output may always exceed its input.
	// Larger inputs get the extra room Bound allows for stored blocks.
	Headroom = 256
	// ChunkSize is the step by which the inflate buffer grows.
	ChunkSize = 1024
)

// zlib status codes carried by Error.
const (
	CodeStreamError = -2
	CodeDataError   = -3
	CodeMemError    = -4
	CodeBufError    = -5
)

// Error reports a failed compress or decompress call.
type Error struct {
	Op   string // "compress" or "decompress"
	Code int    // zlib status code
	Msg  string
	Err  error // underlying cause, if any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed with zlib error %d: %s", e.Op, e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Bound returns the largest compressed size accepted for n input bytes:
// zlib's compressBound plus the 6-byte zlib wrapper, and never less than
// n+Headroom.
func Bound(n int) int {
	return max(n+n>>12+n>>14+n>>25+13+6, n+Headroom)
}

// Compress deflates src at the best compression level.
func Compress(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, &Error{Op: "compress", Code: CodeBufError, Msg: "cannot compress empty binary"}
	}

	bound := Bound(len(src))
	out := bytes.NewBuffer(make([]byte, 0, bound))
	w, err := zlib.NewWriterLevel(out, zlib.BestCompression)
	if err != nil {
		return nil, &Error{Op: "compress", Code: CodeStreamError, Msg: "initialising deflate", Err: err}
	}
	if _, err := w.Write(src); err != nil {
		return nil, &Error{Op: "compress", Code: CodeStreamError, Msg: "deflating", Err: err}
	}
	if err := w.Close(); err != nil {
		return nil, &Error{Op: "compress", Code: CodeStreamError, Msg: "finishing deflate", Err: err}
	}

	if out.Len() > bound {
		return nil, &Error{
			Op:   "compress",
			Code: CodeBufError,
			Msg:  fmt.Sprintf("output of %d bytes does not fit in %d", out.Len(), bound),
		}
	}
	packed := make([]byte, out.Len())
	copy(packed, out.Bytes())
	return packed, nil
}

// Decompress inflates src. A limit above zero caps the inflated size.
// src is never modified.
func Decompress(src []byte, limit int) ([]byte, error) {
	if len(src) == 0 {
		return nil, &Error{Op: "decompress", Code: CodeBufError, Msg: "cannot decompress empty binary"}
	}

	in := bytes.NewReader(src)
	r, err := zlib.NewReader(in)
	if err != nil {
		return nil, &Error{Op: "decompress", Code: CodeDataError, Msg: "bad zlib header", Err: err}
	}
	defer r.Close()

	out := make([]byte, 0, ChunkSize)
	for {
		if len(out) == cap(out) {
			out = append(out, make([]byte, ChunkSize)...)[:len(out)]
		}
		n, err := r.Read(out[len(out):cap(out)])
		out = out[:len(out)+n]

		if limit > 0 && len(out) > limit {
			return nil, &Error{
				Op:   "decompress",
				Code: CodeMemError,
				Msg:  fmt.Sprintf("inflated size exceeds limit of %d bytes", limit),
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			code := CodeDataError
			if errors.Is(err, io.ErrUnexpectedEOF) {
				code = CodeBufError
			}
			return nil, &Error{Op: "decompress", Code: code, Msg: "inflating", Err: err}
		}
	}

	if in.Len() > 0 {
		return nil, &Error{
			Op:   "decompress",
			Code: CodeDataError,
			Msg:  fmt.Sprintf("%d bytes of trailing data after stream end", in.Len()),
		}
	}
	return out, nil
}
