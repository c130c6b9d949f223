package payload

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Dump renders the content from index onwards as one line per value,
// following a format of tokens such as "c2+h3i". Each token is an optional
// '+' (unsigned), a type letter and an optional count:
//
//	c  char      h  short (2 bytes)   i  integer (4 bytes)
//	s  null-terminated string         f  float (4 bytes)
//
// Strings and floats have no unsigned form.
func (b *Buffer) Dump(index int, format string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if format == "" {
		return "", fmt.Errorf("%w: format is empty", ErrBadFormat)
	}
	if index < 0 {
		return "", fmt.Errorf("%w: index %d is less than 0", ErrNegativeIndex, index)
	}
	if index >= len(b.data) {
		return "", fmt.Errorf("%w: index %d is beyond message end index %d", ErrOutOfBounds, index, len(b.data)-1)
	}

	var lines []string
	pos := index

	for i := 0; i < len(format); {
		// skip the previous token's count
		for i < len(format) && isDigit(format[i]) {
			i++
		}
		if i == len(format) {
			break
		}

		signed := format[i] != '+'
		if !signed {
			i++
			if i == len(format) {
				return "", fmt.Errorf("%w: '+' at end of format", ErrBadFormat)
			}
		}

		kind := format[i]
		i++
		end := i
		for end < len(format) && isDigit(format[end]) {
			end++
		}
		count := 1
		if end > i {
			n, err := strconv.Atoi(format[i:end])
			if err != nil {
				return "", fmt.Errorf("%w: bad count %q", ErrBadFormat, format[i:end])
			}
			count = max(n, 1)
		}

		fits := func(width int) error {
			if count > (len(b.data)-pos)/width {
				return fmt.Errorf("%w: could not dump %d x '%c' at index %d", ErrOutOfBounds, count, kind, pos)
			}
			return nil
		}

		switch kind {
		case 'c':
			if err := fits(1); err != nil {
				return "", err
			}
			for _, c := range b.data[pos : pos+count] {
				lines = append(lines, dumpChar(c, signed))
			}
			pos += count

		case 'h':
			if err := fits(2); err != nil {
				return "", err
			}
			for j := 0; j < count; j++ {
				v := binary.LittleEndian.Uint16(b.data[pos:])
				if signed {
					lines = append(lines, fmt.Sprintf("Signed short: %d", int16(v)))
				} else {
					lines = append(lines, fmt.Sprintf("Unsigned short: %d", v))
				}
				pos += 2
			}

		case 'i':
			if err := fits(4); err != nil {
				return "", err
			}
			for j := 0; j < count; j++ {
				v := binary.LittleEndian.Uint32(b.data[pos:])
				if signed {
					lines = append(lines, fmt.Sprintf("Signed integer: %d", int32(v)))
				} else {
					lines = append(lines, fmt.Sprintf("Unsigned integer: %d", v))
				}
				pos += 4
			}

		case 'f':
			if !signed {
				return "", fmt.Errorf("%w: '+' flag not expected next to 'f'; floats cannot be unsigned", ErrBadFormat)
			}
			if err := fits(4); err != nil {
				return "", err
			}
			for j := 0; j < count; j++ {
				v := math.Float32frombits(binary.LittleEndian.Uint32(b.data[pos:]))
				lines = append(lines, fmt.Sprintf("Float: %g", v))
				pos += 4
			}

		case 's':
			if !signed {
				return "", fmt.Errorf("%w: '+' flag not expected next to 's'; strings cannot be unsigned", ErrBadFormat)
			}
			for j := 0; j < count; j++ {
				n := bytes.IndexByte(b.data[pos:], 0)
				if n < 0 {
					return "", fmt.Errorf("%w: no null-terminated string at index %d", ErrOutOfBounds, pos)
				}
				if !utf8.Valid(b.data[pos : pos+n]) {
					return "", fmt.Errorf("%w: string at index %d, %d bytes long", ErrInvalidUTF8, pos, n)
				}
				lines = append(lines, "String: "+string(b.data[pos:pos+n]))
				pos += n + 1
			}

		default:
			return "", fmt.Errorf("%w: unrecognised character in dump format: '%c'; valid: c, h, s, i, f; operator +", ErrBadFormat, kind)
		}
	}

	return strings.Join(lines, "\n"), nil
}

func dumpChar(c byte, signed bool) string {
	if !signed {
		return fmt.Sprintf("Unsigned char: %d (0x%02X)", c, c)
	}
	shown := "(?)"
	if c >= 0x20 && c < 0x7F {
		shown = "'" + string(rune(c)) + "'"
	}
	return fmt.Sprintf("Signed char: %s (%d, 0x%02X)", shown, int8(c), c)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
