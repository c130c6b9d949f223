package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDump(t *testing.T) {
	content := []byte{
		'A', 0x01, 0xFF,
		0xFE, 0xFF, 0x02, 0x00,
		0xFF, 0xFF, 0xFF, 0xFF,
		0x00, 0x00, 0xC0, 0x3F,
		'h', 'i', 0, 'y', 'o', 0,
	}
	b := NewBuffer(content)

	testCases := []struct {
		name   string
		index  int
		format string
		want   string
	}{
		{
			name: "signed chars", index: 0, format: "c3",
			want: "Signed char: 'A' (65, 0x41)\nSigned char: (?) (1, 0x01)\nSigned char: (?) (-1, 0xFF)",
		},
		{
			name: "unsigned char", index: 2, format: "+c",
			want: "Unsigned char: 255 (0xFF)",
		},
		{
			name: "shorts", index: 3, format: "h+h",
			want: "Signed short: -2\nUnsigned short: 2",
		},
		{
			name: "ints", index: 7, format: "i",
			want: "Signed integer: -1",
		},
		{
			name: "unsigned int", index: 7, format: "+i1",
			want: "Unsigned integer: 4294967295",
		},
		{
			name: "float", index: 11, format: "f",
			want: "Float: 1.5",
		},
		{
			name: "strings", index: 15, format: "s2",
			want: "String: hi\nString: yo",
		},
		{
			name: "zero count means one", index: 0, format: "c0",
			want: "Signed char: 'A' (65, 0x41)",
		},
		{
			name: "mixed", index: 11, format: "fs",
			want: "Float: 1.5\nString: hi",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := b.Dump(tc.index, tc.format)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDumpErrors(t *testing.T) {
	b := NewBuffer([]byte{1, 2, 3, 4, 5, 'x'})

	testCases := []struct {
		name   string
		index  int
		format string
		err    error
	}{
		{"empty format", 0, "", ErrBadFormat},
		{"negative index", -1, "c", ErrNegativeIndex},
		{"index past end", 6, "c", ErrOutOfBounds},
		{"unknown type", 0, "cq", ErrBadFormat},
		{"unsigned string", 0, "+s", ErrBadFormat},
		{"unsigned float", 0, "+f", ErrBadFormat},
		{"dangling plus", 0, "c+", ErrBadFormat},
		{"too many chars", 0, "c7", ErrOutOfBounds},
		{"second token overruns from current position", 0, "i+i", ErrOutOfBounds},
		{"unterminated string", 5, "s", ErrOutOfBounds},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.Dump(tc.index, tc.format)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestDumpUnknownCharacterIsNamed(t *testing.T) {
	_, err := NewBuffer([]byte{1}).Dump(0, "z")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'z'")
}
