package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexedReads(t *testing.T) {
	b := NewBuffer([]byte{
		0xFE,       // 0
		0x34, 0x12, // 1
		0xFE, 0xFF, 0xFF, 0xFF, // 3
		0x00, 0x00, 0xC0, 0x3F, // 7
	})

	u8, err := b.UnsignedByte(0)
	require.NoError(t, err)
	assert.Equal(t, uint8(254), u8)

	s8, err := b.SignedByte(0)
	require.NoError(t, err)
	assert.Equal(t, int8(-2), s8)

	u16, err := b.UnsignedShort(1)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), u16)

	s32, err := b.SignedInt(3)
	require.NoError(t, err)
	assert.Equal(t, int32(-2), s32)

	u32, err := b.UnsignedInt(3)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFFFFFE), u32)

	f, err := b.Float(7)
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), f)

	assert.Equal(t, 0, b.Cursor(), "indexed reads never move the cursor")
}

func TestIndexedReadBounds(t *testing.T) {
	b := NewBuffer([]byte{1, 2, 3})

	v, err := b.SignedInt(-1)
	assert.ErrorIs(t, err, ErrNegativeIndex)
	assert.Zero(t, v)

	v, err = b.SignedInt(0)
	assert.ErrorIs(t, err, ErrOutOfBounds, "3 bytes remaining, need 4")
	assert.Zero(t, v)

	_, err = b.UnsignedShort(2)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, err = b.UnsignedByte(3)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, err = b.UnsignedByte(100)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestCursorAdvancesOnlyOnSuccess(t *testing.T) {
	b := NewBuffer([]byte{7, 0x10, 0x00, 'o', 'k', 0, 0xFF})

	v, err := b.CursorUnsignedByte()
	require.NoError(t, err)
	assert.Equal(t, uint8(7), v)
	assert.Equal(t, 1, b.Cursor())

	s, err := b.CursorSignedShort()
	require.NoError(t, err)
	assert.Equal(t, int16(16), s)
	assert.Equal(t, 3, b.Cursor())

	text, err := b.CursorTerminatedString()
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 6, b.Cursor())

	_, err = b.CursorSignedInt()
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.Equal(t, 6, b.Cursor(), "failed read must leave the cursor alone")

	_, err = b.CursorASCIIByte()
	assert.ErrorIs(t, err, ErrNotASCII)
	assert.Equal(t, 6, b.Cursor())

	last, err := b.CursorSignedByte()
	require.NoError(t, err)
	assert.Equal(t, int8(-1), last)
}

func TestSeek(t *testing.T) {
	b := NewBuffer([]byte{1, 2, 3, 4})

	require.NoError(t, b.Seek(2))
	v, err := b.CursorUnsignedShort()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0403), v)

	assert.ErrorIs(t, b.Seek(-1), ErrNegativeIndex)
	assert.ErrorIs(t, b.Seek(4), ErrOutOfBounds)
	assert.Equal(t, 4, b.Cursor())

	require.NoError(t, b.Seek(0))
	assert.Equal(t, 0, b.Cursor())
}

func TestStringReads(t *testing.T) {
	b := NewBuffer([]byte("héllo\x00wor\xffld"))

	s, err := b.TerminatedString(0)
	require.NoError(t, err)
	assert.Equal(t, "héllo", s)

	s, err = b.StringWithSize(1, 2)
	require.NoError(t, err)
	assert.Equal(t, "é", s)

	_, err = b.StringWithSize(1, 1)
	assert.ErrorIs(t, err, ErrInvalidUTF8, "half of a two-byte rune")

	_, err = b.TerminatedString(7)
	assert.ErrorIs(t, err, ErrNoTerminator)

	_, err = b.StringWithSize(7, 5)
	assert.ErrorIs(t, err, ErrInvalidUTF8)

	_, err = b.StringWithSize(0, -1)
	assert.ErrorIs(t, err, ErrNegativeIndex)

	_, err = b.StringWithSize(10, 10)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	require.NoError(t, b.Seek(7))
	before := b.Cursor()
	_, err = b.CursorStringWithSize(5)
	assert.Error(t, err)
	assert.Equal(t, before, b.Cursor())

	s, err = b.CursorStringWithSize(3)
	require.NoError(t, err)
	assert.Equal(t, "wor", s)
	assert.Equal(t, 10, b.Cursor())
}

func TestASCIIByte(t *testing.T) {
	b := NewBuffer([]byte{'A', ' ', '~', 0x7F, 0x0A, 0x80})

	testCases := []struct {
		index int
		want  string
		err   error
	}{
		{0, "A", nil},
		{1, " ", nil},
		{2, "~", nil},
		{3, "", ErrUnprintable},
		{4, "", ErrUnprintable},
		{5, "", ErrNotASCII},
		{6, "", ErrOutOfBounds},
	}

	for _, tc := range testCases {
		got, err := b.ASCIIByte(tc.index)
		if tc.err != nil {
			assert.ErrorIs(t, err, tc.err, "index %d", tc.index)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestReplaceIsSharedAndRewinds(t *testing.T) {
	b := NewBuffer([]byte{1, 2, 3})
	alias := b

	require.NoError(t, b.Seek(2))
	b.Replace([]byte{9, 8})

	assert.Equal(t, []byte{9, 8}, alias.Bytes())
	assert.Equal(t, 0, alias.Cursor())
	assert.Equal(t, 2, alias.Len())
}

func TestBuiltMessageRoundTrip(t *testing.T) {
	bld := NewBuilder(0)
	require.NoError(t, bld.AddByte(1))
	require.NoError(t, bld.AddShort(2))
	require.NoError(t, bld.AddBinary([]byte{0xAA, 0xBB, 0xCC, 0xDD}))
	assert.Equal(t, []byte{0x01, 0x02, 0x00, 0xAA, 0xBB, 0xCC, 0xDD}, bld.Bytes())

	b := NewBuffer(bld.Bytes())

	last, err := b.UnsignedByte(6)
	require.NoError(t, err)
	assert.Equal(t, uint8(0xDD), last)

	_, err = b.UnsignedByte(7)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	require.NoError(t, b.Seek(1))
	short, err := b.CursorUnsignedShort()
	require.NoError(t, err)
	assert.Equal(t, uint16(2), short)
	n, err := b.CursorUnsignedInt()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDDCCBBAA), n)
}
