package blip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarintRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 2, 63, 64, 127, 128, 129, 16383, 16384,
		1 << 20, 1<<31 - 1}
	for _, v := range values {
		buf := appendVarint(nil, v)
		assert.LessOrEqual(t, len(buf), maxVarintBytes)
		assert.Equal(t, len(buf), varintLen(v))

		got, n, err := readVarint(buf)
		require.NoError(t, err)
		assert.Equal(t, len(buf), n)
		assert.Equal(t, v, got)
	}
}

func TestVarintRejectsValuesAtOrAbove2To31(t *testing.T) {
	// A hand-built 5-byte varint whose value is exactly 2^31: continuation
	// bits on the first four bytes, final byte contributes bit 31.
	buf := []byte{0x80, 0x80, 0x80, 0x80, 0x08}
	_, _, err := readVarint(buf)
	assert.ErrorIs(t, err, ErrBadVarint)
}

func TestVarintRejectsSixthByte(t *testing.T) {
	buf := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	_, _, err := readVarint(buf)
	assert.ErrorIs(t, err, ErrBadVarint)
}

func TestVarintRejectsTruncatedInput(t *testing.T) {
	buf := []byte{0x80, 0x80}
	_, _, err := readVarint(buf)
	assert.ErrorIs(t, err, ErrBadVarint)
}

func TestVarintRejectsEmptyInput(t *testing.T) {
	_, _, err := readVarint(nil)
	assert.ErrorIs(t, err, ErrBadVarint)
}
