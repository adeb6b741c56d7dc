package blip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCStringRoundTripDictionaryEntry(t *testing.T) {
	buf, err := appendCString(nil, "Profile")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0}, buf)

	got, n, err := readCString(buf)
	require.NoError(t, err)
	assert.Equal(t, "Profile", got)
	assert.Equal(t, 2, n)
}

func TestCStringRoundTripRawString(t *testing.T) {
	buf, err := appendCString(nil, "echo")
	require.NoError(t, err)
	assert.Equal(t, []byte("echo\x00"), buf)

	got, n, err := readCString(buf)
	require.NoError(t, err)
	assert.Equal(t, "echo", got)
	assert.Equal(t, 5, n)
}

func TestCStringRoundTripEmptyString(t *testing.T) {
	buf, err := appendCString(nil, "")
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, buf)

	got, n, err := readCString(buf)
	require.NoError(t, err)
	assert.Equal(t, "", got)
	assert.Equal(t, 1, n)
}

func TestAppendCStringRejectsEmbeddedNUL(t *testing.T) {
	_, err := appendCString(nil, "bad\x00value")
	assert.ErrorIs(t, err, ErrBadProperty)
}

func TestReadCStringRejectsUnterminated(t *testing.T) {
	_, _, err := readCString([]byte("no-terminator"))
	assert.ErrorIs(t, err, ErrBadProperties)
}

func TestReadCStringRejectsEmptyInput(t *testing.T) {
	_, _, err := readCString(nil)
	assert.ErrorIs(t, err, ErrBadProperties)
}

func TestDictionaryRoundTripEveryEntry(t *testing.T) {
	for i := 1; i < len(propertyDictionary); i++ {
		entry := propertyDictionary[i]
		buf, err := appendCString(nil, entry)
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(i), 0}, buf)

		got, n, err := readCString(buf)
		require.NoError(t, err)
		assert.Equal(t, entry, got)
		assert.Equal(t, 2, n)
	}
}
