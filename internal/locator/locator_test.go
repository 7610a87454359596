package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, s := range []string{
		"https://maker.example.com",
		"http://10.0.0.1:8080/rpc",
		"https://ü.example",
		"x",
	} {
		raw, err := Encode(s)
		require.NoError(t, err, s)
		got, err := Decode(raw)
		require.NoError(t, err, s)
		assert.Equal(t, s, got)
	}
}

func TestEncodeRejectsLongLocator(t *testing.T) {
	_, err := Encode("https://a-very-long-maker-hostname.example.com")
	assert.ErrorIs(t, err, ErrTooLong)
}

func TestDecodeRejectsInvalidUTF8(t *testing.T) {
	var raw [Size]byte
	copy(raw[:], []byte{'h', 't', 0xff, 0xfe})
	_, err := Decode(raw)
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestDecodeRequiresTerminator(t *testing.T) {
	var raw [Size]byte
	for i := range raw {
		raw[i] = 'a'
	}
	_, err := Decode(raw)
	assert.ErrorIs(t, err, ErrNotTerminated)
}

func TestDecodeAllDropsInvalid(t *testing.T) {
	good, err := Encode("https://one.example")
	require.NoError(t, err)
	other, err := Encode("http://two.example")
	require.NoError(t, err)

	var bad [Size]byte
	bad[0] = 0xc3 // truncated multi-byte sequence
	var empty [Size]byte

	locators, dropped := DecodeAll([][Size]byte{good, bad, empty, other})
	assert.Equal(t, []string{"https://one.example", "http://two.example"}, locators)
	assert.Equal(t, 2, dropped)
}
