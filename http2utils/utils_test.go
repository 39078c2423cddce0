package http2utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUint24RoundTrip(t *testing.T) {
	b := make([]byte, 3)
	Uint24ToBytes(b, 0xabcdef)
	assert.Equal(t, uint32(0xabcdef), BytesToUint24(b))
}

func TestUint32RoundTrip(t *testing.T) {
	b := make([]byte, 4)
	Uint32ToBytes(b, 0xdeadbeef)
	assert.Equal(t, uint32(0xdeadbeef), BytesToUint32(b))
}

func TestCutPadding(t *testing.T) {
	payload := append([]byte{5}, "hello world"...)

	got, err := CutPadding(payload, len(payload))
	assert.NoError(t, err)
	assert.Equal(t, "hello ", string(got))
}

func TestCutPaddingRejectsOversizedPad(t *testing.T) {
	payload := append([]byte{200}, "short"...)

	_, err := CutPadding(payload, len(payload))
	assert.Error(t, err)
}

func TestAddPaddingRoundTrip(t *testing.T) {
	orig := []byte("request body")
	padded := AddPadding(append([]byte{}, orig...))

	got, err := CutPadding(padded, len(padded))
	assert.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestEqualsFold(t *testing.T) {
	assert.True(t, EqualsFold([]byte("Content-Type"), []byte("content-type")))
	assert.False(t, EqualsFold([]byte("Content-Type"), []byte("content-length")))
}

func TestFastStringBytesRoundTrip(t *testing.T) {
	s := "round trip me"
	b := FastStringToBytes(s)
	assert.Equal(t, s, FastBytesToString(b))
}
