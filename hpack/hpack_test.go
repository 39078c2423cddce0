package hpack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntegerRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 14, 15, 16, 126, 127, 128, 1337, 1 << 20}

	for _, n := range cases {
		dst := appendInt(nil, 5, 0xa0, n)
		got, consumed, err := decodeInt(dst, 5)
		assert.NoError(t, err)
		assert.Equal(t, len(dst), consumed)
		assert.Equal(t, n, got)
	}
}

func TestStringRoundTripPlain(t *testing.T) {
	dst := appendString(nil, "www.example.com", false)
	got, n, err := decodeString(dst)
	assert.NoError(t, err)
	assert.Equal(t, len(dst), n)
	assert.Equal(t, "www.example.com", got)
}

func TestHuffmanRoundTrip(t *testing.T) {
	samples := []string{
		"", "a", "www.example.com", "no-cache",
		"custom-key", "custom-value", "GET", "https",
		"1234567890", "Mozilla/5.0 (compatible)",
	}

	for _, s := range samples {
		dst := appendString(nil, s, true)
		got, n, err := decodeString(dst)
		assert.NoError(t, err)
		assert.Equal(t, len(dst), n)
		assert.Equal(t, s, got)
	}
}

func TestEncoderDecoderRoundTrip(t *testing.T) {
	enc := NewEncoder()
	dec := NewDecoder()

	fields := []HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":scheme", Value: "https"},
		{Name: ":path", Value: "/"},
		{Name: ":authority", Value: "example.test"},
		{Name: "user-agent", Value: "test-client/1.0"},
		{Name: "x-custom", Value: "some value here"},
	}

	var block []byte
	for _, f := range fields {
		block = enc.WriteField(block, f)
	}

	got, err := dec.DecodeFull(block)
	assert.NoError(t, err)
	assert.Equal(t, fields, got)
}

func TestEncoderIndexesRepeatedFields(t *testing.T) {
	enc := NewEncoder()
	dec := NewDecoder()

	f := HeaderField{Name: "x-request-id", Value: "abc-123"}

	first := enc.WriteField(nil, f)
	second := enc.WriteField(nil, f)

	// The second encoding of an identical field should be a single
	// indexed byte, much shorter than the first literal encoding.
	assert.Less(t, len(second), len(first))

	got, err := dec.DecodeFull(append(append([]byte{}, first...), second...))
	assert.NoError(t, err)
	assert.Equal(t, []HeaderField{f, f}, got)
}

func TestSensitiveFieldNeverIndexed(t *testing.T) {
	enc := NewEncoder()
	dec := NewDecoder()

	f := HeaderField{Name: "authorization", Value: "Bearer secret-token"}

	block := enc.WriteField(nil, f)
	assert.Equal(t, byte(0x10), block[0]&0xf0)

	got, err := dec.DecodeFull(block)
	assert.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "authorization", got[0].Name)
	assert.True(t, got[0].Sensitive)
}

func TestStaticTableLookup(t *testing.T) {
	dec := NewDecoder()

	// Index 2 is ":method: GET" in the static table.
	got, err := dec.lookupIndexed(2)
	assert.NoError(t, err)
	assert.Equal(t, HeaderField{Name: ":method", Value: "GET"}, got)
}

func TestDynamicTableSizeUpdateRejectsOverLimit(t *testing.T) {
	dec := NewDecoder()
	dec.SetMaxDynamicTableSize(100)

	var block []byte
	block = appendInt(block, 5, 0x20, 4096)

	_, err := dec.DecodeFull(block)
	assert.ErrorIs(t, err, errDynamicTableTooLarge)
}

func TestDynamicTableEvictsOnOverflow(t *testing.T) {
	dt := newDynamicTable(64)

	dt.insert("name-one", "value-one") // ~49 bytes, fits
	assert.Equal(t, 1, dt.len())

	dt.insert("name-two", "value-two") // evicts the first to fit budget
	assert.Equal(t, 1, dt.len())

	_, ok := dt.get(1)
	assert.True(t, ok)
}
