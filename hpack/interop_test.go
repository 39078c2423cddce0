package hpack

import (
	"testing"

	refhpack "golang.org/x/net/http2/hpack"

	"github.com/stretchr/testify/assert"
)

// These tests confirm this package's wire format is actually HPACK, not
// just self-consistent, by decoding this package's encoder output with an
// independent implementation (and vice versa).

func TestEncoderOutputDecodesWithReferenceImplementation(t *testing.T) {
	enc := NewEncoder()

	fields := []HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":scheme", Value: "https"},
		{Name: ":path", Value: "/index.html"},
		{Name: ":authority", Value: "example.test"},
		{Name: "accept-encoding", Value: "gzip, deflate"},
		{Name: "x-custom-header", Value: "some rather long value to force a literal"},
	}

	var block []byte
	for _, f := range fields {
		block = enc.WriteField(block, f)
	}

	var got []HeaderField
	refDec := refhpack.NewDecoder(4096, func(f refhpack.HeaderField) {
		got = append(got, HeaderField{Name: f.Name, Value: f.Value, Sensitive: f.Sensitive})
	})

	n, err := refDec.Write(block)
	assert.NoError(t, err)
	assert.Equal(t, len(block), n)
	assert.Equal(t, fields, got)
}

func TestReferenceEncoderOutputDecodesHere(t *testing.T) {
	fields := []HeaderField{
		{Name: ":status", Value: "200"},
		{Name: "content-type", Value: "application/json"},
		{Name: "content-length", Value: "1234"},
		{Name: "set-cookie", Value: "a=b; Path=/; HttpOnly", Sensitive: true},
	}

	var buf []byte
	refEnc := refhpack.NewEncoder(newAppendingWriter(&buf))
	for _, f := range fields {
		err := refEnc.WriteField(refhpack.HeaderField{
			Name:      f.Name,
			Value:     f.Value,
			Sensitive: f.Sensitive,
		})
		assert.NoError(t, err)
	}

	dec := NewDecoder()
	got, err := dec.DecodeFull(buf)
	assert.NoError(t, err)
	assert.Equal(t, fields, got)
}

// newAppendingWriter adapts a *[]byte to io.Writer for refhpack.NewEncoder,
// which wants a writer rather than a dst-returning append call.
func newAppendingWriter(dst *[]byte) *appendingWriter {
	return &appendingWriter{dst: dst}
}

type appendingWriter struct {
	dst *[]byte
}

func (w *appendingWriter) Write(p []byte) (int, error) {
	*w.dst = append(*w.dst, p...)
	return len(p), nil
}
