package http2

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamsAllocateIsOddAndMonotonic(t *testing.T) {
	s := newStreams()

	first, err := s.allocate(65535, 65535)
	assert.NoError(t, err)
	assert.Equal(t, StreamID(3), first.id)

	second, err := s.allocate(65535, 65535)
	assert.NoError(t, err)
	assert.Equal(t, StreamID(5), second.id)

	assert.Equal(t, 2, s.len())
}

func TestStreamsAllocateExhaustionReturnsOutOfStreamIds(t *testing.T) {
	s := newStreams()
	s.nextID = U31Max - 1

	_, err := s.allocate(65535, 65535)
	assert.ErrorIs(t, err, ErrOutOfStreamIds)
}

func TestStreamsGetAndDelete(t *testing.T) {
	s := newStreams()
	strm, err := s.allocate(65535, 65535)
	assert.NoError(t, err)

	got, ok := s.get(strm.id)
	assert.True(t, ok)
	assert.Same(t, strm, got)

	s.delete(strm.id)
	_, ok = s.get(strm.id)
	assert.False(t, ok)
	assert.Equal(t, 0, s.len())
}

func TestStreamsRangeOpenVisitsEveryStream(t *testing.T) {
	s := newStreams()
	_, err := s.allocate(65535, 65535)
	assert.NoError(t, err)
	_, err = s.allocate(65535, 65535)
	assert.NoError(t, err)

	seen := 0
	s.rangeOpen(func(*Stream) { seen++ })
	assert.Equal(t, 2, seen)
}
