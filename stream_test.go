package http2

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crosshttp/h2c/hpack"
)

func TestStreamTransitionClientRequestResponse(t *testing.T) {
	s := newStream(3, 65535, 65535)
	assert.Equal(t, StreamIdle, s.state)

	assert.NoError(t, s.transition(true, FrameHeaders, false, true))
	assert.Equal(t, StreamOpen, s.state)

	assert.NoError(t, s.transition(true, FrameData, true, false))
	assert.Equal(t, StreamHalfClosedLocal, s.state)

	assert.NoError(t, s.transition(false, FrameHeaders, false, true))
	assert.Equal(t, StreamHalfClosedLocal, s.state)

	assert.NoError(t, s.transition(false, FrameData, true, false))
	assert.Equal(t, StreamClosed, s.state)
}

func TestStreamTransitionBothEndStream(t *testing.T) {
	s := newStream(3, 65535, 65535)

	assert.NoError(t, s.transition(true, FrameHeaders, true, true))
	assert.Equal(t, StreamHalfClosedLocal, s.state)

	assert.NoError(t, s.transition(false, FrameHeaders, true, true))
	assert.Equal(t, StreamClosed, s.state)
}

func TestStreamTransitionFrameOnClosedIsStreamClosedError(t *testing.T) {
	s := newStream(3, 65535, 65535)
	assert.NoError(t, s.transition(true, FrameHeaders, true, true))
	assert.NoError(t, s.transition(false, FrameHeaders, true, true))
	assert.Equal(t, StreamClosed, s.state)

	err := s.transition(false, FrameData, false, false)
	var se *StreamError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, StreamClosedError, se.Code)
}

func TestStreamTransitionResetStreamOnIdleIsProtocolError(t *testing.T) {
	s := newStream(3, 65535, 65535)

	err := s.transition(false, FrameResetStream, false, false)
	var se *StreamError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, ProtocolError, se.Code)
}

func TestStreamTransitionPriorityAndWindowUpdateAlwaysLegal(t *testing.T) {
	s := newStream(3, 65535, 65535)
	assert.NoError(t, s.transition(true, FrameHeaders, true, true))
	assert.NoError(t, s.transition(false, FrameHeaders, true, true))
	assert.Equal(t, StreamClosed, s.state)

	assert.NoError(t, s.transition(false, FramePriority, false, false))
	assert.NoError(t, s.transition(false, FrameWindowUpdate, false, false))
	assert.Equal(t, StreamClosed, s.state)
}

func TestAppendHeaderFragmentLocksUntilEndHeaders(t *testing.T) {
	s := newStream(3, 65535, 65535)

	s.appendHeaderFragment([]byte("abc"), false, continuationHeaders)
	assert.Equal(t, continuationHeaders, s.continuation)

	s.appendHeaderFragment([]byte("def"), true, continuationHeaders)
	assert.Equal(t, continuationNone, s.continuation)
	assert.Equal(t, []byte("abcdef"), s.headersBuffer)
}

func TestResponseReadyRequiresHeadersAndEndStream(t *testing.T) {
	s := newStream(3, 65535, 65535)
	assert.False(t, s.responseReady())

	s.sawHeaders = true
	assert.False(t, s.responseReady())

	s.sawEndStream = true
	assert.True(t, s.responseReady())
}

func TestBuildResponseCopiesAccumulatedState(t *testing.T) {
	s := newStream(3, 65535, 65535)
	s.statusCode = 200
	s.respHeaders = []hpack.HeaderField{{Name: "content-type", Value: "text/plain"}}
	s.body.Write([]byte("hello"))

	resp := s.buildResponse()
	defer ReleaseResponse(resp)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "hello", string(resp.Body()))
	assert.Len(t, resp.Headers, 1)
	assert.Equal(t, "content-type", resp.Headers[0].Name)
}

func TestPendingRequestDeliverIsNonBlocking(t *testing.T) {
	p := &pendingRequest{sink: make(chan *Response), errc: make(chan error)}

	// Nobody is listening; deliver must not block.
	resp := AcquireResponse()
	p.deliver(resp)
}
