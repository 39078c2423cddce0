package http2

import (
	"github.com/valyala/bytebufferpool"

	"github.com/crosshttp/h2c/hpack"
)

// StreamState is one of the seven states in RFC 7540 section 5.1's stream
// lifecycle.
type StreamState int8

const (
	StreamIdle StreamState = iota
	StreamReservedLocal
	StreamReservedRemote
	StreamOpen
	StreamHalfClosedLocal
	StreamHalfClosedRemote
	StreamClosed
)

func (ss StreamState) String() string {
	switch ss {
	case StreamIdle:
		return "idle"
	case StreamReservedLocal:
		return "reserved(local)"
	case StreamReservedRemote:
		return "reserved(remote)"
	case StreamOpen:
		return "open"
	case StreamHalfClosedLocal:
		return "half-closed(local)"
	case StreamHalfClosedRemote:
		return "half-closed(remote)"
	case StreamClosed:
		return "closed"
	}
	return "unknown"
}

// continuationKind records which frame sequence a stream is in the middle
// of; CONTINUATION frames are only legal while it is non-zero.
type continuationKind int8

const (
	continuationNone continuationKind = iota
	continuationHeaders
	continuationPushPromise
)

// pendingRequest is the coordinator-side handle a caller blocks on while a
// request is in flight. The engine delivers exactly once, then the handle
// is discarded; a caller that stopped listening (ctx canceled) is not an
// error for the engine, the send below is non-blocking.
type pendingRequest struct {
	sink chan *Response
	errc chan error
}

func (p *pendingRequest) deliver(resp *Response) {
	select {
	case p.sink <- resp:
	default:
	}
}

// Stream is one HTTP/2 stream's protocol state, mutated only by the
// connection engine goroutine that owns it.
type Stream struct {
	id    StreamID
	state StreamState

	sendWindow int64
	recvWindow int64

	headersBuffer    []byte
	continuation     continuationKind
	pendingEndStream bool // END_STREAM flag on the HEADERS a pending CONTINUATION sequence belongs to

	respHeaders  []hpack.HeaderField
	trailers     []hpack.HeaderField
	statusCode   int
	sawHeaders   bool // response opening HEADERS decoded
	sawEndStream bool

	body bytebufferpool.ByteBuffer

	pending *pendingRequest
}

func newStream(id StreamID, initialSendWindow, initialRecvWindow int64) *Stream {
	return &Stream{
		id:         id,
		state:      StreamIdle,
		sendWindow: initialSendWindow,
		recvWindow: initialRecvWindow,
	}
}

func (s *Stream) reset() {
	s.headersBuffer = s.headersBuffer[:0]
	s.respHeaders = s.respHeaders[:0]
	s.trailers = s.trailers[:0]
	s.continuation = continuationNone
	s.pendingEndStream = false
	s.statusCode = 0
	s.sawHeaders = false
	s.sawEndStream = false
	s.body.Reset()
	s.pending = nil
}

// transition applies the RFC 7540 section 5.1 state table to one frame,
// sent or received. send is true for a locally-emitted frame, false for
// one received from the peer.
func (s *Stream) transition(send bool, ft FrameType, endStream, endHeadersFrame bool) error {
	switch ft {
	case FrameResetStream:
		if s.state == StreamIdle {
			return NewError(s.id, ProtocolError, "RST_STREAM on an idle stream")
		}
		s.state = StreamClosed
		return nil
	case FramePriority, FrameWindowUpdate:
		// legal in almost every state, including Closed; no transition.
		return nil
	}

	switch s.state {
	case StreamIdle:
		switch ft {
		case FrameHeaders:
			if send {
				s.state = StreamOpen
			} else {
				s.state = StreamOpen
			}
			if endStream {
				if send {
					s.state = StreamHalfClosedLocal
				} else {
					s.state = StreamHalfClosedRemote
				}
			}
		case FramePushPromise:
			if send {
				s.state = StreamReservedLocal
			} else {
				s.state = StreamReservedRemote
			}
		default:
			return NewError(s.id, ProtocolError, "unexpected frame on an idle stream")
		}

	case StreamReservedLocal:
		if !send || ft != FrameHeaders {
			return NewError(s.id, ProtocolError, "unexpected frame on a locally reserved stream")
		}
		s.state = StreamHalfClosedRemote

	case StreamReservedRemote:
		if send || ft != FrameHeaders {
			return NewError(s.id, ProtocolError, "unexpected frame on a remotely reserved stream")
		}
		s.state = StreamHalfClosedLocal

	case StreamOpen:
		if endStream {
			if send {
				s.state = StreamHalfClosedLocal
			} else {
				s.state = StreamHalfClosedRemote
			}
		}

	case StreamHalfClosedLocal:
		if !send && endStream {
			s.state = StreamClosed
		}

	case StreamHalfClosedRemote:
		if send && endStream {
			s.state = StreamClosed
		} else if !send {
			return NewError(s.id, StreamClosedError, "frame received on a half-closed(remote) stream")
		}

	case StreamClosed:
		return NewError(s.id, StreamClosedError, "frame received on a closed stream")
	}

	return nil
}

// appendHeaderFragment accumulates a HEADERS/PUSH_PROMISE/CONTINUATION
// fragment, decoding the full block once END_HEADERS arrives.
func (s *Stream) appendHeaderFragment(b []byte, endHeaders bool, kind continuationKind) {
	s.headersBuffer = append(s.headersBuffer, b...)
	if endHeaders {
		s.continuation = continuationNone
	} else {
		s.continuation = kind
	}
}

// responseReady reports whether enough of the response has arrived to hand
// a Response to the waiting caller: END_STREAM observed and the opening
// HEADERS block already decoded.
func (s *Stream) responseReady() bool {
	return s.sawEndStream && s.sawHeaders
}

func (s *Stream) buildResponse() *Response {
	resp := AcquireResponse()
	resp.StatusCode = s.statusCode
	resp.Headers = append(resp.Headers[:0], s.respHeaders...)
	resp.Trailers = append(resp.Trailers[:0], s.trailers...)
	resp.SetBody(s.body.Bytes())
	return resp
}
