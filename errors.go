package http2

import (
	"errors"
	"fmt"
)

// ErrorCode is one of the RFC 7540 section 7 error codes carried by
// RST_STREAM and GOAWAY frames.
type ErrorCode uint32

const (
	NoError              ErrorCode = 0x0
	ProtocolError        ErrorCode = 0x1
	InternalError        ErrorCode = 0x2
	FlowControlError     ErrorCode = 0x3
	SettingsTimeoutError ErrorCode = 0x4
	StreamClosedError    ErrorCode = 0x5
	FrameSizeError       ErrorCode = 0x6
	RefusedStreamError   ErrorCode = 0x7
	CancelError          ErrorCode = 0x8
	CompressionError     ErrorCode = 0x9
	ConnectError         ErrorCode = 0xa
	EnhanceYourCalmError ErrorCode = 0xb
	InadequateSecurity   ErrorCode = 0xc
	HTTP11RequiredError  ErrorCode = 0xd
)

var errCodeNames = [...]string{
	NoError:              "NO_ERROR",
	ProtocolError:        "PROTOCOL_ERROR",
	InternalError:        "INTERNAL_ERROR",
	FlowControlError:     "FLOW_CONTROL_ERROR",
	SettingsTimeoutError: "SETTINGS_TIMEOUT",
	StreamClosedError:    "STREAM_CLOSED",
	FrameSizeError:       "FRAME_SIZE_ERROR",
	RefusedStreamError:   "REFUSED_STREAM",
	CancelError:          "CANCEL",
	CompressionError:     "COMPRESSION_ERROR",
	ConnectError:         "CONNECT_ERROR",
	EnhanceYourCalmError: "ENHANCE_YOUR_CALM",
	InadequateSecurity:   "INADEQUATE_SECURITY",
	HTTP11RequiredError:  "HTTP_1_1_REQUIRED",
}

func (c ErrorCode) String() string {
	if int(c) < len(errCodeNames) && errCodeNames[c] != "" {
		return errCodeNames[c]
	}
	return fmt.Sprintf("UNKNOWN_ERROR(0x%x)", uint32(c))
}

// Error makes an ErrorCode usable as an errors.Is target for *ConnError
// and *StreamError.
func (c ErrorCode) Error() string {
	return c.String()
}

// ConnError is a connection-level failure: the engine answers it with
// GOAWAY and the connection is torn down. It satisfies errors.Is against
// the ErrorCode it wraps.
type ConnError struct {
	Code   ErrorCode
	Reason string
}

func (e *ConnError) Error() string {
	if e.Reason == "" {
		return "http2: connection error: " + e.Code.String()
	}
	return fmt.Sprintf("http2: connection error: %s: %s", e.Code, e.Reason)
}

func (e *ConnError) Is(target error) bool {
	code, ok := target.(ErrorCode)
	return ok && code == e.Code
}

func NewConnError(code ErrorCode, reason string) *ConnError {
	return &ConnError{Code: code, Reason: reason}
}

// StreamError is a stream-scoped failure: the engine answers it with
// RST_STREAM on that stream only; the connection and its other streams
// are unaffected.
type StreamError struct {
	StreamID StreamID
	Code     ErrorCode
	Reason   string
}

func (e *StreamError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("http2: stream %d error: %s", e.StreamID, e.Code)
	}
	return fmt.Sprintf("http2: stream %d error: %s: %s", e.StreamID, e.Code, e.Reason)
}

func (e *StreamError) Is(target error) bool {
	code, ok := target.(ErrorCode)
	return ok && code == e.Code
}

func NewStreamError(id StreamID, code ErrorCode, reason string) *StreamError {
	return &StreamError{StreamID: id, Code: code, Reason: reason}
}

// NewError builds whichever of ConnError/StreamError fits: a non-zero
// stream id yields a StreamError, a zero one a ConnError. This mirrors
// the teacher's single rst.Error()/goaway helper constructors, which
// did not used to distinguish the two scopes.
func NewError(streamID StreamID, code ErrorCode, reason string) error {
	if streamID == 0 {
		return NewConnError(code, reason)
	}
	return NewStreamError(streamID, code, reason)
}

// Local errors: not part of the wire error taxonomy, never sent to a peer.
var (
	ErrMissingBytes     = errors.New("http2: frame payload is too short for its type")
	ErrUnknownFrameType = errors.New("http2: unknown frame type")
	ErrPayloadExceeds   = errors.New("http2: frame payload exceeds the negotiated maximum size")
	ErrBadPreface       = errors.New("http2: bad connection preface")
	ErrOutOfStreamIds   = errors.New("http2: stream id space exhausted, open a new connection")
	ErrTransportClosed  = errors.New("http2: connection closed")
	ErrLacksAuthority   = errors.New("http2: request URL has no host")
	ErrContinuationLock = errors.New("http2: frame received while a CONTINUATION sequence was pending on another context")
)

// Incomplete names the "not enough bytes yet" condition of a frame parse.
// No function in this package returns it: FrameHeader.ReadFrom reads from
// a blocking *bufio.Reader and waits until the full header and payload
// have arrived.
var Incomplete = errors.New("http2: incomplete frame")
