package http2

import (
	"time"

	"go.uber.org/zap"
)

// DefaultPingInterval is how often the engine pings an idle connection to
// detect a dead peer, matching the teacher's keepalive cadence.
const DefaultPingInterval = 30 * time.Second

// defaultHeaderTableSize is the HPACK dynamic table size this client
// advertises absent an override, per RFC 7541 section 4.2's own default.
const defaultHeaderTableSize = 4096

// defaultConnWindow is the connection-level flow control window this
// client grows to right after the handshake, well above the RFC 7540
// default of 65535 so a single slow WINDOW_UPDATE round trip doesn't
// stall every stream on the connection.
const defaultConnWindow = 1 << 22

// ConnOpts configures a single Conn.
type ConnOpts struct {
	// PingInterval overrides DefaultPingInterval; zero means use the default.
	PingInterval time.Duration
	// DisablePingChecking disables the 3-missed-ping timeout, so a
	// connection is never torn down for lack of PING ACKs.
	DisablePingChecking bool
	// OnDisconnect, if non-nil, fires once when the connection closes.
	OnDisconnect func(c *Conn)
	// InitialWindowSize is the per-stream receive window this client
	// advertises in its opening SETTINGS frame.
	InitialWindowSize uint32
	// MaxFrameSize is the largest frame payload this client accepts.
	MaxFrameSize uint32
	// MaxHeaderListSize bounds the uncompressed size of a header list this
	// client accepts; 0 means unlimited (discouraged, but matches the
	// wire default of "no limit advertised").
	MaxHeaderListSize uint32
	// Logger receives structured connection-lifecycle events. Defaults to
	// a no-op logger.
	Logger *zap.Logger
}

func (o *ConnOpts) setDefaults() {
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.InitialWindowSize == 0 {
		o.InitialWindowSize = U31Max
	}
	if o.MaxFrameSize == 0 {
		o.MaxFrameSize = DefaultMaxFrameSize
	}
	if o.Logger == nil {
		o.Logger = noopLogger
	}
}

// ClientOption configures a Client at construction time.
type ClientOption func(*ConnOpts)

// WithPingInterval overrides the keepalive ping cadence.
func WithPingInterval(d time.Duration) ClientOption {
	return func(o *ConnOpts) { o.PingInterval = d }
}

// WithoutPingChecking disables the 3-missed-ping local timeout.
func WithoutPingChecking() ClientOption {
	return func(o *ConnOpts) { o.DisablePingChecking = true }
}

// WithLogger attaches a structured logger to the connection.
func WithLogger(l *zap.Logger) ClientOption {
	return func(o *ConnOpts) { o.Logger = l }
}

// WithInitialWindowSize overrides the advertised per-stream receive window.
func WithInitialWindowSize(n uint32) ClientOption {
	return func(o *ConnOpts) { o.InitialWindowSize = n }
}

// WithMaxFrameSize overrides the largest frame payload this client accepts.
func WithMaxFrameSize(n uint32) ClientOption {
	return func(o *ConnOpts) { o.MaxFrameSize = n }
}

// WithMaxHeaderListSize bounds the uncompressed size of an accepted header list.
func WithMaxHeaderListSize(n uint32) ClientOption {
	return func(o *ConnOpts) { o.MaxHeaderListSize = n }
}

// WithOnDisconnect registers a callback fired once when the connection closes.
func WithOnDisconnect(fn func(c *Conn)) ClientOption {
	return func(o *ConnOpts) { o.OnDisconnect = fn }
}
