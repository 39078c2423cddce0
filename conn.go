package http2

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/crosshttp/h2c/hpack"
)

// http2Preface is the connection preface every client sends before its
// first SETTINGS frame, confirming to the server that this is HTTP/2.
//
// https://tools.ietf.org/html/rfc7540#section-3.5
var http2Preface = []byte("PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n")

// ErrNoAvailableStreams is returned to a caller whose request arrived
// while the connection already has MAX_CONCURRENT_STREAMS open; retry on
// a different connection or once one finishes.
var ErrNoAvailableStreams = errors.New("http2: no available stream slots on this connection")

// ErrPingTimeout is the local failure recorded when the peer misses three
// consecutive PING ACKs.
var ErrPingTimeout = errors.New("http2: peer missed too many PING ACKs")

// outgoingRequest is how Client hands a request to the engine goroutine:
// a request plus the single-shot channels its caller is waiting on.
type outgoingRequest struct {
	req  *Request
	sink chan *Response
	errc chan error
}

type frameResult struct {
	fr  *FrameHeader
	err error
}

// Conn is one HTTP/2 connection's engine: a single goroutine (run) that
// owns every piece of mutable connection and stream state — the HPACK
// tables, the stream table, both flow control windows — fed by exactly
// one reader-pump goroutine that only parses frames off the wire. No
// mutex guards any of this; the single-mutator rule is the lock.
type Conn struct {
	c  net.Conn
	br *bufio.Reader
	bw *bufio.Writer

	enc *hpack.Encoder
	dec *hpack.Decoder

	streams *Streams

	ourSettings      *Settings
	peer             PeerSettings
	ourInitialWindow uint32
	recvMaxFrameSize uint32

	connSendWindow int64
	connRecvWindow int64
	maxWindow      int64

	handshakeComplete bool

	continuationStream StreamID

	goAwayReceived   bool
	lastGoAwayStream StreamID

	inbox   chan *outgoingRequest
	frameCh chan frameResult

	pingInterval time.Duration
	disableAcks  bool
	unacked      int

	lastErr      error
	onDisconnect func(c *Conn)
	closed       uint32

	log *zap.Logger
}

// NewConn wraps an already-established net.Conn (already past ALPN
// negotiation, if any) in an HTTP/2 engine. Call Handshake before using it.
func NewConn(c net.Conn, opts ConnOpts) *Conn {
	opts.setDefaults()

	return &Conn{
		c:  c,
		br: bufio.NewReaderSize(c, 1<<16),
		bw: bufio.NewWriterSize(c, 1<<16),

		enc: hpack.NewEncoder(),
		dec: hpack.NewDecoder(),

		streams: newStreams(),

		ourSettings:      buildOurSettings(opts),
		peer:             NewPeerSettings(),
		ourInitialWindow: opts.InitialWindowSize,
		recvMaxFrameSize: opts.MaxFrameSize,

		connSendWindow: 65535,
		connRecvWindow: 65535,
		maxWindow:      defaultConnWindow,

		inbox:   make(chan *outgoingRequest, 128),
		frameCh: make(chan frameResult, 128),

		pingInterval: opts.PingInterval,
		disableAcks:  opts.DisablePingChecking,
		onDisconnect: opts.OnDisconnect,

		log: opts.Logger,
	}
}

func buildOurSettings(opts ConnOpts) *Settings {
	st := &Settings{}
	st.Add(EnablePush, 0)
	st.Add(InitialWindowSize, opts.InitialWindowSize)
	st.Add(MaxFrameSize, opts.MaxFrameSize)
	if opts.MaxHeaderListSize > 0 {
		st.Add(MaxHeaderListSize, opts.MaxHeaderListSize)
	}
	return st
}

// Handshake writes the connection preface and our opening SETTINGS,
// blocks for the peer's opening SETTINGS, and once both sides are
// synchronized spawns the reader pump and the engine loop. The caller
// must not touch br/bw again after this returns successfully.
func (c *Conn) Handshake() error {
	if err := c.writePreface(); err != nil {
		_ = c.c.Close()
		return err
	}

	fr, err := ReadFrameFromWithSize(c.br, c.recvMaxFrameSize)
	if err != nil {
		_ = c.c.Close()
		return err
	}
	defer ReleaseFrameHeader(fr)

	if fr.Type() != FrameSettings {
		_ = c.c.Close()
		return NewConnError(ProtocolError, "first frame from the peer was not SETTINGS")
	}

	st := fr.Body().(*Settings)
	if st.IsAck() {
		_ = c.c.Close()
		return NewConnError(ProtocolError, "peer sent a SETTINGS ACK before sending its own SETTINGS")
	}

	c.applySettings(st)

	if err := c.sendSettingsAck(); err != nil {
		_ = c.c.Close()
		return err
	}

	c.handshakeComplete = true
	c.log.Info("http2 handshake complete",
		zap.Uint32("peer_initial_window", c.peer.InitialWindowSize),
		zap.Uint32("peer_max_frame_size", c.peer.MaxFrameSize))

	go c.readerPump()
	go c.run()

	return nil
}

func (c *Conn) writePreface() error {
	if _, err := c.bw.Write(http2Preface); err != nil {
		return err
	}

	fr := AcquireFrameHeader()
	st := AcquireFrame(FrameSettings).(*Settings)
	c.ourSettings.CopyTo(st)
	fr.SetBody(st)
	_, err := fr.WriteTo(c.bw)
	ReleaseFrameHeader(fr)
	if err != nil {
		return err
	}

	// grow our advertised connection window up front, so a burst of DATA
	// right after the handshake doesn't immediately stall on flow control.
	increment := c.maxWindow - c.connRecvWindow
	if increment > 0 {
		if err := c.sendWindowUpdate(0, int(increment)); err != nil {
			return err
		}
		c.connRecvWindow = c.maxWindow
	}

	return c.bw.Flush()
}

func (c *Conn) sendSettingsAck() error {
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)

	ack := AcquireFrame(FrameSettings).(*Settings)
	ack.SetAck(true)
	fr.SetBody(ack)

	if _, err := fr.WriteTo(c.bw); err != nil {
		return err
	}
	return c.bw.Flush()
}

// applySettings folds a peer SETTINGS frame into c.peer, adjusting every
// open stream's send window by the delta if INITIAL_WINDOW_SIZE changed
// (RFC 7540 section 6.9.2) and resizing the encoder's dynamic table if
// HEADER_TABLE_SIZE changed.
func (c *Conn) applySettings(st *Settings) {
	prev := c.peer.Apply(st)

	delta := int64(c.peer.InitialWindowSize) - int64(prev)
	if delta != 0 {
		c.streams.rangeOpen(func(s *Stream) {
			s.sendWindow += delta
		})
	}

	if v, ok := st.Get(HeaderTableSize); ok {
		c.enc.SetMaxDynamicTableSize(v)
	}
}

// readerPump only parses frames off the wire; it never touches HPACK
// state or any Stream, so it can run concurrently with the engine
// goroutine reading that state. An unknown frame type or a StreamError
// leaves the reader at the next frame boundary, so the pump keeps going.
func (c *Conn) readerPump() {
	for {
		fr, err := ReadFrameFromWithSize(c.br, c.recvMaxFrameSize)
		c.frameCh <- frameResult{fr: fr, err: err}
		var streamErr *StreamError
		if err != nil && !errors.Is(err, ErrUnknownFrameType) && !errors.As(err, &streamErr) {
			return
		}
	}
}

// run is the engine goroutine: the sole mutator of every piece of
// connection and stream state. It multiplexes three sources over a
// single select, per the one-mutator-goroutine design: frames from the
// reader pump, outgoing requests (only once the handshake is done, via
// the nil-channel trick), and a keepalive ping ticker.
func (c *Conn) run() {
	defer c.teardown()

	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		var inbox chan *outgoingRequest
		if c.handshakeComplete && !c.goAwayReceived {
			inbox = c.inbox
		}

		select {
		case res := <-c.frameCh:
			if res.err != nil {
				if errors.Is(res.err, ErrUnknownFrameType) {
					if c.continuationStream != 0 {
						c.lastErr = NewConnError(ProtocolError, "unknown frame type received mid-CONTINUATION")
						return
					}
					frameHeaderPool.Put(res.fr)
					continue
				}

				var streamErr *StreamError
				if errors.As(res.err, &streamErr) {
					c.resetStream(streamErr)
					continue
				}
				c.lastErr = res.err
				return
			}

			err := c.dispatch(res.fr)
			ReleaseFrameHeader(res.fr)

			if err != nil {
				var streamErr *StreamError
				if errors.As(err, &streamErr) {
					c.resetStream(streamErr)
					continue
				}
				c.lastErr = err
				return
			}

		case out, ok := <-inbox:
			if !ok {
				continue
			}
			if err := c.writeRequest(out); err != nil {
				c.lastErr = err
				return
			}

		case <-ticker.C:
			if err := c.sendPing(); err != nil {
				c.lastErr = err
				return
			}
			if !c.disableAcks && c.unacked >= 3 {
				c.lastErr = ErrPingTimeout
				return
			}
		}
	}
}

// dispatch routes one fully-read frame to its connection- or
// stream-level handler, enforcing the CONTINUATION lock first: once a
// HEADERS/PUSH_PROMISE block is incomplete, only a CONTINUATION on the
// same stream may legally follow.
func (c *Conn) dispatch(fr *FrameHeader) error {
	if c.continuationStream != 0 {
		if StreamID(fr.Stream()) != c.continuationStream || fr.Type() != FrameContinuation {
			return NewConnError(ProtocolError, "frame received while a CONTINUATION sequence was pending")
		}
	}

	if fr.Stream() == 0 {
		return c.dispatchConn(fr)
	}
	return c.dispatchStream(StreamID(fr.Stream()), fr)
}

func (c *Conn) dispatchConn(fr *FrameHeader) error {
	switch fr.Type() {
	case FrameSettings:
		st := fr.Body().(*Settings)
		if st.IsAck() {
			return nil
		}
		c.applySettings(st)
		return c.sendSettingsAck()

	case FramePing:
		return c.handlePing(fr.Body().(*Ping))

	case FrameGoAway:
		return c.handleGoAway(fr.Body().(*GoAway))

	case FrameWindowUpdate:
		wu := fr.Body().(*WindowUpdate)
		if wu.Increment() == 0 {
			return NewConnError(ProtocolError, "WINDOW_UPDATE increment of 0 on stream 0")
		}
		c.connSendWindow += int64(wu.Increment())
		if c.connSendWindow > U31Max {
			return NewConnError(FlowControlError, "connection send window exceeded 2^31-1")
		}
		return nil

	default:
		return NewConnError(ProtocolError, fmt.Sprintf("%s frame is not valid on stream 0", fr.Type()))
	}
}

func (c *Conn) dispatchStream(sid StreamID, fr *FrameHeader) error {
	switch fr.Type() {
	case FrameSettings, FramePing, FrameGoAway:
		return NewConnError(ProtocolError, fmt.Sprintf("%s frame must have stream id 0", fr.Type()))
	}

	strm, ok := c.streams.get(sid)
	if !ok {
		switch fr.Type() {
		case FramePriority, FrameWindowUpdate, FrameResetStream:
			// may legitimately race with us having already completed
			// and forgotten this stream.
			return nil
		case FramePushPromise:
			pp := fr.Body().(*PushPromise)
			c.streams.observePeerStreamID(StreamID(pp.stream))
			c.refusePush(pp.stream)
			return nil
		}
		return NewConnError(ProtocolError, "frame references a stream id this connection never opened")
	}

	switch fr.Type() {
	case FrameHeaders:
		return c.handleStreamHeaders(strm, fr.Body().(*Headers))

	case FrameContinuation:
		return c.handleContinuation(strm, fr.Body().(*Continuation))

	case FrameData:
		return c.handleData(strm, fr.Body().(*Data), fr.Len())

	case FrameResetStream:
		rst := fr.Body().(*RstStream)
		if err := strm.transition(false, FrameResetStream, false, false); err != nil {
			return err
		}
		if strm.pending != nil {
			deliverErr(strm.pending.errc, NewStreamError(sid, rst.Code(), "stream reset by peer"))
		}
		c.streams.delete(sid)
		return nil

	case FramePriority:
		return nil

	case FrameWindowUpdate:
		wu := fr.Body().(*WindowUpdate)
		if wu.Increment() == 0 {
			return NewError(sid, ProtocolError, "WINDOW_UPDATE increment of 0")
		}
		strm.sendWindow += int64(wu.Increment())
		if strm.sendWindow > U31Max {
			return NewError(sid, FlowControlError, "stream send window exceeded 2^31-1")
		}
		return nil

	case FramePushPromise:
		pp := fr.Body().(*PushPromise)
		c.streams.observePeerStreamID(StreamID(pp.stream))
		c.refusePush(pp.stream)
		return nil
	}

	return nil
}

// refusePush answers a server push with RST_STREAM(REFUSED_STREAM) on the
// promised stream id; this client never consumes pushed responses.
func (c *Conn) refusePush(promisedID uint32) {
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)

	fr.SetStream(promisedID)
	rst := AcquireFrame(FrameResetStream).(*RstStream)
	rst.SetCode(RefusedStreamError)
	fr.SetBody(rst)

	if _, err := fr.WriteTo(c.bw); err == nil {
		_ = c.bw.Flush()
	}
}

func (c *Conn) handleStreamHeaders(strm *Stream, h *Headers) error {
	strm.pendingEndStream = h.EndStream()
	strm.appendHeaderFragment(h.Headers(), h.EndHeaders(), continuationHeaders)

	if !h.EndHeaders() {
		c.continuationStream = strm.id
		return nil
	}
	return c.finishHeaderBlock(strm)
}

func (c *Conn) handleContinuation(strm *Stream, cont *Continuation) error {
	if c.continuationStream != strm.id {
		return NewConnError(ProtocolError, "CONTINUATION received without a pending HEADERS/PUSH_PROMISE")
	}

	strm.appendHeaderFragment(cont.Headers(), cont.EndHeaders(), continuationHeaders)
	if !cont.EndHeaders() {
		return nil
	}

	c.continuationStream = 0
	return c.finishHeaderBlock(strm)
}

// finishHeaderBlock runs once a HEADERS (+ its CONTINUATIONs, if any)
// completes with END_HEADERS: decode the accumulated block, apply it as
// either the opening response headers or trailers, and hand the response
// to its waiting caller if END_STREAM also arrived.
func (c *Conn) finishHeaderBlock(strm *Stream) error {
	fields, err := c.dec.DecodeFull(strm.headersBuffer)
	strm.headersBuffer = strm.headersBuffer[:0]
	if err != nil {
		return NewConnError(CompressionError, err.Error())
	}

	endStream := strm.pendingEndStream
	if err := strm.transition(false, FrameHeaders, endStream, true); err != nil {
		return err
	}

	if !strm.sawHeaders {
		if err := applyResponseHeaders(strm, fields); err != nil {
			return err
		}
		strm.sawHeaders = true
	} else {
		for _, f := range fields {
			if len(f.Name) > 0 && f.Name[0] == ':' {
				return NewError(strm.id, ProtocolError, "trailers must not include pseudo-headers")
			}
		}
		strm.trailers = append(strm.trailers, fields...)
	}

	if endStream {
		strm.sawEndStream = true
	}

	return c.maybeComplete(strm)
}

func applyResponseHeaders(strm *Stream, fields []hpack.HeaderField) error {
	for _, f := range fields {
		if f.Name == ":status" {
			n := 0
			for _, ch := range []byte(f.Value) {
				if ch < '0' || ch > '9' {
					return NewError(strm.id, ProtocolError, "malformed :status pseudo-header")
				}
				n = n*10 + int(ch-'0')
			}
			strm.statusCode = n
			continue
		}
		if len(f.Name) > 0 && f.Name[0] == ':' {
			return NewError(strm.id, ProtocolError, "unexpected pseudo-header in a response")
		}
		strm.respHeaders = append(strm.respHeaders, f)
	}
	return nil
}

func (c *Conn) handleData(strm *Stream, data *Data, wireLen int) error {
	if err := strm.transition(false, FrameData, data.EndStream(), false); err != nil {
		return err
	}

	if n := data.Len(); n > 0 {
		strm.body.Write(data.Data())
	}

	// flow control is accounted on the wire length, padding included,
	// not just the payload delivered to the caller (RFC 7540 §6.9).
	if wireLen > 0 {
		if err := c.sendWindowUpdate(strm.id, wireLen); err != nil {
			return err
		}
		if err := c.sendWindowUpdate(0, wireLen); err != nil {
			return err
		}
	}

	if data.EndStream() {
		strm.sawEndStream = true
	}

	return c.maybeComplete(strm)
}

func (c *Conn) maybeComplete(strm *Stream) error {
	if !strm.responseReady() {
		return nil
	}

	resp := strm.buildResponse()
	if strm.pending != nil {
		strm.pending.deliver(resp)
	} else {
		ReleaseResponse(resp)
	}

	c.streams.delete(strm.id)
	return nil
}

func (c *Conn) handlePing(ping *Ping) error {
	if ping.IsAck() {
		if c.unacked > 0 {
			c.unacked--
		}
		return nil
	}

	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)

	ack := AcquireFrame(FramePing).(*Ping)
	ack.SetData(ping.Data())
	ack.SetAck(true)
	fr.SetBody(ack)

	if _, err := fr.WriteTo(c.bw); err != nil {
		return err
	}
	return c.bw.Flush()
}

func (c *Conn) handleGoAway(ga *GoAway) error {
	c.goAwayReceived = true
	c.lastGoAwayStream = StreamID(ga.Stream())

	c.log.Info("received GOAWAY",
		zap.Uint32("last_stream_id", ga.Stream()),
		zap.String("code", ga.Code().String()),
		zap.ByteString("debug_data", ga.Data()))

	// streams the peer never processed are safe to retry elsewhere;
	// streams at or below last_stream_id may have partially succeeded.
	var notReceived []StreamID
	c.streams.rangeOpen(func(s *Stream) {
		if s.id > c.lastGoAwayStream {
			notReceived = append(notReceived, s.id)
		}
	})
	for _, id := range notReceived {
		if strm, ok := c.streams.get(id); ok && strm.pending != nil {
			deliverErr(strm.pending.errc, ErrNoAvailableStreams)
		}
	}

	return nil
}

func (c *Conn) sendWindowUpdate(streamID StreamID, increment int) error {
	if increment <= 0 {
		return nil
	}

	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)

	fr.SetStream(uint32(streamID))
	wu := AcquireFrame(FrameWindowUpdate).(*WindowUpdate)
	wu.SetIncrement(increment)
	fr.SetBody(wu)

	if _, err := fr.WriteTo(c.bw); err != nil {
		return err
	}
	return c.bw.Flush()
}

func (c *Conn) sendPing() error {
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)

	ping := AcquireFrame(FramePing).(*Ping)
	ping.SetCurrentTime()
	fr.SetBody(ping)

	if _, err := fr.WriteTo(c.bw); err != nil {
		return err
	}
	if err := c.bw.Flush(); err != nil {
		return err
	}
	c.unacked++
	return nil
}

// resetStream answers a StreamError by resetting only that stream: the
// connection and its other streams are unaffected.
func (c *Conn) resetStream(se *StreamError) {
	if strm, ok := c.streams.get(se.StreamID); ok {
		if strm.pending != nil {
			deliverErr(strm.pending.errc, se)
		}
		c.streams.delete(se.StreamID)
	}

	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)

	fr.SetStream(uint32(se.StreamID))
	rst := AcquireFrame(FrameResetStream).(*RstStream)
	rst.SetCode(se.Code)
	fr.SetBody(rst)

	if _, err := fr.WriteTo(c.bw); err == nil {
		_ = c.bw.Flush()
	}
}

// writeRequest allocates a stream for out.req and writes its HEADERS (and
// DATA, if it has a body). A refusal that happens before any bytes hit
// the wire (no stream slots, id space exhausted) is reported to the
// caller and is not fatal to the connection; neither is a body that runs
// out of send window, which resets only that stream and fails its caller
// with a FLOW_CONTROL_ERROR StreamError. Any other error once WriteTo
// touches c.bw is a real I/O failure and tears the connection down.
func (c *Conn) writeRequest(out *outgoingRequest) error {
	if uint32(c.streams.len()) >= c.peer.MaxConcurrentStreams {
		deliverErr(out.errc, ErrNoAvailableStreams)
		return nil
	}

	strm, err := c.streams.allocate(int64(c.peer.InitialWindowSize), int64(c.ourInitialWindow))
	if err != nil {
		deliverErr(out.errc, err)
		return nil
	}
	strm.pending = &pendingRequest{sink: out.sink, errc: out.errc}

	hasBody := len(out.req.Body()) > 0
	endStream := !hasBody

	if err := strm.transition(true, FrameHeaders, endStream, true); err != nil {
		c.streams.delete(strm.id)
		deliverErr(out.errc, err)
		return nil
	}

	if err := c.writeRequestHeaders(strm, out.req, endStream); err != nil {
		c.streams.delete(strm.id)
		return err
	}

	if hasBody {
		if err := c.writeRequestBody(strm, out.req.Body()); err != nil {
			var streamErr *StreamError
			if errors.As(err, &streamErr) {
				c.resetStream(streamErr)
				return nil
			}
			c.streams.delete(strm.id)
			return err
		}
	}

	return nil
}

func (c *Conn) writeRequestHeaders(strm *Stream, req *Request, endStream bool) error {
	var block []byte
	block = c.enc.WriteField(block, hpack.HeaderField{Name: ":method", Value: req.Method})
	block = c.enc.WriteField(block, hpack.HeaderField{Name: ":scheme", Value: req.Scheme})
	block = c.enc.WriteField(block, hpack.HeaderField{Name: ":authority", Value: req.Authority})
	block = c.enc.WriteField(block, hpack.HeaderField{Name: ":path", Value: req.Path})
	for _, hf := range req.Headers {
		block = c.enc.WriteField(block, hf)
	}

	return c.writeHeaderBlock(strm.id, block, endStream)
}

// writeHeaderBlock splits block into a HEADERS frame followed by as many
// CONTINUATION frames as needed to respect the peer's MAX_FRAME_SIZE.
func (c *Conn) writeHeaderBlock(id StreamID, block []byte, endStream bool) error {
	max := int(c.peer.MaxFrameSize)
	if max <= 0 {
		max = DefaultMaxFrameSize
	}

	first := true
	for {
		chunk := block
		last := true
		if len(block) > max {
			chunk = block[:max]
			last = false
		}
		block = block[len(chunk):]

		fr := AcquireFrameHeader()
		fr.SetStream(uint32(id))

		if first {
			h := AcquireFrame(FrameHeaders).(*Headers)
			h.SetHeaders(chunk)
			h.SetEndStream(endStream)
			h.SetEndHeaders(last)
			fr.SetBody(h)
			first = false
		} else {
			cont := AcquireFrame(FrameContinuation).(*Continuation)
			cont.SetHeader(chunk)
			cont.SetEndHeaders(last)
			fr.SetBody(cont)
		}

		_, err := fr.WriteTo(c.bw)
		ReleaseFrameHeader(fr)
		if err != nil {
			return err
		}

		if last {
			break
		}
	}

	return c.bw.Flush()
}

// writeRequestBody chunks body into DATA frames, clamped to the smallest
// of the peer's frame size and the remaining stream/connection send
// windows. A body that runs out of either window before a WINDOW_UPDATE
// arrives fails outright: this engine does not park a half-sent request
// waiting on flow control.
func (c *Conn) writeRequestBody(strm *Stream, body []byte) error {
	maxFrame := int(c.peer.MaxFrameSize)
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}

	for len(body) > 0 {
		n := len(body)
		if n > maxFrame {
			n = maxFrame
		}
		if int64(n) > strm.sendWindow {
			n = int(strm.sendWindow)
		}
		if int64(n) > c.connSendWindow {
			n = int(c.connSendWindow)
		}
		if n <= 0 {
			return NewError(strm.id, FlowControlError, "request body exceeds the negotiated flow control window")
		}

		chunk := body[:n]
		body = body[n:]

		fr := AcquireFrameHeader()
		fr.SetStream(uint32(strm.id))

		data := AcquireFrame(FrameData).(*Data)
		data.SetData(chunk)
		data.SetEndStream(len(body) == 0)
		fr.SetBody(data)

		_, err := fr.WriteTo(c.bw)
		ReleaseFrameHeader(fr)
		if err != nil {
			return err
		}

		strm.sendWindow -= int64(n)
		c.connSendWindow -= int64(n)
	}

	if err := c.bw.Flush(); err != nil {
		return err
	}

	return strm.transition(true, FrameData, true, false)
}

// Send queues req on the engine and blocks until a Response arrives, the
// engine fails, or ctx is canceled. Dropping out of Send on ctx
// cancellation is benign: the sink is never read again, and the engine's
// non-blocking deliver simply discards the result.
func (c *Conn) Send(ctx context.Context, req *Request) (*Response, error) {
	if atomic.LoadUint32(&c.closed) != 0 {
		return nil, ErrTransportClosed
	}

	out := &outgoingRequest{
		req:  req,
		sink: make(chan *Response, 1),
		errc: make(chan error, 1),
	}

	select {
	case c.inbox <- out:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-out.sink:
		return resp, nil
	case err := <-out.errc:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close sends a GOAWAY with NO_ERROR and closes the underlying connection.
// Safe to call more than once or concurrently with the engine shutting
// down on its own.
func (c *Conn) Close() error {
	return c.closeWithCode(NoError)
}

// closeWithCode is Close with the GOAWAY error code chosen by the caller.
func (c *Conn) closeWithCode(code ErrorCode) error {
	if !atomic.CompareAndSwapUint32(&c.closed, 0, 1) {
		return nil
	}

	fr := AcquireFrameHeader()
	ga := AcquireFrame(FrameGoAway).(*GoAway)
	ga.SetStream(uint32(c.streams.lastPeerStreamID))
	ga.SetCode(code)
	fr.SetBody(ga)

	_, werr := fr.WriteTo(c.bw)
	if werr == nil {
		werr = c.bw.Flush()
	}
	ReleaseFrameHeader(fr)

	cerr := c.c.Close()

	if c.onDisconnect != nil {
		c.onDisconnect(c)
	}

	if werr != nil {
		return werr
	}
	return cerr
}

// teardown runs once when run returns for any reason: every stream still
// awaiting a response is told why, then the connection is closed with a
// GOAWAY carrying the ConnError's code (NO_ERROR for any other cause).
func (c *Conn) teardown() {
	err := c.lastErr
	if err == nil {
		err = ErrTransportClosed
	} else {
		c.log.Warn("http2 connection closed on error", zap.Error(err))
	}

	code := NoError
	var connErr *ConnError
	if errors.As(err, &connErr) {
		code = connErr.Code
	}

	c.streams.rangeOpen(func(s *Stream) {
		if s.pending != nil {
			deliverErr(s.pending.errc, err)
		}
	})

	_ = c.closeWithCode(code)
}

func deliverErr(errc chan error, err error) {
	select {
	case errc <- err:
	default:
	}
}
