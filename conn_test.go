package http2

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosshttp/h2c/hpack"
)

// scriptedPeer drives the "server" side of a net.Pipe from the test's
// goroutine, standing in for the recording transport SPEC_FULL.md section 8
// describes: a fixed byte script fed in, frames read back out.
type scriptedPeer struct {
	t  *testing.T
	br *bufio.Reader
	bw *bufio.Writer
}

func newConnPair(t *testing.T, opts ConnOpts) (*Conn, *scriptedPeer) {
	t.Helper()

	clientSide, serverSide := net.Pipe()
	t.Cleanup(func() { clientSide.Close(); serverSide.Close() })

	opts.DisablePingChecking = true
	conn := NewConn(clientSide, opts)
	peer := &scriptedPeer{t: t, br: bufio.NewReader(serverSide), bw: bufio.NewWriter(serverSide)}

	done := make(chan error, 1)
	go func() { done <- conn.Handshake() }()

	peer.expectPreface()
	fr := peer.readFrame()
	require.Equal(t, FrameSettings, fr.Type())
	ReleaseFrameHeader(fr)

	// the engine grows its advertised connection window right after its
	// opening SETTINGS; drain that WINDOW_UPDATE before replying.
	fr = peer.readFrame()
	require.Equal(t, FrameWindowUpdate, fr.Type())
	ReleaseFrameHeader(fr)

	peer.writeFrame(FrameSettings, &Settings{})

	fr = peer.readFrame()
	require.Equal(t, FrameSettings, fr.Type())
	require.True(t, fr.Body().(*Settings).IsAck())
	ReleaseFrameHeader(fr)

	require.NoError(t, <-done)

	return conn, peer
}

func (p *scriptedPeer) expectPreface() {
	buf := make([]byte, len(http2Preface))
	_, err := io.ReadFull(p.br, buf)
	require.NoError(p.t, err)
	require.Equal(p.t, http2Preface, buf)
}

func (p *scriptedPeer) readFrame() *FrameHeader {
	fr, err := ReadFrameFrom(p.br)
	require.NoError(p.t, err)
	return fr
}

func (p *scriptedPeer) writeFrame(kind FrameType, body Frame) {
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	fr.SetBody(body)
	_, err := fr.WriteTo(p.bw)
	require.NoError(p.t, err)
	require.NoError(p.t, p.bw.Flush())
}

func (p *scriptedPeer) writeHeaders(streamID uint32, endStream bool, fields []hpack.HeaderField) {
	enc := hpack.NewEncoder()
	var block []byte
	for _, f := range fields {
		block = enc.WriteField(block, f)
	}

	h := &Headers{}
	h.SetStream(streamID)
	h.SetEndStream(endStream)
	h.SetEndHeaders(true)
	h.SetHeaders(block)

	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	fr.SetStream(streamID)
	fr.SetBody(h)
	_, err := fr.WriteTo(p.bw)
	require.NoError(p.t, err)
	require.NoError(p.t, p.bw.Flush())
}

func (p *scriptedPeer) writeData(streamID uint32, endStream bool, body []byte) {
	d := &Data{}
	d.SetEndStream(endStream)
	d.SetData(body)

	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	fr.SetStream(streamID)
	fr.SetBody(d)
	_, err := fr.WriteTo(p.bw)
	require.NoError(p.t, err)
	require.NoError(p.t, p.bw.Flush())
}

func TestConnMinimalGet(t *testing.T) {
	conn, peer := newConnPair(t, ConnOpts{})

	req := AcquireRequest()
	defer ReleaseRequest(req)
	req.Method = "GET"
	req.Scheme = "https"
	req.Authority = "example.test"
	req.Path = "/"

	respCh := make(chan *Response, 1)
	errCh := make(chan error, 1)
	go func() {
		resp, err := conn.Send(context.Background(), req)
		if err != nil {
			errCh <- err
			return
		}
		respCh <- resp
	}()

	fr := peer.readFrame()
	require.Equal(t, FrameHeaders, fr.Type())
	require.Equal(t, uint32(3), fr.Stream())
	h := fr.Body().(*Headers)
	require.True(t, h.EndStream())
	require.True(t, h.EndHeaders())
	dec := hpack.NewDecoder()
	reqFields, err := dec.DecodeFull(h.Headers())
	require.NoError(t, err)
	assertHasHeaderField(t, reqFields, ":method", "GET")
	assertHasHeaderField(t, reqFields, ":path", "/")
	ReleaseFrameHeader(fr)

	peer.writeHeaders(3, true, []hpack.HeaderField{
		{Name: ":status", Value: "200"},
		{Name: "content-length", Value: "0"},
	})

	select {
	case resp := <-respCh:
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, "", string(resp.Body()))
	case err := <-errCh:
		t.Fatalf("unexpected error: %s", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for response")
	}
}

func TestConnPostWithBody(t *testing.T) {
	conn, peer := newConnPair(t, ConnOpts{})

	req := AcquireRequest()
	defer ReleaseRequest(req)
	req.Method = "POST"
	req.Scheme = "https"
	req.Authority = "example.test"
	req.Path = "/x"
	req.SetBody([]byte("hi"))

	respCh := make(chan *Response, 1)
	go func() {
		resp, err := conn.Send(context.Background(), req)
		require.NoError(t, err)
		respCh <- resp
	}()

	fr := peer.readFrame()
	require.Equal(t, FrameHeaders, fr.Type())
	h := fr.Body().(*Headers)
	assert.False(t, h.EndStream())
	assert.True(t, h.EndHeaders())
	ReleaseFrameHeader(fr)

	fr = peer.readFrame()
	require.Equal(t, FrameData, fr.Type())
	d := fr.Body().(*Data)
	assert.True(t, d.EndStream())
	assert.Equal(t, "hi", string(d.Data()))
	ReleaseFrameHeader(fr)

	peer.writeHeaders(3, false, []hpack.HeaderField{{Name: ":status", Value: "201"}})
	peer.writeData(3, true, []byte("ok"))

	select {
	case resp := <-respCh:
		assert.Equal(t, 201, resp.StatusCode)
		assert.Equal(t, "ok", string(resp.Body()))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for response")
	}
}

func TestConnInterleavedResponses(t *testing.T) {
	conn, peer := newConnPair(t, ConnOpts{})

	mkReq := func(path string) *Request {
		req := AcquireRequest()
		req.Method = "GET"
		req.Scheme = "https"
		req.Authority = "example.test"
		req.Path = path
		return req
	}

	resultOf := func(req *Request) chan *Response {
		ch := make(chan *Response, 1)
		go func() {
			resp, err := conn.Send(context.Background(), req)
			require.NoError(t, err)
			ch <- resp
		}()
		return ch
	}

	first := resultOf(mkReq("/a"))
	fr := peer.readFrame()
	require.Equal(t, uint32(3), fr.Stream())
	ReleaseFrameHeader(fr)

	second := resultOf(mkReq("/b"))
	fr = peer.readFrame()
	require.Equal(t, uint32(5), fr.Stream())
	ReleaseFrameHeader(fr)

	// reply to the second stream first.
	peer.writeHeaders(5, true, []hpack.HeaderField{{Name: ":status", Value: "200"}})
	peer.writeHeaders(3, true, []hpack.HeaderField{{Name: ":status", Value: "201"}})

	select {
	case resp := <-second:
		assert.Equal(t, 200, resp.StatusCode)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for second stream response")
	}
	select {
	case resp := <-first:
		assert.Equal(t, 201, resp.StatusCode)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first stream response")
	}
}

func TestConnPingRoundTrip(t *testing.T) {
	conn, peer := newConnPair(t, ConnOpts{})
	_ = conn

	ping := &Ping{}
	ping.SetAck(false)
	ping.SetCurrentTime()
	peer.writeFrame(FramePing, ping)

	fr := peer.readFrame()
	require.Equal(t, FramePing, fr.Type())
	assert.True(t, fr.Body().(*Ping).IsAck())
	ReleaseFrameHeader(fr)
}

func TestConnGoAwayFailsStreamsBeyondLastProcessed(t *testing.T) {
	conn, peer := newConnPair(t, ConnOpts{})

	req := AcquireRequest()
	defer ReleaseRequest(req)
	req.Method, req.Scheme, req.Authority, req.Path = "GET", "https", "example.test", "/"

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.Send(context.Background(), req)
		errCh <- err
	}()

	fr := peer.readFrame()
	require.Equal(t, uint32(3), fr.Stream())
	ReleaseFrameHeader(fr)

	ga := &GoAway{}
	ga.SetCode(NoError)
	ga.SetStream(0) // last-processed-stream-id 0: our stream 3 was never processed
	peer.writeFrame(FrameGoAway, ga)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrNoAvailableStreams)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for GOAWAY-triggered failure")
	}
}

func assertHasHeaderField(t *testing.T, fields []hpack.HeaderField, name, value string) {
	t.Helper()
	for _, f := range fields {
		if f.Name == name {
			assert.Equal(t, value, f.Value)
			return
		}
	}
	t.Fatalf("header field %q not found", name)
}
