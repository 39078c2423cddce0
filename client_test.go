package http2

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/crosshttp/h2c/hpack"
)

func TestClientDoTranslatesRequestAndResponse(t *testing.T) {
	conn, peer := newConnPair(t, ConnOpts{})
	cl := NewClient(conn)

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI("https://example.test/widgets?id=1")
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("X-Trace-Id", "abc123")

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	done := make(chan error, 1)
	go func() { done <- cl.Do(context.Background(), req, resp) }()

	fr := peer.readFrame()
	require.Equal(t, FrameHeaders, fr.Type())
	h := fr.Body().(*Headers)
	dec := hpack.NewDecoder()
	fields, err := dec.DecodeFull(h.Headers())
	require.NoError(t, err)

	assertHasHeaderField(t, fields, ":path", "/widgets?id=1")
	assertHasHeaderField(t, fields, ":authority", "example.test")
	assertHasHeaderField(t, fields, "x-trace-id", "abc123")
	for _, f := range fields {
		assert.NotEqual(t, "connection", f.Name, "hop-by-hop header must be stripped")
	}
	ReleaseFrameHeader(fr)

	peer.writeHeaders(3, true, []hpack.HeaderField{
		{Name: ":status", Value: "200"},
		{Name: "content-type", Value: "text/plain"},
	})

	select {
	case err := <-done:
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode())
		assert.Equal(t, "text/plain", string(resp.Header.ContentType()))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Do to return")
	}
}

func TestClientGetConvenienceWrapper(t *testing.T) {
	conn, peer := newConnPair(t, ConnOpts{})
	cl := NewClient(conn)

	respCh := make(chan *fasthttp.Response, 1)
	errCh := make(chan error, 1)
	go func() {
		resp, err := cl.Get(context.Background(), "https://example.test/health")
		if err != nil {
			errCh <- err
			return
		}
		respCh <- resp
	}()

	fr := peer.readFrame()
	h := fr.Body().(*Headers)
	dec := hpack.NewDecoder()
	fields, err := dec.DecodeFull(h.Headers())
	require.NoError(t, err)
	assertHasHeaderField(t, fields, ":method", "GET")
	ReleaseFrameHeader(fr)

	peer.writeHeaders(3, true, []hpack.HeaderField{{Name: ":status", Value: "204"}})

	select {
	case resp := <-respCh:
		assert.Equal(t, 204, resp.StatusCode())
		fasthttp.ReleaseResponse(resp)
	case err := <-errCh:
		t.Fatalf("unexpected error: %s", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Get to return")
	}
}
