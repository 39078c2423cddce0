package http2

import (
	"sync"

	"github.com/valyala/bytebufferpool"

	"github.com/crosshttp/h2c/hpack"
)

var responsePool = sync.Pool{
	New: func() interface{} { return new(Response) },
}

// Response is the engine's internal view of a completed HTTP/2 response:
// a status code, an ordered header list (pseudo-headers excluded), any
// trailers, and the accumulated body. The public facade translates this
// into a *fasthttp.Response.
type Response struct {
	StatusCode int
	Headers    []hpack.HeaderField
	Trailers   []hpack.HeaderField

	b bytebufferpool.ByteBuffer
}

// AcquireResponse returns a Response from the pool.
func AcquireResponse() *Response {
	return responsePool.Get().(*Response)
}

// ReleaseResponse resets resp and returns it to the pool.
func ReleaseResponse(resp *Response) {
	resp.Reset()
	responsePool.Put(resp)
}

func (resp *Response) Reset() {
	resp.StatusCode = 0
	resp.Headers = resp.Headers[:0]
	resp.Trailers = resp.Trailers[:0]
	resp.b.Reset()
}

func (resp *Response) SetBody(b []byte) {
	resp.b.Reset()
	resp.b.Write(b)
}

func (resp *Response) AppendBody(b []byte) {
	resp.b.Write(b)
}

func (resp *Response) Body() []byte {
	return resp.b.Bytes()
}

// Header looks up the first value for name (case-sensitive; callers pass
// already-lowercased names since HPACK requires lowercase on the wire).
func (resp *Response) Header(name string) (string, bool) {
	for _, hf := range resp.Headers {
		if hf.Name == name {
			return hf.Value, true
		}
	}
	return "", false
}
