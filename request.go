package http2

import (
	"sync"

	"github.com/valyala/bytebufferpool"

	"github.com/crosshttp/h2c/hpack"
)

var requestPool = sync.Pool{
	New: func() interface{} { return new(Request) },
}

// Request is the engine's internal view of an outgoing HTTP/2 request.
// Method/Scheme/Authority/Path become the four mandatory pseudo-headers;
// Headers carries the remaining regular fields in caller order. The public
// facade builds this from a *fasthttp.Request.
type Request struct {
	Method    string
	Scheme    string
	Authority string
	Path      string
	Headers   []hpack.HeaderField

	b bytebufferpool.ByteBuffer
}

// AcquireRequest returns a Request from the pool.
func AcquireRequest() *Request {
	return requestPool.Get().(*Request)
}

// ReleaseRequest resets req and returns it to the pool.
func ReleaseRequest(req *Request) {
	req.Reset()
	requestPool.Put(req)
}

func (req *Request) Reset() {
	req.Method = ""
	req.Scheme = ""
	req.Authority = ""
	req.Path = ""
	req.Headers = req.Headers[:0]
	req.b.Reset()
}

func (req *Request) AddHeader(name, value string) {
	req.Headers = append(req.Headers, hpack.HeaderField{Name: name, Value: value})
}

func (req *Request) SetBody(b []byte) {
	req.b.Reset()
	req.b.Write(b)
}

func (req *Request) Body() []byte {
	return req.b.Bytes()
}
