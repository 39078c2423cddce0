package http2

import (
	"context"

	"github.com/valyala/fasthttp"
)

// connHeaderNames are the hop-by-hop header fields RFC 7540 section
// 8.1.2.2 forbids on an HTTP/2 request; fasthttp.Request carries them
// over from HTTP/1.1 habits, so the facade strips them before encoding.
var connHeaderNames = map[string]bool{
	"connection":        true,
	"keep-alive":        true,
	"proxy-connection":  true,
	"transfer-encoding": true,
	"upgrade":           true,
	"http2-settings":    true,
	"host":              true, // folded into :authority instead
}

// Client is the facade callers use: it accepts and returns plain
// *fasthttp.Request/*fasthttp.Response, translating to and from the
// engine's internal hpack.HeaderField-based Request/Response at this one
// boundary, per the teacher's habit of handing fasthttp objects straight
// across the HPACK encode/decode call.
type Client struct {
	conn *Conn
}

// NewClient wraps an already-handshaken Conn.
func NewClient(conn *Conn) *Client {
	return &Client{conn: conn}
}

// Dial opens a new TLS+h2 connection to addr and wraps it in a Client.
func Dial(addr string, opts ...ClientOption) (*Client, error) {
	var o ConnOpts
	for _, opt := range opts {
		opt(&o)
	}

	d := &Dialer{Addr: addr}
	conn, err := d.Dial(o)
	if err != nil {
		return nil, err
	}

	return NewClient(conn), nil
}

// Do sends req and populates resp with the reply, blocking until either
// happens or ctx is done. Safe to call concurrently: each call gets its
// own stream on the shared connection.
func (cl *Client) Do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	ireq := AcquireRequest()
	defer ReleaseRequest(ireq)

	if err := buildInternalRequest(ireq, req); err != nil {
		return err
	}

	iresp, err := cl.conn.Send(ctx, ireq)
	if err != nil {
		return err
	}
	defer ReleaseResponse(iresp)

	applyInternalResponse(resp, iresp)
	return nil
}

// Get is a convenience wrapper around Do for a bodyless GET; it is not
// part of the engine, just a shortcut over it.
func (cl *Client) Get(ctx context.Context, url string) (*fasthttp.Response, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	resp := fasthttp.AcquireResponse()
	if err := cl.Do(ctx, req, resp); err != nil {
		fasthttp.ReleaseResponse(resp)
		return nil, err
	}
	return resp, nil
}

// PostJSON is a convenience wrapper around Do for a JSON POST body.
func (cl *Client) PostJSON(ctx context.Context, url string, body []byte) (*fasthttp.Response, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	resp := fasthttp.AcquireResponse()
	if err := cl.Do(ctx, req, resp); err != nil {
		fasthttp.ReleaseResponse(resp)
		return nil, err
	}
	return resp, nil
}

// Close tears down the underlying connection.
func (cl *Client) Close() error {
	return cl.conn.Close()
}

func buildInternalRequest(dst *Request, src *fasthttp.Request) error {
	host := src.URI().Host()
	if len(host) == 0 {
		return ErrLacksAuthority
	}

	dst.Method = string(src.Header.Method())
	dst.Scheme = string(src.URI().Scheme())
	dst.Authority = string(host)
	dst.Path = string(src.URI().RequestURI())

	if ua := src.Header.UserAgent(); len(ua) > 0 {
		dst.AddHeader("user-agent", string(ua))
	}

	src.Header.VisitAll(func(k, v []byte) {
		name := string(ToLower(append([]byte(nil), k...)))
		if name == "user-agent" || connHeaderNames[name] {
			return
		}
		dst.AddHeader(name, string(v))
	})

	dst.SetBody(src.Body())
	return nil
}

func applyInternalResponse(dst *fasthttp.Response, src *Response) {
	dst.SetStatusCode(src.StatusCode)

	for _, hf := range src.Headers {
		if hf.Name == "content-length" {
			continue
		}
		dst.Header.Add(hf.Name, hf.Value)
	}
	for _, hf := range src.Trailers {
		dst.Header.Add(hf.Name, hf.Value)
	}

	dst.SetBody(src.Body())
}
