package http2

import (
	"crypto/tls"
	"errors"
	"net"
)

// ErrServerSupport is returned by Dial when the peer completed a TLS
// handshake but did not negotiate h2 via ALPN.
var ErrServerSupport = errors.New("http2: server does not support h2 over ALPN")

// Dialer opens HTTP/2-over-TLS connections to a single address.
type Dialer struct {
	// Addr is the server's address in "host:port" form.
	Addr string
	// TLSConfig is the TLS configuration used for the handshake. If nil,
	// a default config requiring TLS 1.2+ and advertising "h2" is used.
	// A non-nil config has "h2" appended to NextProtos if missing.
	TLSConfig *tls.Config
}

func (d *Dialer) tlsConfig() *tls.Config {
	cfg := d.TLSConfig
	if cfg == nil {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	} else {
		cfg = cfg.Clone()
	}

	for _, p := range cfg.NextProtos {
		if p == H2TLSProto {
			return cfg
		}
	}
	cfg.NextProtos = append(cfg.NextProtos, H2TLSProto)

	return cfg
}

func (d *Dialer) tryDial() (net.Conn, error) {
	conn, err := tls.Dial("tcp", d.Addr, d.tlsConfig())
	if err != nil {
		return nil, err
	}

	if err := conn.Handshake(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if conn.ConnectionState().NegotiatedProtocol != H2TLSProto {
		_ = conn.Close()
		return nil, ErrServerSupport
	}

	return conn, nil
}

// Dial opens a TCP+TLS connection to d.Addr, negotiates h2 via ALPN, and
// performs the HTTP/2 connection preface and SETTINGS handshake.
func (d *Dialer) Dial(opts ConnOpts) (*Conn, error) {
	c, err := d.tryDial()
	if err != nil {
		return nil, err
	}

	conn := NewConn(c, opts)
	if err := conn.Handshake(); err != nil {
		return nil, err
	}

	return conn, nil
}
