package transport

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// closeTimeout bounds the close_notify write on a stalled peer
const closeTimeout = 2 * time.Second

// Transport unifies plaintext and TLS connections behind one read/write contract
type Transport interface {
	io.ReadWriter
	// Close tears the connection down. For TLS a clean shutdown is attempted first.
	Close() error
	// CloseWrite ends the outgoing stream while reads can go on
	CloseWrite() error
	RemoteAddr() net.Addr
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	// Secure reports whether traffic is encrypted
	Secure() bool
}

// Plain returns a transport that reads and writes c directly
func Plain(c net.Conn) Transport {
	return &plain{Conn: c}
}

type plain struct {
	net.Conn
}

func (p *plain) Secure() bool {
	return false
}

func (p *plain) CloseWrite() error {
	if cw, ok := p.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}

// Handshake performs a server side TLS handshake over c and returns the
// encrypted transport. On failure c is left open, the caller owns it.
func Handshake(ctx context.Context, c net.Conn, cfg *tls.Config) (Transport, error) {
	tc := tls.Server(c, cfg)
	if err := tc.HandshakeContext(ctx); err != nil {
		return nil, errors.Wrap(err, "tls handshake failed")
	}
	return &secure{Conn: tc, raw: c}, nil
}

type secure struct {
	*tls.Conn
	raw net.Conn
}

func (s *secure) Secure() bool {
	return true
}

// Close sends close_notify and then closes the socket. A failed TLS
// shutdown is logged, it never prevents the socket from being closed.
func (s *secure) Close() error {
	_ = s.raw.SetWriteDeadline(time.Now().Add(closeTimeout))
	if err := s.Conn.CloseWrite(); err != nil {
		log.Warnf("tls shutdown with %s failed: %s", s.raw.RemoteAddr(), err)
	}
	return s.raw.Close()
}

// WriteAll writes b in full, retrying short writes
func WriteAll(t Transport, b []byte) error {
	for len(b) > 0 {
		n, err := t.Write(b)
		if err != nil {
			return errors.Wrap(err, "write failed")
		}
		if n == 0 {
			return errors.Wrap(io.ErrShortWrite, "write failed")
		}
		b = b[n:]
	}
	return nil
}
