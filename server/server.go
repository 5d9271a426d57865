package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/yoppeh/nvhttpd/cache"
	"github.com/yoppeh/nvhttpd/request"
	"github.com/yoppeh/nvhttpd/transport"
	"golang.org/x/sync/errgroup"
)

const (
	// handshakeTimeout bounds the TLS handshake when no read timeout is configured
	handshakeTimeout = 10 * time.Second
	// ShutdownTimeout is how long Run waits for open connections on the way out
	ShutdownTimeout = 10 * time.Second
	maxAcceptDelay  = time.Second
	// lingerTimeout and maxLinger bound how long and how much unread input
	// is discarded after an error response
	lingerTimeout = 2 * time.Second
	maxLinger     = 64 << 10
)

var (
	// ErrServerClosed is returned by Serve after Shutdown
	ErrServerClosed = errors.New("server closed")
)

// New creates a new server instance. The content tree is loaded before it
// returns, a tree that cannot be loaded is a configuration error.
func New(c *Config) (*Server, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	ch, err := cache.New(c.Server.HTMLPath, c.Server.MaxCacheElements)
	if err != nil {
		return nil, errors.Wrapf(ErrConfig, "%s", err)
	}

	s := &Server{
		c:      c,
		cache:  ch,
		extra:  c.ExtraHeaders(),
		limits: request.DefaultLimits,
		done:   make(chan struct{}),
	}
	s.metrics = newMetrics(ch)
	ch.OnLoad(func(g *cache.Generation, err error) {
		s.metrics.reload(err)
	})

	if _, err := ch.Load(); err != nil {
		if errors.Cause(err) == cache.ErrTooManyEntries {
			return nil, errors.Wrapf(ErrConfig, "%s, raise max_cache_elements above %d", err, c.Server.MaxCacheElements)
		}
		return nil, errors.Wrapf(ErrConfig, "%s", err)
	}

	if c.TLS.Enabled {
		s.tls, err = transport.LoadTLSConfig(c.TLS.CertFile, c.TLS.KeyFile)
		if err != nil {
			return nil, errors.Wrapf(ErrConfig, "%s", err)
		}
	}

	return s, nil
}

// Server represents a server instance.
// It accepts connections and serves each one from its own goroutine.
type Server struct {
	c       *Config
	cache   *cache.Cache
	tls     *tls.Config
	extra   string
	limits  request.Limits
	metrics *metrics

	mu       sync.Mutex
	listener net.Listener
	conns    sync.WaitGroup
	closed   atomic.Bool
	done     chan struct{}
	once     sync.Once
}

// Cache returns the server's content cache
func (s *Server) Cache() *cache.Cache {
	return s.cache
}

// Addr returns the address being listened on, nil before Serve
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run serves until ctx is done, then shuts down. The admin listener and
// the content watcher run alongside when configured. The first failure
// stops everything.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.ListenAndServe(gctx)
		if errors.Is(err, ErrServerClosed) {
			return nil
		}
		return err
	})

	var admin *http.Server
	if s.c.Admin.Listen != "" {
		admin = &http.Server{
			Addr:              s.c.Admin.Listen,
			Handler:           s.AdminHandler(),
			ReadHeaderTimeout: handshakeTimeout,
		}
		g.Go(func() error {
			log.Infof("admin server listening on: http://%s", getAddrString(s.c.Admin.Listen))
			if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return errors.Wrap(err, "admin server failed")
			}
			return nil
		})
	}

	if s.c.Server.Watch {
		g.Go(func() error {
			return s.cache.Watch(gctx, cache.DefaultSettle)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if admin != nil {
			if err := admin.Shutdown(sctx); err != nil {
				log.Warnf("admin server shutdown: %s", err)
			}
		}
		if err := s.Shutdown(sctx); err != nil {
			log.Warnf("shutdown: %s", err)
		}
		return nil
	})

	return g.Wait()
}

// ListenAndServe listens on the configured address and serves until Shutdown
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := transport.Listen(ctx, s.c.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called, which makes it
// return ErrServerClosed. Accept failures are logged and accepting goes on.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.mu.Unlock()

	scheme := "http"
	if s.tls != nil {
		scheme = "https"
	}
	log.Infof("%s server listening on: %s://%s", s.c.Server.Name, scheme, getAddrString(ln.Addr().String()))

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closed.Load() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return errors.Wrap(err, "listener closed")
			}
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else if delay *= 2; delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			log.Errorf("accept failed, retrying in %s: %s", delay, err)
			select {
			case <-time.After(delay):
			case <-s.done:
			}
			continue
		}
		delay = 0
		s.mu.Lock()
		if s.closed.Load() {
			s.mu.Unlock()
			conn.Close()
			return ErrServerClosed
		}
		s.conns.Add(1)
		s.mu.Unlock()
		go s.handleConn(conn)
	}
}

// Reload rebuilds the cache from disk and swaps it in. Connections already
// being served finish on the generation they started with. On failure the
// live generation is kept.
func (s *Server) Reload() (*cache.Generation, error) {
	g, err := s.cache.Load()
	if err != nil {
		log.Errorf("reload failed, keeping generation %d: %s", s.cache.Current().ID, err)
		return nil, err
	}
	return g, nil
}

// Shutdown stops accepting and waits for open connections to finish or
// for ctx to be done
func (s *Server) Shutdown(ctx context.Context) error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed.Store(true)
		close(s.done)
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				log.Debugf("closing listener: %s", err)
			}
		}
		s.mu.Unlock()
		log.Infof("%s shutting down", s.c.Server.Name)
	})

	idle := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "connections still open")
	}
}

func (s *Server) handleConn(raw net.Conn) {
	defer s.conns.Done()
	s.metrics.connections.Inc()
	s.metrics.active.Inc()
	defer s.metrics.active.Dec()

	logger := log.WithFields(log.Fields{
		"conn":   uuid.NewString(),
		"remote": raw.RemoteAddr().String(),
	})
	logger.Trace("accepted")

	t := transport.Plain(raw)
	if s.tls != nil {
		timeout := s.c.ReadTimeout()
		if timeout == 0 {
			timeout = handshakeTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		var err error
		t, err = transport.Handshake(ctx, raw, s.tls)
		cancel()
		if err != nil {
			s.metrics.handshakeFailures.Inc()
			logger.Debugf("%s", err)
			raw.Close()
			return
		}
	}
	defer t.Close()
	logger = logger.WithField("tls", t.Secure())

	s.serve(t, logger)
}

// serve answers the single request on t from one cache generation
func (s *Server) serve(t transport.Transport, logger *log.Entry) {
	if d := s.c.ReadTimeout(); d > 0 {
		_ = t.SetReadDeadline(time.Now().Add(d))
	}
	g := s.cache.Current()

	req, err := request.Parse(request.NewCursor(t), s.limits)
	var r response
	kind := request.KindOf(err)
	switch kind {
	case request.KindNone:
		r = resolve(g, req.URI)
	case request.KindIO:
		s.metrics.parseFailure(kind)
		logger.Debugf("connection dropped: %s", err)
		return
	default:
		s.metrics.parseFailure(kind)
		logger.Infof("rejected request: %s", err)
		r = canned(g, statusFor(kind))
	}
	if req != nil && req.Method == request.MethodHead {
		r.head = true
	}

	if d := s.c.WriteTimeout(); d > 0 {
		_ = t.SetWriteDeadline(time.Now().Add(d))
	}
	n, err := writeResponse(t, r, s.extra, time.Now())
	s.metrics.response(r.status, n)
	if err != nil {
		logger.Debugf("response not delivered: %s", err)
		return
	}
	logger.WithField("status", int(r.status)).Info(accessLine(req, r.status, n))
	if kind != request.KindNone {
		linger(t)
	}
}

// linger half closes t and discards what the client is still sending, so
// the close that follows does not reset a response the client has not read
func linger(t transport.Transport) {
	if err := t.CloseWrite(); err != nil {
		return
	}
	_ = t.SetReadDeadline(time.Now().Add(lingerTimeout))
	_, _ = io.Copy(io.Discard, io.LimitReader(t, maxLinger))
}

// accessLine formats a request for the access log. Parts of a rejected
// request that were never parsed are shown as "-".
func accessLine(req *request.Request, st Status, written int) string {
	method, uri, version := "-", "-", "-"
	if req != nil {
		method = req.Method.String()
		if req.URI != "" {
			uri = req.URI
		}
		if req.Version != (request.Version{}) {
			version = req.Version.String()
		}
	}
	return fmt.Sprintf("%s %s %s %d %d", method, uri, version, int(st), written)
}

func getAddrString(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = fmt.Sprintf("0.0.0.0%s", addr)
	}
	return addr
}
