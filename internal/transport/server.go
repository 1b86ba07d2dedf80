// Package transport implements the framed-message TCP transport: a
// broadcast server that fans frames out to every connected client after
// delivering each new connection a preamble, and a client that connects
// with backoff and decodes frames one at a time.
package transport

import (
	"bytes"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/drgolem/pcmcast/internal/logx"
	"github.com/drgolem/pcmcast/internal/metrics"
	"github.com/drgolem/pcmcast/internal/wire"
)

// Server accepts TCP connections, sends each one the current preamble,
// and broadcasts frames to the whole connection set.
type Server struct {
	addr     string
	logger   *slog.Logger
	preamble preambleStore

	listenerMu sync.Mutex
	listener   net.Listener

	connsMu sync.Mutex
	conns   []net.Conn

	stopping atomic.Bool
	acceptWg sync.WaitGroup

	totalAccepted  atomic.Uint64
	totalEvicted   atomic.Uint64
	totalBroadcast atomic.Uint64
}

// ServerOption configures a Server at construction time.
type ServerOption func(*Server)

// WithServerLogger overrides the logger used for diagnostics.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer constructs a Server bound to addr (e.g. "0.0.0.0:8080").
func NewServer(addr string, opts ...ServerOption) *Server {
	s := &Server{addr: addr, logger: logx.L()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start binds the listening socket and spawns the acceptor goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrListen, err)
	}
	s.listenerMu.Lock()
	s.listener = ln
	s.listenerMu.Unlock()

	s.logger.Info("transport server listening", "addr", ln.Addr().String())

	s.acceptWg.Add(1)
	go s.acceptLoop(ln)
	return nil
}

// Addr returns the listener's bound address. Valid after Start returns.
func (s *Server) Addr() net.Addr {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.acceptWg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.stopping.Load() {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() { // transient
				time.Sleep(200 * time.Millisecond)
				continue
			}
			s.logger.Warn("accept error", "error", fmt.Errorf("%w: %v", ErrAccept, err))
			continue
		}
		s.totalAccepted.Add(1)
		s.admit(conn)
	}
}

// admit sends the new connection its preamble and, on success, registers
// it in the connection set. A preamble write failure drops the connection
// without registering it.
func (s *Server) admit(conn net.Conn) {
	preamble := s.preamble.snapshot()

	var framed bytes.Buffer
	if err := wire.Encode(&framed, preamble); err != nil {
		metrics.FrameErrorsTotal.WithLabelValues("encode").Inc()
		s.logger.Warn("failed to frame preamble", "error", err)
		_ = conn.Close()
		return
	}
	if err := writeAll(conn, framed.Bytes()); err != nil {
		s.logger.Warn("failed to send preamble to new connection", "remote", conn.RemoteAddr(), "error", err)
		_ = conn.Close()
		return
	}

	s.connsMu.Lock()
	s.conns = append(s.conns, conn)
	s.connsMu.Unlock()
	metrics.ClientsConnected.Inc()
	s.logger.Info("client connected", "remote", conn.RemoteAddr())
}

// Broadcast frames message once and writes it to every connected client,
// evicting any whose write fails. The connection-set lock is held for the
// whole fan-out: new connections wait behind in-flight broadcasts, never
// the reverse.
func (s *Server) Broadcast(message []byte) error {
	var framed bytes.Buffer
	if err := wire.Encode(&framed, message); err != nil {
		return err
	}
	payload := framed.Bytes()
	s.totalBroadcast.Add(1)
	metrics.BroadcastsTotal.Inc()

	s.connsMu.Lock()
	defer s.connsMu.Unlock()

	live := s.conns[:0]
	for _, c := range s.conns {
		if err := writeAll(c, payload); err != nil {
			s.totalEvicted.Add(1)
			metrics.EvictionsTotal.Inc()
			metrics.ClientsConnected.Dec()
			s.logger.Info("evicting client after write failure", "remote", c.RemoteAddr(), "error", err)
			_ = c.Close()
			continue
		}
		live = append(live, c)
	}
	s.conns = live
	return nil
}

// UpdatePreamble atomically replaces the bytes sent to future connections.
func (s *Server) UpdatePreamble(b []byte) {
	s.preamble.set(b)
}

// ClientCount returns the number of currently registered connections.
func (s *Server) ClientCount() int {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return len(s.conns)
}

// Stop signals the acceptor to exit, closes the listener, and waits for
// it to return. Broadcast remains safe to call afterward; it simply
// observes an empty or shrinking connection set.
func (s *Server) Stop() {
	s.stopping.Store(true)
	s.listenerMu.Lock()
	ln := s.listener
	s.listenerMu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
	s.acceptWg.Wait()

	s.connsMu.Lock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	metrics.ClientsConnected.Sub(float64(len(s.conns)))
	s.conns = nil
	s.connsMu.Unlock()

	s.logger.Info("transport server stopped",
		"accepted", s.totalAccepted.Load(),
		"evicted", s.totalEvicted.Load(),
		"broadcasts", s.totalBroadcast.Load())
}

// writeAll writes all of p to w, retrying partial writes until complete
// or a terminal error.
func writeAll(w interface{ Write([]byte) (int, error) }, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if n > 0 {
			p = p[n:]
		}
		if err != nil {
			return err
		}
	}
	return nil
}
