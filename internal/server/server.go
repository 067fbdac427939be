package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tboby/wyoming-onnx-asr/internal/config"
	"github.com/tboby/wyoming-onnx-asr/internal/metrics"
	"github.com/tboby/wyoming-onnx-asr/internal/protocol"
	"github.com/tboby/wyoming-onnx-asr/internal/registry"
)

// Endpoint is a parsed listen URI.
type Endpoint struct {
	Scheme  string // tcp, unix, or stdio
	Address string // host:port or socket path; empty for stdio
}

// ParseURI parses a transport URI of the form tcp://host:port,
// unix:///path/to.sock, or stdio://.
func ParseURI(uri string) (Endpoint, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid uri %q: %w", uri, err)
	}

	switch u.Scheme {
	case "tcp":
		if u.Host == "" {
			return Endpoint{}, fmt.Errorf("tcp uri %q must include host:port", uri)
		}
		return Endpoint{Scheme: "tcp", Address: u.Host}, nil
	case "unix":
		path := u.Host + u.Path
		if path == "" {
			return Endpoint{}, fmt.Errorf("unix uri %q must include a socket path", uri)
		}
		return Endpoint{Scheme: "unix", Address: path}, nil
	case "stdio":
		return Endpoint{Scheme: "stdio"}, nil
	default:
		return Endpoint{}, fmt.Errorf("unsupported uri scheme %q (supported: tcp, unix, stdio)", u.Scheme)
	}
}

// Stats is a snapshot of server counters for the monitoring API.
type Stats struct {
	ActiveSessions int           `json:"active_sessions"`
	TotalSessions  uint64        `json:"total_sessions"`
	Uptime         time.Duration `json:"uptime_seconds"`
}

// Server accepts transport connections and runs one Session per
// connection.
type Server struct {
	endpoint           Endpoint
	logger             *slog.Logger
	registry           *registry.Registry
	metrics            *metrics.Metrics
	recognitionTimeout time.Duration

	// infoEvent is the capability descriptor encoded once at startup and
	// shared by every session.
	infoEvent *protocol.Event

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu            sync.Mutex
	conns         map[net.Conn]struct{}
	totalSessions uint64
	startTime     time.Time
}

// New creates a server for the configured listen URI.
func New(cfg *config.Config, reg *registry.Registry, m *metrics.Metrics, logger *slog.Logger) (*Server, error) {
	endpoint, err := ParseURI(cfg.Server.URI)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		endpoint:           endpoint,
		logger:             logger,
		registry:           reg,
		metrics:            m,
		recognitionTimeout: cfg.Recognition.GetTimeoutDuration(),
		infoEvent:          reg.Describe().Event(),
		ctx:                ctx,
		cancel:             cancel,
		conns:              make(map[net.Conn]struct{}),
		startTime:          time.Now(),
	}, nil
}

// Endpoint returns the parsed listen endpoint.
func (s *Server) Endpoint() Endpoint {
	return s.endpoint
}

// Start opens the listener and begins accepting connections. It is not
// used for stdio transport; see RunStdio.
func (s *Server) Start() error {
	if s.endpoint.Scheme == "stdio" {
		return fmt.Errorf("stdio transport does not accept connections; use RunStdio")
	}

	if s.endpoint.Scheme == "unix" {
		// A previous run may have left the socket file behind.
		if err := os.Remove(s.endpoint.Address); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove stale socket %s: %w", s.endpoint.Address, err)
		}
	}

	listener, err := net.Listen(s.endpoint.Scheme, s.endpoint.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s://%s: %w", s.endpoint.Scheme, s.endpoint.Address, err)
	}
	s.listener = listener

	s.logger.Info("Server listening",
		slog.String("scheme", s.endpoint.Scheme),
		slog.String("address", listener.Addr().String()),
	)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Addr returns the bound listener address, useful when listening on an
// ephemeral port.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// acceptLoop accepts connections until the listener closes.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if strings.Contains(err.Error(), "use of closed network connection") {
				return
			}
			s.logger.Error("Accept failed", slog.String("error", err.Error()))
			continue
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.totalSessions++
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// handleConn runs one session to completion and cleans the connection up.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		s.metrics.ConnectionsActive.Dec()
	}()

	s.metrics.ConnectionsTotal.Inc()
	s.metrics.ConnectionsActive.Inc()

	logger := s.logger.With(
		slog.String("session_id", uuid.NewString()),
		slog.String("remote", conn.RemoteAddr().String()),
	)
	logger.Debug("Session started")

	session := NewSession(conn, s.registry, s.metrics, s.infoEvent, s.recognitionTimeout, logger)
	if err := session.Run(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("Session ended with error", slog.String("error", err.Error()))
		return
	}
	logger.Debug("Session ended")
}

// RunStdio serves a single session over the given streams, typically
// os.Stdin and os.Stdout. It returns when the input stream ends.
func (s *Server) RunStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.mu.Lock()
	s.totalSessions++
	s.mu.Unlock()

	s.metrics.ConnectionsTotal.Inc()
	s.metrics.ConnectionsActive.Inc()
	defer s.metrics.ConnectionsActive.Dec()

	logger := s.logger.With(slog.String("session_id", uuid.NewString()), slog.String("remote", "stdio"))
	logger.Debug("Session started")

	session := NewSession(stdioConn{Reader: in, Writer: out}, s.registry, s.metrics, s.infoEvent, s.recognitionTimeout, logger)
	return session.Run(ctx)
}

// stdioConn joins separate input and output streams into one ReadWriter.
type stdioConn struct {
	io.Reader
	io.Writer
}

// Stop closes the listener and all active connections, then waits for
// sessions to finish.
func (s *Server) Stop() error {
	s.logger.Info("Stopping server...")
	s.cancel()

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.logger.Warn("Error closing listener", slog.String("error", err.Error()))
		}
	}

	// Unblock sessions stuck reading from their peers.
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()

	if s.endpoint.Scheme == "unix" {
		os.Remove(s.endpoint.Address)
	}

	s.logger.Info("Server stopped")
	return nil
}

// Stats returns a snapshot of the server counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		ActiveSessions: len(s.conns),
		TotalSessions:  s.totalSessions,
		Uptime:         time.Since(s.startTime),
	}
}
