// Package httpx is the HTTP ingress of the service: a chi router behind an
// http.Server that binds before it serves.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	DefaultHost = "127.0.0.1"
	// DefaultPort is the port of the standalone HTTP server.
	DefaultPort = 54545
)

type Config struct {
	Host                string `toml:"host" yaml:"host"`
	Port                int    `toml:"port" yaml:"port"`
	ReadTimeoutSeconds  int    `toml:"read_timeout_seconds" yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `toml:"write_timeout_seconds" yaml:"write_timeout_seconds"`
	IdleTimeoutSeconds  int    `toml:"idle_timeout_seconds" yaml:"idle_timeout_seconds"`
}

func DefaultConfig() Config {
	return Config{
		Host:                DefaultHost,
		Port:                DefaultPort,
		ReadTimeoutSeconds:  15,
		WriteTimeoutSeconds: 30,
		IdleTimeoutSeconds:  60,
	}
}

// Server owns the router and, once Listen succeeded, the listener.
type Server struct {
	cfg    Config
	router *chi.Mux
	log    *zap.Logger

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

// NewServer builds a router with request ids, panic recovery and the given middleware.
// Middleware has to be known up front: chi refuses Use after the first route.
func NewServer(cfg Config, log *zap.Logger, mw ...func(http.Handler) http.Handler) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Use(mw...)

	return &Server{cfg: cfg, router: r, log: log}
}

// Router is where routes are registered.
func (s *Server) Router() chi.Router { return s.router }

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Listen binds host:port and starts serving in the background. It returns once the
// socket is bound, or the bind error. Serve failures arrive on the returned channel,
// which is closed when the server stops.
func (s *Server) Listen(host string, port int) (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ln != nil {
		return nil, fmt.Errorf("http server already listening on %s", s.ln.Addr())
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       seconds(s.cfg.ReadTimeoutSeconds),
		WriteTimeout:      seconds(s.cfg.WriteTimeoutSeconds),
		IdleTimeout:       seconds(s.cfg.IdleTimeoutSeconds),
	}

	s.srv, s.ln = srv, ln

	errCh := make(chan error, 1)

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	s.log.Info("http server listening", zap.String("addr", ln.Addr().String()))

	return errCh, nil
}

// Addr is the bound address, nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ln == nil {
		return nil
	}

	return s.ln.Addr()
}

// Shutdown gracefully stops the server. It is a no-op if Listen never succeeded.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	s.log.Info("http server stopping")

	return srv.Shutdown(ctx)
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}

	return time.Duration(n) * time.Second
}
