// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package rabbit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/GwynCerbin/go_rabbit_service/pkg/adapter"
	"github.com/GwynCerbin/go_rabbit_service/pkg/broker"
	"github.com/GwynCerbin/go_rabbit_service/pkg/config"
	"github.com/GwynCerbin/go_rabbit_service/pkg/httpx"
	"github.com/GwynCerbin/go_rabbit_service/pkg/infra"
	"github.com/GwynCerbin/go_rabbit_service/pkg/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var (
	errServiceStarted = errors.New("service already started")
	errHTTPStopped    = errors.New("http server stopped")
)

// Dialer opens the broker connection. DialBroker is used unless WithDialer says otherwise.
type Dialer func(cfg *adapter.Client, log *zap.Logger) (broker.Connection, error)

// DialBroker dials a real AMQP broker.
func DialBroker(cfg *adapter.Client, log *zap.Logger) (broker.Connection, error) {
	con, err := adapter.Dial(cfg, log)
	if err != nil {
		return nil, err
	}

	return con, nil
}

type Option func(*Service)

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithDialer(d Dialer) Option {
	return func(s *Service) {
		if d != nil {
			s.dial = d
		}
	}
}

// WithRegistry makes the service register its collectors on reg and serve reg on /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Service) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// WithHTTPMiddleware appends middleware to the HTTP router, after access log and metrics.
func WithHTTPMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(s *Service) {
		s.middleware = append(s.middleware, mw...)
	}
}

type queueRegistration struct {
	name    string
	handler broker.Handler
	params  adapter.QueueParams
}

// Service wires one broker connection, its consumers and the HTTP ingress.
// Queues and routes are recorded up front and applied by Start.
type Service struct {
	cfg        config.Config
	log        *zap.Logger
	dial       Dialer
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	middleware []func(http.Handler) http.Handler

	router *infra.Router
	http   *httpx.Server

	mute     sync.Mutex
	pending  []queueRegistration
	routes   routes
	conn     broker.Connection
	topology *adapter.Topology
	dispatch *Dispatcher
	pub      *adapter.Publisher
	serveErr <-chan error
}

func New(cfg config.Config, opts ...Option) (*Service, error) {
	s := &Service{
		cfg:  cfg,
		log:  zap.NewNop(),
		dial: DialBroker,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m, err := metrics.New(s.registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	s.metrics = m
	s.router = infra.NewRouter(s.log)

	mw := append([]func(http.Handler) http.Handler{
		httpx.AccessLog(s.log),
		httpx.Collect(m, "/metrics"),
	}, s.middleware...)

	s.http = httpx.NewServer(cfg.HTTP, s.log, mw...)

	return s, nil
}

// Queue records a handler for queue; the queue is declared and registered during Start.
func (s *Service) Queue(name string, handler broker.Handler, params adapter.QueueParams) {
	s.mute.Lock()
	defer s.mute.Unlock()

	s.pending = append(s.pending, queueRegistration{name: name, handler: handler, params: params})
}

// Route records an HTTP route hook, applied by ConfigureRoutes. Hooks run with the
// service locked and must not call back into the Service; handlers they mount may.
func (s *Service) Route(fn RouteFunc) {
	s.mute.Lock()
	defer s.mute.Unlock()

	s.routes.add(fn)
}

// ConfigureRoutes mounts /metrics, /health and every recorded hook. Only the first call has effect.
func (s *Service) ConfigureRoutes() {
	s.mute.Lock()
	defer s.mute.Unlock()

	s.configureRoutes()
}

func (s *Service) configureRoutes() {
	if s.routes.applied {
		return
	}

	r := s.http.Router()
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Get("/health", s.health)

	s.routes.apply(r)
}

func (s *Service) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	s.mute.Lock()
	up := s.conn != nil
	s.mute.Unlock()

	if !up {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"down"}`))

		return
	}

	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Start connects to the broker, declares the topology, starts consuming, mounts the
// routes and binds the HTTP listener, in that order. The first failure stops the
// sequence, closes the broker connection and is returned.
func (s *Service) Start(ctx context.Context) (err error) {
	s.mute.Lock()
	defer s.mute.Unlock()

	if s.conn != nil {
		return errServiceStarted
	}

	log := s.log.With(zap.String("exchange", s.cfg.Broker.Exchange))

	conn, err := s.dial(&s.cfg.Broker, s.log)
	if err != nil {
		return err
	}

	s.conn = conn

	defer func() {
		if err != nil {
			if closeErr := conn.Close(); closeErr != nil {
				log.Error("close broker connection after failed start", zap.Error(closeErr))
			}

			s.conn, s.topology, s.pub, s.dispatch = nil, nil, nil, nil
		}
	}()

	ch, err := conn.OpenChannel()
	if err != nil {
		return err
	}

	s.topology = adapter.NewTopology(ch, s.log)

	exchange := s.cfg.Broker.Exchange
	if exchange != "" {
		if _, err = s.topology.DeclareExchange(exchange, adapter.ExchangeDirect, true); err != nil {
			return err
		}
	}

	s.pub = adapter.NewPublisher(ch, s.topology, s.cfg.Broker.PublisherConfig(), s.metrics, s.log)

	for _, p := range s.pending {
		if _, err = s.router.RegisterAndDeclare(s.topology, p.name, p.handler, p.params); err != nil {
			return err
		}
	}

	if exchange != "" {
		if err = s.topology.BindAll(exchange); err != nil {
			return err
		}
	}

	s.dispatch = NewDispatcher(ch, s.topology, s.router)
	s.dispatch.SetLogger(s.log)
	s.dispatch.SetMetrics(s.metrics)
	s.dispatch.SetConsumerTag(s.cfg.Broker.AppId)

	// handlers keep their context values but outlive the caller's cancellation
	if err = s.dispatch.StartAll(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	s.configureRoutes()

	s.serveErr, err = s.http.Listen(s.cfg.HTTP.Host, s.cfg.HTTP.Port)
	if err != nil {
		return err
	}

	log.Info("service started",
		zap.Strings("queues", s.router.Names()),
		zap.Stringer("http", s.http.Addr()),
	)

	return nil
}

// Publisher is the publisher over the service channel, nil before Start and after Shutdown.
func (s *Service) Publisher() *adapter.Publisher {
	s.mute.Lock()
	defer s.mute.Unlock()

	return s.pub
}

// Topology is the topology manager of the running service, nil before Start.
func (s *Service) Topology() *adapter.Topology {
	s.mute.Lock()
	defer s.mute.Unlock()

	return s.topology
}

// HTTPAddr is the bound HTTP address, nil while no listener is bound.
func (s *Service) HTTPAddr() net.Addr {
	return s.http.Addr()
}

// Handler is the HTTP root handler, usable before the listener is bound.
func (s *Service) Handler() http.Handler {
	return s.http.Handler()
}

// HTTPRouter exposes the router for routes added outside Route hooks.
func (s *Service) HTTPRouter() chi.Router {
	return s.http.Router()
}

// Shutdown stops the HTTP server, closes the broker connection and waits for the
// consume loops to drain.
func (s *Service) Shutdown(ctx context.Context) error {
	var errs []error

	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http: %w", err))
	}

	s.mute.Lock()
	conn, dispatch := s.conn, s.dispatch
	s.conn, s.pub = nil, nil
	s.mute.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", infra.ConsumerCloseError{}, err))
		}
	}

	if dispatch != nil {
		if err := dispatch.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("wait consumers: %w", err))
		}
	}

	s.log.Info("service stopped")

	return errors.Join(errs...)
}

// Run starts the service and blocks until ctx is done or the HTTP server fails,
// then shuts down.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	s.mute.Lock()
	serveErr := s.serveErr
	s.mute.Unlock()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case err, ok := <-serveErr:
			if ok {
				return err
			}

			if gctx.Err() == nil {
				return errHTTPStopped
			}

			return nil
		case <-gctx.Done():
			return nil
		}
	})

	g.Go(func() error {
		<-gctx.Done()

		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		return s.Shutdown(sctx)
	})

	return g.Wait()
}
