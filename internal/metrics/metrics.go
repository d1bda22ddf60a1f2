// Package metrics owns the prometheus registry shared by sensord components
// and the HTTP server that exposes it.
package metrics

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rileyhilliard/sensord/internal/errors"
)

// Namespace prefixes every sensord metric name.
const Namespace = "sensord"

// DefaultPath is where metrics are served when no path is configured.
const DefaultPath = "/metrics"

// Registry wraps a dedicated prometheus registry so tests and multiple
// pipelines never collide on the global default registerer.
type Registry struct {
	reg *prometheus.Registry
}

// NewRegistry creates a registry pre-loaded with the Go runtime and process
// collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{reg: reg}
}

// Registerer returns the registerer components attach their metrics to.
// A nil Registry yields nil, which components treat as "metrics disabled".
func (r *Registry) Registerer() prometheus.Registerer {
	if r == nil {
		return nil
	}
	return r.reg
}

// Gatherer exposes the registry for scraping or inspection in tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns an HTTP handler serving the registry in the prometheus
// exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Register registers each collector, returning an already-registered
// collector in place of a duplicate so components can be rebuilt against
// the same registry.
func Register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Server serves a Registry over HTTP.
type Server struct {
	addr     string
	path     string
	registry *Registry

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer creates a metrics server. An empty path defaults to /metrics.
func NewServer(addr, path string, registry *Registry) *Server {
	if path == "" {
		path = DefaultPath
	}
	return &Server{addr: addr, path: path, registry: registry}
}

// Addr returns the bound listen address once the server has started,
// or the configured address before that.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Run listens and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return errors.New(errors.ErrState, "Metrics server is already running", "")
	}

	mux := http.NewServeMux()
	mux.Handle(s.path, s.registry.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.mu.Unlock()
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot listen on metrics address "+s.addr,
			"Pick a free address with metrics.addr in sensord.yaml")
	}
	s.listener = ln
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	srv := s.server
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return errors.WrapWithCode(err, errors.ErrConnection, "Metrics server stopped", "")
	}
}
