// Package observability exposes Prometheus metrics and health probes.
package observability

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessChecker reports whether the service can take sessions.
type ReadinessChecker func() bool

// NewRegistry returns a private registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Server serves /metrics and the /healthz probes on its own listener.
type Server struct {
	addr     string
	registry *prometheus.Registry
	isReady  ReadinessChecker
	logger   *log.Logger

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

func NewServer(addr string, reg *prometheus.Registry, ready ReadinessChecker) *Server {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Server{
		addr:     addr,
		registry: reg,
		isReady:  ready,
		logger:   log.Default().WithPrefix("metrics"),
	}
}

func (s *Server) Registry() *prometheus.Registry { return s.registry }

// Routes mounts the metrics and health handlers on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz", s.handleLiveness)
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)
}

// Start listens on addr and serves in the background. Serve errors other
// than a clean shutdown arrive on the returned channel, which closes when
// the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.In("observability").Errorf("server already running")
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.In("observability").With("addr", s.addr).Wrapf(err, "listen")
	}
	s.listener = ln

	mux := http.NewServeMux()
	s.Routes(mux)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	s.httpServer = srv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("serve", "err", err)
			errCh <- err
		}
	}()
	s.logger.Info("listening", "addr", ln.Addr().String())
	return errCh, nil
}

func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.In("observability").Wrapf(err, "shutdown")
		}
	}
	return nil
}

// Addr is the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.isReady == nil || s.isReady() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready\n"))
}
