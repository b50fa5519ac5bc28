// Observability HTTP server for metrics and profiling
package observability

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nainya/chronostore/internal/logger"
)

// Server provides HTTP endpoints for metrics, health and profiling
type Server struct {
	server *http.Server
	log    *logger.Logger
}

// NewServer creates the observability HTTP server
func NewServer(listen string, log *logger.Logger) *Server {
	mux := http.NewServeMux()

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"chronostore"}`))
	})

	// Readiness check endpoint
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	})

	// pprof endpoints for profiling
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	mux.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/debug/pprof/allocs", pprof.Handler("allocs"))

	server := &http.Server{
		Addr:         listen,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		server: server,
		log:    log,
	}
}

// Start starts the observability HTTP server
func (s *Server) Start() error {
	s.log.Info("Starting observability server").
		Str("addr", s.server.Addr).
		Msg("Observability endpoints available")

	s.log.Info("Endpoints:").
		Str("metrics", fmt.Sprintf("http://%s/metrics", s.server.Addr)).
		Str("health", fmt.Sprintf("http://%s/health", s.server.Addr)).
		Str("pprof", fmt.Sprintf("http://%s/debug/pprof/", s.server.Addr)).
		Send()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("observability server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the observability server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down observability server").Send()
	return s.server.Shutdown(ctx)
}
