// Package health exposes whether a batch is in flight, plus the Prometheus
// metrics, over HTTP.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"go-batch-harness/internal/worker"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// StatusProvider is the part of the executor the health endpoint observes.
type StatusProvider interface {
	Executing() bool
	State() worker.State
}

type Server struct {
	router   *chi.Mux
	status   StatusProvider
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	addr     string
}

func NewServer(addr string, status StatusProvider, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{
		router:   chi.NewRouter(),
		status:   status,
		gatherer: gatherer,
		logger:   logger,
		addr:     addr,
	}
	srv.router.Use(middleware.Recoverer)
	srv.router.Get("/healthz", srv.handleHealthz)
	srv.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return srv
}

func (s *Server) Router() *chi.Mux {
	return s.router
}

type healthResponse struct {
	Status    string `json:"status"`
	Executing bool   `json:"executing"`
	State     string `json:"state"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	resp := healthResponse{
		Status:    "ok",
		Executing: s.status.Executing(),
		State:     s.status.State().String(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("encode healthz response", "error", err)
	}
}

// Run serves until ctx is cancelled, then shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Health server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("Health server stopped")
	return nil
}
