// Package ops exposes the local HTTP surface: health, connection
// status, manual retry, and cache introspection. It binds to localhost
// and is meant for dashboards and operators, not the public network.
package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/leadstack/leadsync/internal/cache"
	"github.com/leadstack/leadsync/internal/connection"
	"github.com/leadstack/leadsync/internal/registry"
	"github.com/leadstack/leadsync/internal/version"
)

// Server serves the ops endpoints.
type Server struct {
	logger *slog.Logger
	http   *http.Server

	manager  *connection.Manager
	reporter *connection.StatusReporter
	cache    *cache.Synchronizer
	registry *registry.Registry
}

// New builds the ops server on the given port.
func New(port int, manager *connection.Manager, sync *cache.Synchronizer, reg *registry.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		logger:   logger.With("component", "ops"),
		manager:  manager,
		reporter: connection.NewStatusReporter(manager),
		cache:    sync,
		registry: reg,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Post("/retry", s.handleRetry)
	r.Get("/debug/cache", s.handleCache)

	s.http = &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving. Blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.Info("ops server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.manager.Snapshot()

	health := struct {
		Status  string `json:"status"`
		Version string `json:"version"`
		State   string `json:"connection_state"`
	}{
		Status:  "healthy",
		Version: version.Version,
		State:   snap.Status.String(),
	}

	code := http.StatusOK
	if snap.Status == connection.StatusError {
		health.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, health)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Connection connection.Projection `json:"connection"`
		Registry   registry.Stats        `json:"registry"`
		Dropped    int64                 `json:"dropped_frames"`
	}{
		Connection: s.reporter.Status(),
		Registry:   s.registry.Stats(),
		Dropped:    s.manager.DroppedFrames(),
	})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	if err := s.reporter.Retry(r.Context()); err != nil {
		s.logger.Warn("manual retry failed", "error", err)
	}
	writeJSON(w, http.StatusAccepted, struct {
		Connection connection.Projection `json:"connection"`
	}{
		Connection: s.reporter.Status(),
	})
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	counts := s.cache.Counts()

	out := make(map[string]int, len(counts))
	for typ, n := range counts {
		out[string(typ)] = n
	}

	writeJSON(w, http.StatusOK, struct {
		Counts map[string]int `json:"counts"`
	}{Counts: out})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
