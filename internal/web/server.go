// Package web exposes read-only status endpoints for a running extraction:
// liveness, the live per-dataset snapshot, and stored run history.
//
// The server is strictly an observer. It never mutates pipeline state, so it
// can be pointed at a production run without risk.
package web

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/ETL/internal/config"
	"github.com/JonMunkholm/ETL/internal/core"
	"github.com/JonMunkholm/ETL/internal/history"
	"github.com/JonMunkholm/ETL/internal/web/middleware"
)

// Server is the status HTTP server.
type Server struct {
	pipeline *core.Pipeline
	history  *history.Store // nil when run history is disabled
	router   *chi.Mux
	server   *http.Server
}

// NewServer builds the status server around a pipeline and an optional
// history store.
func NewServer(pipeline *core.Pipeline, hist *history.Store, cfg *config.Config) *Server {
	s := &Server{
		pipeline: pipeline,
		history:  hist,
		router:   chi.NewRouter(),
	}

	s.setupMiddleware(cfg)
	s.setupRoutes(cfg)

	s.server = &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     s.router,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	return s
}

func (s *Server) setupMiddleware(cfg *config.Config) {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(cfg.Server.RequestTimeout))
}

// setupRoutes registers endpoints. /healthz stays open so load balancers can
// probe it; the /api group carries API-key auth when configured.
func (s *Server) setupRoutes(cfg *config.Config) {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&cfg.Security))
		r.Get("/status", s.handleStatus)
		r.Get("/runs", s.handleRuns)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus reports the live run snapshot: per-dataset state, stats, and
// worker occupancy.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.pipeline.Snapshot())
}

// handleRuns lists stored runs, newest first.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "run history is disabled"})
		return
	}
	runs, err := s.history.RecentRuns(r.Context(), 20)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []history.RunSummary{}
	}
	respondJSON(w, http.StatusOK, runs)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Start runs the server until Shutdown or failure.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
