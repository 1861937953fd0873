// Package api hosts the HTTP surface of the orchestrator service. Notable
// routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /__scheduled for the external timer that starts a chain.
//   - POST /__continue for the self-addressed continuation call.
//   - GET /v1/state/... for read-only operator access to the documents.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/discovery"
	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/metrics"
)

const stateReadTimeout = 3 * time.Second

// Runner executes discovery cycles and reports lease state.
type Runner interface {
	RunCycle(ctx context.Context, cycle int) (discovery.CycleReport, error)
	Busy() bool
}

// Server wires HTTP handlers to the orchestrator and state store.
type Server struct {
	router chi.Router
	runner Runner
	store  discovery.StateStore
	secret string
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner Runner, store discovery.StateStore, secret string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	s := &Server{
		runner: runner,
		store:  store,
		secret: secret,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metricsMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// The external timer is trusted; only the self-addressed continuation
	// call carries the shared secret.
	r.Post("/__scheduled", s.scheduled)
	r.Group(func(r chi.Router) {
		r.Use(secretMiddleware(s.secret))
		r.Post("/__continue", s.continueChain)
	})

	r.Route("/v1/state", func(r chi.Router) {
		r.Get("/seeds", s.listSeeds)
		r.Get("/pages", s.listPages)
		r.Get("/analytics", s.getAnalytics)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), stateReadTimeout)
	defer cancel()
	if _, err := s.store.SeedLibrary(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "state store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// scheduled starts a fresh chain at cycle 1. The external timer calls this.
func (s *Server) scheduled(w http.ResponseWriter, r *http.Request) {
	s.trigger(w, r, 1)
}

type continueRequest struct {
	NextCycle int `json:"next_cycle"`
}

// continueChain resumes a chain at the cycle the previous invocation chose.
func (s *Server) continueChain(w http.ResponseWriter, r *http.Request) {
	var req continueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.NextCycle < 1 {
		writeError(w, http.StatusBadRequest, "next_cycle must be >= 1")
		return
	}
	s.trigger(w, r, req.NextCycle)
}

// trigger kicks off a cycle in the background. Overlapping triggers are
// rejected with 409 so only one chain writes state at a time.
func (s *Server) trigger(w http.ResponseWriter, _ *http.Request, cycle int) {
	if s.runner.Busy() {
		writeError(w, http.StatusConflict, "a cycle is already running")
		return
	}
	go func() {
		report, err := s.runner.RunCycle(context.Background(), cycle)
		if err != nil {
			s.logger.Error("background cycle failed",
				zap.Int("cycle", cycle),
				zap.Error(err))
			return
		}
		s.logger.Info("background cycle finished",
			zap.Int("cycle", report.Cycle),
			zap.String("mode", string(report.Mode)),
			zap.Int("new_pages", report.NewPages))
	}()
	writeJSON(w, http.StatusAccepted, map[string]int{"cycle": cycle})
}

func (s *Server) listSeeds(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), stateReadTimeout)
	defer cancel()
	lib, err := s.store.SeedLibrary(ctx)
	if err != nil {
		s.logger.Error("list seeds failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load seed library")
		return
	}
	writeJSON(w, http.StatusOK, lib)
}

func (s *Server) listPages(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), stateReadTimeout)
	defer cancel()
	pages, err := s.store.VerifiedPages(ctx)
	if err != nil {
		s.logger.Error("list pages failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load verified pages")
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

func (s *Server) getAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), stateReadTimeout)
	defer cancel()
	analytics, err := s.store.Analytics(ctx)
	if err != nil {
		s.logger.Error("get analytics failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load analytics")
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
