package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Rahil-Maniar/Autonomous-Discovery-Framework/internal/discovery"
)

const extractTimeout = 90 * time.Second

type extractRequest struct {
	TextChunk string `json:"text_chunk"`
}

// Handler exposes the service over HTTP.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler wires the service into an HTTP handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Router returns the chi router for the extraction endpoint.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/", h.extract)
	return r
}

func (h *Handler) extract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.TextChunk) == "" {
		writeError(w, http.StatusBadRequest, "text_chunk is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), extractTimeout)
	defer cancel()

	leads, err := h.service.Extract(ctx, req.TextChunk)
	if err != nil {
		// Failures answer with an empty lead list; callers treat the chunk as
		// barren rather than branching on error detail.
		if errors.Is(err, discovery.ErrMalformedResponse) {
			h.logger.Warn("model returned unparseable extraction", zap.Error(err))
		} else {
			h.logger.Error("extraction failed", zap.Error(err))
		}
		writeJSON(w, http.StatusInternalServerError, []discovery.Lead{})
		return
	}
	if leads == nil {
		leads = []discovery.Lead{}
	}
	writeJSON(w, http.StatusOK, leads)
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
