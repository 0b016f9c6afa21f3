package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ashureev/truthguard/internal/domain"
	"github.com/ashureev/truthguard/internal/identity"
	"github.com/go-chi/chi/v5"
)

// HistoryReader reads persisted verification history.
type HistoryReader interface {
	ListHistory(ctx context.Context, filter domain.HistoryFilter) ([]*domain.VerificationRecord, error)
	Summary(ctx context.Context) (*domain.VerificationSummary, error)
}

// HistoryHandler serves the history and analytics views.
type HistoryHandler struct {
	*Handler
	history HistoryReader
}

// NewHistoryHandler creates a history handler.
func NewHistoryHandler(base *Handler, history HistoryReader) *HistoryHandler {
	return &HistoryHandler{Handler: base, history: history}
}

// RegisterRoutes registers history routes.
func (h *HistoryHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/history", h.List)
		r.Get("/analytics", h.Analytics)
	})
}

// List handles GET /api/history?limit=. Callers only ever see the records
// of their own device identity; an identity parameter naming anyone else is
// refused.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	who := identity.AnonIDFromContext(r.Context())
	if asked := q.Get("identity"); asked != "" && asked != who {
		Error(w, http.StatusForbidden, "history is only available for your own identity")
		return
	}

	filter := domain.HistoryFilter{Identity: who}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	if who == "" {
		JSON(w, http.StatusOK, []*domain.VerificationRecord{})
		return
	}

	records, err := h.history.ListHistory(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list history", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	JSON(w, http.StatusOK, records)
}

// Analytics handles GET /api/analytics.
func (h *HistoryHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	summary, err := h.history.Summary(r.Context())
	if err != nil {
		h.logger.Error("Failed to summarize history", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load analytics")
		return
	}
	JSON(w, http.StatusOK, summary)
}
