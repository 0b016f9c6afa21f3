// Package api provides the HTTP handlers for the gateway's channels and
// read-only history views.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ashureev/truthguard/internal/domain"
)

const maxBodyBytes = 1 << 20

// Submitter runs one normalized verification request.
type Submitter interface {
	Submit(ctx context.Context, req domain.VerificationRequest) domain.VerificationResult
}

// Handler provides common handler utilities.
type Handler struct {
	gateway Submitter
	logger  *slog.Logger
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(gateway Submitter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{gateway: gateway, logger: logger}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// okBody is the body every webhook answers with.
var okBody = map[string]bool{"ok": true}

// decodeBody decodes a bounded JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// preview shortens inbound text for logs.
func preview(s string) string {
	r := []rune(s)
	if len(r) <= 120 {
		return s
	}
	return string(r[:120])
}
