// Package api provides the HTTP handlers for health checks, tips, feedback
// and the WhatsApp webhook.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/healthchat/internal/domain"
	"github.com/ashureev/healthchat/internal/knowledge"
	"github.com/go-chi/chi/v5"
)

// FeedbackStore persists user ratings.
type FeedbackStore interface {
	InsertFeedback(ctx context.Context, feedback *domain.Feedback) error
}

// TipSource picks a random health tip.
type TipSource interface {
	RandomTip(ctx context.Context, category string) knowledge.Tip
}

// Handler serves the tips and feedback endpoints.
type Handler struct {
	tips     TipSource
	feedback FeedbackStore
	timeout  time.Duration
	logger   *slog.Logger
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(tips TipSource, feedback FeedbackStore, timeout time.Duration, logger *slog.Logger) *Handler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		tips:     tips,
		feedback: feedback,
		timeout:  timeout,
		logger:   logger,
	}
}

// RegisterRoutes registers the tips and feedback routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/tips/random", h.RandomTip)
	r.Post("/api/feedback", h.SubmitFeedback)
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
