package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Features reports which optional surfaces are enabled.
type Features struct {
	Chat     bool `json:"chat"`
	WhatsApp bool `json:"whatsapp"`
	Tips     bool `json:"tips"`
	Feedback bool `json:"feedback"`
	Research bool `json:"research"`
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db       Pinger
	features Features
	timeout  time.Duration
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db Pinger, features Features, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandler{db: db, features: features, timeout: timeout}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status":   "healthy",
		"message":  "Health chat service is running",
		"features": h.features,
		"checks":   checks,
	}
	statusCode := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
