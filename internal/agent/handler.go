package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/healthchat/internal/domain"
	"github.com/ashureev/healthchat/internal/identity"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20 // 1MB

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 50
)

// ChatHistory persists answered exchanges for later display.
type ChatHistory interface {
	AppendChat(ctx context.Context, record *domain.ChatRecord) error
	ListChatHistory(ctx context.Context, userID string, limit int) ([]*domain.ChatRecord, error)
}

// HandlerConfig tunes the chat transports.
type HandlerConfig struct {
	AllowedOrigin      string
	IsDev              bool
	MaxRequestBodySize int64
	PersistenceTimeout time.Duration
	Logger             *slog.Logger
}

// Handler serves the HTTP and WebSocket chat endpoints.
type Handler struct {
	agent   *Service
	history ChatHistory
	cfg     HandlerConfig
	logger  *slog.Logger
}

// NewHandler creates a chat handler. history may be nil.
func NewHandler(service *Service, history ChatHistory, cfg HandlerConfig) *Handler {
	if cfg.MaxRequestBodySize <= 0 {
		cfg.MaxRequestBodySize = defaultMaxRequestBodySize
	}
	if cfg.PersistenceTimeout <= 0 {
		cfg.PersistenceTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		agent:   service,
		history: history,
		cfg:     cfg,
		logger:  logger,
	}
}

// RegisterRoutes registers chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/", h.HandleChat)
		r.Post("/clear", h.HandleClear)
		r.Get("/history", h.HandleHistory)
	})
	r.Get("/ws/chat", h.HandleWebSocket)
}

// HandleChat handles POST /api/chat requests.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxRequestBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, `{"error": "request body too large"}`, http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		http.Error(w, `{"error": "message is required"}`, http.StatusBadRequest)
		return
	}

	userID := identity.ResolveUserID(r.Context(), req.UserID)
	if userID == "" {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}

	h.logger.Info("Chat request",
		"user_id", userID,
		"session_id", identity.SessionIDFromContext(r.Context()),
		"message_length", len(req.Message),
	)

	result := h.agent.Turn(r.Context(), TurnRequest{
		UserID:    userID,
		SessionID: identity.SessionIDFromContext(r.Context()),
		Channel:   ChannelHTTP,
		Text:      req.Message,
		RequestID: chiMiddleware.GetReqID(r.Context()),
	})
	h.persist(userID, ChannelHTTP, req.Message, result.Response)

	writeJSON(w, http.StatusOK, ChatResponse{Response: result.Response, UserID: userID})
}

// HandleClear handles POST /api/chat/clear requests.
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxRequestBodySize)

	// An empty body clears the caller's own context.
	var req ClearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	userID := identity.ResolveUserID(r.Context(), req.UserID)
	if userID == "" {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}

	h.agent.ClearSession(userID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Context cleared successfully",
		"status":  "success",
	})
}

// HandleHistory handles GET /api/chat/history requests. History is only
// ever read for the caller's own cookie identity.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}
	if h.history == nil {
		writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "history": []*domain.ChatRecord{}})
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, `{"error": "invalid limit"}`, http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.PersistenceTimeout)
	defer cancel()

	records, err := h.history.ListChatHistory(ctx, userID, limit)
	if err != nil {
		h.logger.Error("Failed to list chat history", "error", err, "user_id", userID)
		http.Error(w, `{"error": "failed to load chat history"}`, http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*domain.ChatRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "history": records})
}

// persist records the exchange the user saw. Failures are logged only.
func (h *Handler) persist(userID string, channel Channel, message, response string) {
	if h.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.PersistenceTimeout)
	defer cancel()
	err := h.history.AppendChat(ctx, &domain.ChatRecord{
		UserID:   userID,
		Channel:  string(channel),
		Message:  message,
		Response: response,
	})
	if err != nil {
		h.logger.Warn("Failed to persist chat history", "error", err, "user_id", userID)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}
