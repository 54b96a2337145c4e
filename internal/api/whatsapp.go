package api

import (
	"context"
	"encoding/xml"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/healthchat/internal/agent"
	"github.com/ashureev/healthchat/internal/domain"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// whatsAppMessageLimit is the longest body Twilio delivers as one message.
const whatsAppMessageLimit = 1600

// Turner answers one conversation turn.
type Turner interface {
	Turn(ctx context.Context, req agent.TurnRequest) agent.TurnResult
}

// ChatRecorder persists answered exchanges.
type ChatRecorder interface {
	AppendChat(ctx context.Context, record *domain.ChatRecord) error
}

// WhatsAppHandler serves the Twilio WhatsApp webhooks.
type WhatsAppHandler struct {
	turns   Turner
	history ChatRecorder
	timeout time.Duration
	logger  *slog.Logger
}

// NewWhatsAppHandler creates a webhook handler. history may be nil.
func NewWhatsAppHandler(turns Turner, history ChatRecorder, timeout time.Duration, logger *slog.Logger) *WhatsAppHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WhatsAppHandler{turns: turns, history: history, timeout: timeout, logger: logger}
}

// RegisterRoutes registers the webhook routes.
func (h *WhatsAppHandler) RegisterRoutes(r chi.Router) {
	r.Route("/whatsapp", func(r chi.Router) {
		r.Post("/webhook", h.Webhook)
		r.Post("/status", h.Status)
	})
}

type twimlResponse struct {
	XMLName  xml.Name `xml:"Response"`
	Messages []string `xml:"Message"`
}

// Webhook handles POST /whatsapp/webhook. Twilio posts the inbound message
// as a form and expects TwiML back.
func (h *WhatsAppHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		Error(w, http.StatusBadRequest, "invalid form body")
		return
	}

	body := strings.TrimSpace(r.PostForm.Get("Body"))
	from := strings.TrimSpace(r.PostForm.Get("From"))
	if from == "" {
		Error(w, http.StatusBadRequest, "sender is required")
		return
	}
	if body == "" {
		writeTwiML(w, "Message is required")
		return
	}

	h.logger.Info("WhatsApp message received", "user_id", from, "message_length", len(body))

	result := h.turns.Turn(r.Context(), agent.TurnRequest{
		UserID:    from,
		SessionID: r.PostForm.Get("MessageSid"),
		Channel:   agent.ChannelWhatsApp,
		Text:      body,
		External:  true,
		RequestID: chiMiddleware.GetReqID(r.Context()),
	})
	h.persist(from, body, result.Response)

	writeTwiML(w, splitMessage(result.Response, whatsAppMessageLimit)...)
}

// Status handles POST /whatsapp/status delivery callbacks.
func (h *WhatsAppHandler) Status(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		Error(w, http.StatusBadRequest, "invalid form body")
		return
	}
	sid := r.PostForm.Get("MessageSid")
	status := r.PostForm.Get("MessageStatus")
	h.logger.Info("WhatsApp status update", "message_sid", sid, "status", status)

	JSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Status update received: " + status,
	})
}

func (h *WhatsAppHandler) persist(userID, message, response string) {
	if h.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	err := h.history.AppendChat(ctx, &domain.ChatRecord{
		UserID:   userID,
		Channel:  string(agent.ChannelWhatsApp),
		Message:  message,
		Response: response,
	})
	if err != nil {
		h.logger.Warn("Failed to persist chat history", "error", err, "user_id", userID)
	}
}

func writeTwiML(w http.ResponseWriter, messages ...string) {
	out, err := xml.Marshal(twimlResponse{Messages: messages})
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(out)
}

// splitMessage breaks text into chunks of at most limit runes, preferring
// paragraph and line boundaries.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var parts []string
	for len(runes) > limit {
		cut := limit
		window := string(runes[:limit])
		for _, sep := range []string{"\n\n", "\n", " "} {
			if i := strings.LastIndex(window, sep); i > 0 {
				cut = len([]rune(window[:i]))
				break
			}
		}
		parts = append(parts, strings.TrimSpace(string(runes[:cut])))
		runes = []rune(strings.TrimLeft(string(runes[cut:]), " \n"))
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
