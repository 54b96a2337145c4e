package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/healthchat/internal/identity"
	"github.com/coder/websocket"
)

const wsWriteTimeout = 10 * time.Second

// wsMessage represents WebSocket message structure.
type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// HandleWebSocket serves GET /ws/chat. Each "message" frame is one turn.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := identity.ResolveUserID(r.Context(), r.URL.Query().Get("user_id"))
	sessionID := identity.SessionIDFromContext(r.Context())
	h.logger.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if userID == "" {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.readLoop(r.Context(), ws, userID, sessionID)
	h.logger.Info("Chat session ended", "user_id", userID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.cfg.IsDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.cfg.AllowedOrigin == "*" {
		return true
	}
	if origin == h.cfg.AllowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.cfg.AllowedOrigin)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, userID, sessionID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("WebSocket closed by client", "user_id", userID)
			} else if ctx.Err() == nil {
				h.logger.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Plain text frames are treated as chat messages.
			msg = wsMessage{Type: "message", Content: string(data)}
		}

		var reply wsMessage
		switch msg.Type {
		case "message":
			reply = h.wsTurn(ctx, userID, sessionID, msg.Content)
		case "ping":
			reply = wsMessage{Type: "pong"}
		case "clear":
			h.agent.ClearSession(userID)
			reply = wsMessage{Type: "cleared", Content: "Context cleared successfully"}
		default:
			reply = wsMessage{Type: "error", Content: "unknown message type"}
		}

		if err := h.writeWS(ctx, ws, reply); err != nil {
			h.logger.Debug("Failed to write WebSocket reply", "error", err, "user_id", userID)
			return
		}
	}
}

func (h *Handler) wsTurn(ctx context.Context, userID, sessionID, content string) wsMessage {
	content = strings.TrimSpace(content)
	if content == "" {
		return wsMessage{Type: "error", Content: "message is required"}
	}

	result := h.agent.Turn(ctx, TurnRequest{
		UserID:    userID,
		SessionID: sessionID,
		Channel:   ChannelWebSocket,
		Text:      content,
	})
	h.persist(userID, ChannelWebSocket, content, result.Response)
	return wsMessage{Type: "response", Content: result.Response}
}

func (h *Handler) writeWS(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return ws.Write(writeCtx, websocket.MessageText, data)
}
