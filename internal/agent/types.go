// Package agent implements the health conversation orchestrator and its
// HTTP and WebSocket chat transports.
package agent

import (
	"context"
	"time"

	"github.com/ashureev/healthchat/internal/domain"
	"github.com/ashureev/healthchat/internal/synth"
)

// Channel names the transport a turn arrived on.
type Channel string

const (
	// ChannelHTTP is the JSON chat endpoint.
	ChannelHTTP Channel = "chat_http"
	// ChannelWebSocket is the interactive WebSocket chat.
	ChannelWebSocket Channel = "chat_ws"
	// ChannelWhatsApp is the Twilio WhatsApp webhook.
	ChannelWhatsApp Channel = "whatsapp"
)

// External reports whether the channel is an external messaging channel.
// External users get a durable profile.
func (c Channel) External() bool {
	return c == ChannelWhatsApp
}

// TurnRequest is one user utterance to answer.
type TurnRequest struct {
	UserID    string
	SessionID string
	Channel   Channel
	Text      string
	// External overrides Channel.External when set.
	External bool
	// RequestID correlates logs with the transport request.
	RequestID string
}

// TurnResult is the outcome of one turn.
type TurnResult struct {
	Response      string
	Fallback      bool
	NeedsResearch bool
	SubQueries    int
	Duration      time.Duration
}

// ChatRequest is the JSON body of a chat request.
type ChatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id,omitempty"`
}

// ChatResponse is the JSON body of a chat reply.
type ChatResponse struct {
	Response string `json:"response"`
	UserID   string `json:"user_id"`
}

// ClearRequest is the JSON body of a clear-context request.
type ClearRequest struct {
	UserID string `json:"user_id,omitempty"`
}

// Planner decides whether research is needed and produces sub-queries.
type Planner interface {
	Plan(ctx context.Context, utterance string) domain.DecompositionResult
}

// Researcher gathers findings for sub-queries.
type Researcher interface {
	Research(ctx context.Context, subQueries []string) domain.ResearchBundle
}

// Retriever builds the local-knowledge context.
type Retriever interface {
	Retrieve(ctx context.Context, query string, profile *domain.UserProfile) domain.RetrievalContext
}

// Synthesizer produces the final answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, req synth.Request) (string, error)
}

// SessionStore keeps per-conversation turn history.
type SessionStore interface {
	Record(key, userText, assistantText string)
	Read(key string, exchanges int) []domain.Turn
	Summarize(key string) string
	Clear(key string)
}

// ProfileStore keeps durable per-user profiles.
type ProfileStore interface {
	Load(ctx context.Context, userID string) *domain.UserProfile
	Update(ctx context.Context, userID, userText, assistantText, summary string) *domain.UserProfile
}
