package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/ashureev/healthchat/internal/domain"
	"github.com/ashureev/healthchat/internal/synth"
)

// Dependencies are the pipeline stages the service sequences.
type Dependencies struct {
	Sessions    SessionStore
	Profiles    ProfileStore
	Planner     Planner
	Researcher  Researcher // nil disables external research
	Retriever   Retriever
	Synthesizer Synthesizer
}

// Options tune the service.
type Options struct {
	// Fallback is returned whenever a turn cannot be answered.
	Fallback string
	// ContextExchanges is how many recent exchanges feed synthesis.
	ContextExchanges int
	// ConversationLog receives user and assistant messages. Optional.
	ConversationLog ConversationLogger
	Logger          *slog.Logger
}

// Service answers user turns. It is the only place fallback text is chosen.
type Service struct {
	deps      Dependencies
	fallback  string
	exchanges int
	convLog   ConversationLogger
	logger    *slog.Logger
}

// NewService validates deps and creates a service.
func NewService(deps Dependencies, opts Options) (*Service, error) {
	switch {
	case deps.Sessions == nil:
		return nil, errors.New("session store is required")
	case deps.Profiles == nil:
		return nil, errors.New("profile store is required")
	case deps.Planner == nil:
		return nil, errors.New("planner is required")
	case deps.Retriever == nil:
		return nil, errors.New("retriever is required")
	case deps.Synthesizer == nil:
		return nil, errors.New("synthesizer is required")
	}
	if opts.Fallback == "" {
		return nil, errors.New("fallback response is required")
	}
	if opts.ContextExchanges <= 0 {
		opts.ContextExchanges = 5
	}
	if opts.ConversationLog == nil {
		opts.ConversationLog = noopConversationLogger{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Service{
		deps:      deps,
		fallback:  opts.Fallback,
		exchanges: opts.ContextExchanges,
		convLog:   opts.ConversationLog,
		logger:    opts.Logger,
	}, nil
}

// HandleTurn answers text for userID. It never fails: on any internal error
// it returns the configured fallback and leaves session and profile state
// untouched.
func (s *Service) HandleTurn(ctx context.Context, userID, text string, isExternalChannel bool) string {
	channel := ChannelHTTP
	if isExternalChannel {
		channel = ChannelWhatsApp
	}
	return s.Turn(ctx, TurnRequest{
		UserID:   userID,
		Channel:  channel,
		Text:     text,
		External: isExternalChannel,
	}).Response
}

// Turn is HandleTurn with transport metadata for logging.
func (s *Service) Turn(ctx context.Context, req TurnRequest) (result TurnResult) {
	start := time.Now()
	external := req.External || req.Channel.External()
	logger := s.logger.With("user_id", req.UserID, "channel", string(req.Channel))

	s.logEvent(req, "inbound", "user_message", req.Text, nil)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("turn panicked", "panic", r, "stack", string(debug.Stack()))
			result = s.fallbackResult(req, fmt.Errorf("panic: %v", r), start)
		}
	}()

	answer, plan, err := s.answer(ctx, req, external, logger)
	if err != nil {
		logger.Error("turn failed, returning fallback", "error", err)
		return s.fallbackResult(req, err, start)
	}

	s.commit(ctx, req, answer, external, logger)

	result = TurnResult{
		Response:      answer,
		NeedsResearch: plan.NeedsResearch,
		SubQueries:    len(plan.SubQueries),
		Duration:      time.Since(start),
	}
	s.logEvent(req, "outbound", "assistant_message", answer, map[string]any{
		"needs_research": result.NeedsResearch,
		"sub_queries":    result.SubQueries,
		"duration_ms":    result.Duration.Milliseconds(),
	})
	logger.Info("turn answered",
		"needs_research", result.NeedsResearch,
		"sub_queries", result.SubQueries,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result
}

func (s *Service) answer(ctx context.Context, req TurnRequest, external bool, logger *slog.Logger) (string, domain.DecompositionResult, error) {
	if req.Text == "" {
		return "", domain.NoResearch(), errors.New("empty utterance")
	}

	var profile *domain.UserProfile
	if external {
		profile = s.deps.Profiles.Load(ctx, req.UserID)
	}
	history := s.deps.Sessions.Read(req.UserID, s.exchanges)

	plan := s.deps.Planner.Plan(ctx, req.Text)

	research := domain.NewResearchBundle()
	if plan.NeedsResearch && len(plan.SubQueries) > 0 {
		if s.deps.Researcher != nil {
			research = s.deps.Researcher.Research(ctx, plan.SubQueries)
		} else {
			logger.Debug("research requested but no provider configured")
		}
	}

	retrieval := s.deps.Retriever.Retrieve(ctx, req.Text, profile)

	answer, err := s.deps.Synthesizer.Synthesize(ctx, synth.Request{
		Query:      req.Text,
		SubQueries: plan.SubQueries,
		Research:   research,
		Retrieval:  retrieval,
		Profile:    profile,
		History:    history,
	})
	if err != nil {
		return "", plan, err
	}
	return answer, plan, nil
}

// commit records the answered exchange. The user already has an answer at
// this point, so a panic while saving state is logged and the answer stands.
func (s *Service) commit(ctx context.Context, req TurnRequest, answer string, external bool, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("saving turn state panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	s.deps.Sessions.Record(req.UserID, req.Text, answer)
	if external {
		summary := s.deps.Sessions.Summarize(req.UserID)
		s.deps.Profiles.Update(ctx, req.UserID, req.Text, answer, summary)
	}
}

func (s *Service) fallbackResult(req TurnRequest, err error, start time.Time) TurnResult {
	s.logEvent(req, "outbound", "fallback", s.fallback, map[string]any{"error": err.Error()})
	return TurnResult{Response: s.fallback, Fallback: true, Duration: time.Since(start)}
}

// ClearSession drops the conversation history for userID.
func (s *Service) ClearSession(userID string) {
	s.deps.Sessions.Clear(userID)
	s.logger.Info("session cleared", "user_id", userID)
}

// Fallback returns the configured fallback response.
func (s *Service) Fallback() string {
	return s.fallback
}

// Close flushes the conversation log.
func (s *Service) Close() error {
	return s.convLog.Close()
}

func (s *Service) logEvent(req TurnRequest, direction, eventType, content string, meta map[string]any) {
	if req.RequestID != "" {
		if meta == nil {
			meta = map[string]any{}
		}
		meta["request_id"] = req.RequestID
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = string(req.Channel)
	}
	s.convLog.Log(ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		UserID:     req.UserID,
		SessionID:  sessionID,
		Channel:    string(req.Channel),
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: content,
		Content:    cleanForReadability(content),
		Meta:       meta,
	})
}
