// Package synth produces the final answer in two sequential model passes:
// a reasoning pass over all gathered context, then an answer-only pass that
// sees the reasoning but never exposes it.
package synth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/healthchat/internal/domain"
	"github.com/ashureev/healthchat/internal/llm"
)

const (
	passReasoning = "reasoning"
	passFinal     = "final"
)

// DefaultOptions are the sampling settings for both passes.
var DefaultOptions = llm.Options{
	Temperature:     0.7,
	TopP:            0.95,
	TopK:            40,
	MaxOutputTokens: 8192,
}

// Request carries everything gathered for one utterance.
type Request struct {
	Query      string
	SubQueries []string
	Research   domain.ResearchBundle
	Retrieval  domain.RetrievalContext
	Profile    *domain.UserProfile
	History    []domain.Turn
}

// ReasoningTrace is the raw output of the reasoning pass. It only feeds the
// final pass and is never returned to callers.
type ReasoningTrace struct {
	text string
}

// Synthesizer runs the two-pass generation protocol.
type Synthesizer struct {
	gen     llm.Generator
	opts    llm.Options
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a synthesizer. model overrides DefaultOptions.Model when non-empty.
func New(gen llm.Generator, model string, timeout time.Duration, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	opts := DefaultOptions
	opts.Model = model
	return &Synthesizer{gen: gen, opts: opts, timeout: timeout, logger: logger}
}

// Synthesize returns the final answer text. Any failure in either pass is
// returned as a *domain.GenerationError.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (string, error) {
	start := time.Now()

	trace, err := s.reason(ctx, req)
	if err != nil {
		return "", err
	}

	answer, err := s.generate(ctx, passFinal, buildFinalPrompt(req.Query, trace))
	if err != nil {
		return "", err
	}

	s.logger.Info("answer synthesized",
		"reasoning_chars", len(trace.text),
		"answer_chars", len(answer),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return answer, nil
}

func (s *Synthesizer) reason(ctx context.Context, req Request) (ReasoningTrace, error) {
	text, err := s.generate(ctx, passReasoning, buildReasoningPrompt(req))
	if err != nil {
		return ReasoningTrace{}, err
	}
	return ReasoningTrace{text: text}, nil
}

func (s *Synthesizer) generate(ctx context.Context, pass, prompt string) (string, error) {
	if s.gen == nil {
		return "", &domain.GenerationError{Pass: pass, Err: errors.New("no generator configured")}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.gen.Generate(callCtx, prompt, s.opts)
	if err != nil {
		return "", &domain.GenerationError{Pass: pass, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &domain.GenerationError{Pass: pass, Err: llm.ErrEmptyResponse}
	}
	return text, nil
}
