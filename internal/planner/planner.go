// Package planner decides whether an utterance needs external research and,
// if so, decomposes it into focused sub-queries.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/healthchat/internal/domain"
	"github.com/ashureev/healthchat/internal/llm"
)

const (
	minSubQueries = 3
	maxSubQueries = 4
)

// DefaultOptions are the low-temperature sampling settings used for planning.
var DefaultOptions = llm.Options{
	Temperature:     0.3,
	TopP:            0.8,
	TopK:            20,
	MaxOutputTokens: 1024,
	JSON:            true,
}

var errMissingField = errors.New("missing required field")

// Planner classifies and decomposes utterances with a generation model.
type Planner struct {
	gen     llm.Generator
	opts    llm.Options
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a planner. model overrides DefaultOptions.Model when non-empty.
func New(gen llm.Generator, model string, timeout time.Duration, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	opts := DefaultOptions
	opts.Model = model
	return &Planner{gen: gen, opts: opts, timeout: timeout, logger: logger}
}

// Plan returns the decomposition for utterance. It never fails: any model or
// decode error yields domain.NoResearch().
func (p *Planner) Plan(ctx context.Context, utterance string) domain.DecompositionResult {
	result, err := p.plan(ctx, utterance)
	if err != nil {
		p.logger.Warn("query planning failed, skipping research", "error", err)
		return domain.NoResearch()
	}

	if result.NeedsResearch {
		n := len(result.SubQueries)
		if n < minSubQueries || n > maxSubQueries {
			p.logger.Warn("planner returned unexpected sub-query count",
				"count", n, "expected_min", minSubQueries, "expected_max", maxSubQueries)
		}
	}
	p.logger.Info("query planned",
		"needs_research", result.NeedsResearch,
		"sub_queries", len(result.SubQueries),
	)
	return result
}

func (p *Planner) plan(ctx context.Context, utterance string) (domain.DecompositionResult, error) {
	if p.gen == nil {
		return domain.DecompositionResult{}, &domain.PlanningError{Err: errors.New("no generator configured")}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raw, err := p.gen.Generate(callCtx, buildPrompt(utterance), p.opts)
	if err != nil {
		return domain.DecompositionResult{}, &domain.PlanningError{Err: err}
	}

	result, err := decode(raw)
	if err != nil {
		return domain.DecompositionResult{}, &domain.PlanningError{Err: err}
	}
	return result, nil
}

// wireResult mirrors the JSON contract; pointers distinguish absent fields.
type wireResult struct {
	NeedsResearch *bool     `json:"needs_research"`
	SubQueries    *[]string `json:"sub_queries"`
}

// decode strictly parses the model's JSON verdict. Unknown fields, trailing
// data and missing fields are rejected.
func decode(raw string) (domain.DecompositionResult, error) {
	body := stripCodeFence(raw)

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()

	var w wireResult
	if err := dec.Decode(&w); err != nil {
		return domain.DecompositionResult{}, fmt.Errorf("decode decomposition: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return domain.DecompositionResult{}, fmt.Errorf("decode decomposition: trailing data after object")
	}
	if w.NeedsResearch == nil {
		return domain.DecompositionResult{}, fmt.Errorf("decode decomposition: needs_research: %w", errMissingField)
	}

	if !*w.NeedsResearch {
		return domain.NoResearch(), nil
	}

	result := domain.DecompositionResult{NeedsResearch: true, SubQueries: []string{}}
	if w.SubQueries != nil {
		for _, q := range *w.SubQueries {
			if q = strings.TrimSpace(q); q != "" {
				result.SubQueries = append(result.SubQueries, q)
			}
		}
	}
	return result, nil
}

// stripCodeFence removes a single surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{[") {
		s = s[i+1:]
	} else if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
		// Single-line fence: ```json {...}```
		s = s[4:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
