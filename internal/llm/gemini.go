package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Gemini generates text with the Google Gen AI SDK.
type Gemini struct {
	client       *genai.Client
	defaultModel string
	logger       *slog.Logger
}

// NewGemini creates a Gemini generator. defaultModel is used when a call
// does not name a model.
func NewGemini(ctx context.Context, apiKey, defaultModel string, logger *slog.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Gemini{
		client:       client,
		defaultModel: defaultModel,
		logger:       logger,
	}, nil
}

// Generate runs a single, non-streaming content generation.
func (g *Gemini) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	model := opts.Model
	if model == "" {
		model = g.defaultModel
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), generationConfig(opts))
	if err != nil {
		return "", &ModelError{Model: model, Err: err}
	}

	text := strings.TrimSpace(resp.Text())
	g.logger.Debug("gemini generation completed",
		"model", model,
		"prompt_chars", len(prompt),
		"response_chars", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if text == "" {
		return "", &ModelError{Model: model, Err: ErrEmptyResponse}
	}
	return text, nil
}

func generationConfig(opts Options) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if opts.Temperature > 0 {
		cfg.Temperature = genai.Ptr(opts.Temperature)
	}
	if opts.TopP > 0 {
		cfg.TopP = genai.Ptr(opts.TopP)
	}
	if opts.TopK > 0 {
		cfg.TopK = genai.Ptr(opts.TopK)
	}
	if opts.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = opts.MaxOutputTokens
	}
	if opts.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}
