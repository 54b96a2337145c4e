package research

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const sonarSystemPrompt = `You are a medical research assistant. Search for and summarize recent, reliable research papers and medical data.
Focus on:
1. Scientific evidence and clinical studies
2. Potential health risks and safety concerns
3. Expert medical opinions
4. Recent research findings

Structure your answer as:
- Key findings
- Safety warnings
- Scientific consensus
- References to studies (if available)`

// ErrNoChoices is returned when the provider answers without a completion.
var ErrNoChoices = errors.New("research provider returned no choices")

// SonarConfig configures the Perplexity Sonar client.
type SonarConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Sonar searches Perplexity's OpenAI-compatible chat completions endpoint.
type Sonar struct {
	client openai.Client
	model  string
}

// NewSonar creates a Sonar searcher. The client never retries: a failed
// lookup is reported once and degraded by the fan-out.
func NewSonar(cfg SonarConfig) (*Sonar, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("sonar: api key required")
	}
	if cfg.Model == "" {
		return nil, errors.New("sonar: model required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Sonar{client: openai.NewClient(opts...), model: cfg.Model}, nil
}

// Search asks the provider to summarize research on query.
func (s *Sonar) Search(ctx context.Context, query string) (string, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(sonarSystemPrompt),
			openai.UserMessage("Search for recent scientific research about: " + query),
		},
		Temperature: openai.Float(0.3),
		MaxTokens:   openai.Int(1024),
	})
	if err != nil {
		return "", fmt.Errorf("sonar search: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}
