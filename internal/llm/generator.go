// Package llm defines the text-generation collaborator used by the planner
// and the synthesizer, plus a Gemini-backed implementation.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when a model produces no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Options tunes one generation call. Zero values leave the provider default.
type Options struct {
	Model           string
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int32
	// JSON asks the provider for an application/json response body.
	JSON bool
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, opts Options) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	return f(ctx, prompt, opts)
}

// ModelError wraps a provider failure with the model that produced it.
type ModelError struct {
	Model string
	Err   error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s: %v", e.Model, e.Err)
}

// Unwrap returns the underlying provider error.
func (e *ModelError) Unwrap() error { return e.Err }
