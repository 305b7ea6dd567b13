// Package perception talks to the language and speech models: LaTeX and
// scene generation, intent extraction, page summaries, audio transcription.
package perception

import (
	"context"
	"errors"
	"time"
)

// LLMClient defines the interface for LLM providers.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ErrNoAPIKey is returned by clients constructed without credentials.
var ErrNoAPIKey = errors.New("API key not configured")

const (
	defaultTimeout   = 120 * time.Second
	defaultMaxTokens = 8192

	// minRequestGap spaces consecutive requests from one client.
	minRequestGap = 100 * time.Millisecond
)

// LLMFunc adapts a function to LLMClient. Complete passes an empty system prompt.
type LLMFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

func (f LLMFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, "", prompt)
}

func (f LLMFunc) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f(ctx, systemPrompt, userPrompt)
}

// withDefaultTimeout applies timeout when ctx carries no deadline.
func withDefaultTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
