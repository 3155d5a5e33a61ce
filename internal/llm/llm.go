// Package llm provides chat-completion backends used for note generation.
//
// Supported providers:
//   - openai: any OpenAI-compatible /chat/completions endpoint (default)
//   - gemini: Google Gemini via google.golang.org/genai
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lecnote/internal/config"
)

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Request is a single system + user exchange.
type Request struct {
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Client sends one chat completion and returns the assistant text.
// Implementations do not retry; retry policy belongs to the caller.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// New creates a Client based on the configured provider.
func New(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		return NewOpenAIClient(cfg.BaseURL, cfg.APIKey, timeout), nil
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg.APIKey)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q (supported: openai, gemini)", cfg.Provider)
	}
}
