package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient generates notes with the Gemini API.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a Gemini-backed Client.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

// Complete sends the system instruction and user prompt in one request.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	systemContent := &genai.Content{
		Parts: []*genai.Part{
			{Text: req.System},
		},
		Role: "system",
	}

	userContent := &genai.Content{
		Parts: []*genai.Part{
			{Text: req.User},
		},
		Role: "user",
	}

	temperature := float32(req.Temperature)
	resp, err := c.client.Models.GenerateContent(ctx, req.Model, []*genai.Content{userContent}, &genai.GenerateContentConfig{
		SystemInstruction: systemContent,
		Temperature:       &temperature,
		MaxOutputTokens:   int32(req.MaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("llm: gemini API call failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
