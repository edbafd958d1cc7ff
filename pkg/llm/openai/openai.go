// Package openai implements pkg/llm's Generator against OpenAI-compatible
// chat completion APIs, including local servers that speak the same format.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/neargravity/gravity/pkg/llm"
)

const (
	// DefaultBaseURL is the default API base URL.
	DefaultBaseURL = "https://api.openai.com/v1"
)

// Generator wraps an OpenAI-compatible chat completions API.
type Generator struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// GeneratorConfig holds configuration for the generator.
type GeneratorConfig struct {
	// BaseURL is the API base URL (e.g., "http://127.0.0.1:1234/v1" for a
	// local OpenAI-compatible server). Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey authorizes requests. Local servers usually accept any value.
	APIKey string

	// Timeout bounds a single completion call. Defaults to 120s if zero.
	Timeout time.Duration
}

type chatCompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []llm.ChatMessage `json:"messages"`
	Temperature float64           `json:"temperature,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewGenerator creates a generator for an OpenAI-compatible API.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Generator{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Complete generates a completion and returns the assistant text.
func (g *Generator) Complete(ctx context.Context, chatReq *llm.ChatRequest) (string, error) {
	reqBody := chatCompletionRequest{
		Model:       chatReq.Model,
		Messages:    chatReq.Messages,
		Temperature: chatReq.Temperature,
		MaxTokens:   chatReq.MaxTokens,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: marshaling request: %v", llm.ErrGeneration, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %v", llm.ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: sending request: %v", llm.ErrGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: upstream returned status %d: %s", llm.ErrGeneration, resp.StatusCode, string(body))
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", llm.ErrGeneration, err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", llm.ErrGeneration)
	}

	return completion.Choices[0].Message.Content, nil
}

// Close releases resources held by the generator.
func (g *Generator) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

// Ensure Generator implements llm.Generator
var _ llm.Generator = (*Generator)(nil)
