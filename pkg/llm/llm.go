// Package llm provides the chat generation interface and provider-agnostic
// request types used by agents.
package llm

import "context"

// ChatMessage is a single message in a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest is a provider-agnostic chat completion request.
type ChatRequest struct {
	// Model name (e.g., "gpt-4", "llama3", "deepseek-r1")
	Model string `json:"model"`

	// Conversation messages
	Messages []ChatMessage `json:"messages"`

	// Generation parameters
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Generator produces text completions. Implementations must be safe for
// concurrent use; agent worker pools share one Generator across workers.
type Generator interface {
	// Complete generates a completion for the request and returns the
	// assistant text. Failures wrap ErrGeneration.
	Complete(ctx context.Context, req *ChatRequest) (string, error)

	// Close releases any resources held by the generator.
	Close() error
}
