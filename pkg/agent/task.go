package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/neargravity/gravity/pkg/llm"
)

// TaskAgent is a general-purpose conversational agent: each task is answered
// by the configured generation model with the agent's system prompt and
// conversation history as context.
type TaskAgent struct {
	*Runner
	generator llm.Generator
}

// NewTaskAgent creates a task agent and starts its worker pool.
func NewTaskAgent(config Config, generator llm.Generator, logger *zap.Logger) *TaskAgent {
	a := &TaskAgent{generator: generator}
	a.Runner = NewRunner(config, a, logger)
	return a
}

// Process builds the chat request from the system prompt, prior history, and
// the inbound message, and records the assistant reply in history.
func (a *TaskAgent) Process(ctx context.Context, msg *Message) (any, error) {
	config := a.Config()

	messages := make([]llm.ChatMessage, 0, len(a.History())+2)
	if config.SystemPrompt != "" {
		messages = append(messages, llm.ChatMessage{Role: "system", Content: config.SystemPrompt})
	}
	for _, prior := range a.History() {
		if prior.ID == msg.ID {
			continue
		}
		messages = append(messages, llm.ChatMessage{Role: prior.Role, Content: prior.Content})
	}
	messages = append(messages, llm.ChatMessage{Role: msg.Role, Content: msg.Content})

	reply, err := a.generator.Complete(ctx, &llm.ChatRequest{
		Model:       config.Model,
		Messages:    messages,
		Temperature: config.Temperature,
		MaxTokens:   config.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("task generation: %w", err)
	}

	a.AddToHistory(NewMessage("assistant", reply))
	return reply, nil
}
