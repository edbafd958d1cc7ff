// Package agent provides the concurrent task-processing core: priority
// task queues, per-agent worker pools, a routing manager, and result
// correlation.
package agent

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an agent.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusError      Status = "error"
	StatusCompleted  Status = "completed"
	StatusTerminated Status = "terminated"
)

// Config describes an agent. Immutable after construction.
type Config struct {
	// Name identifies the agent in logs and worker naming.
	Name string

	// Model is the generation model identifier the agent uses.
	Model string

	// Temperature is the generation temperature.
	Temperature float64

	// MaxTokens bounds generation output. Zero means provider default.
	MaxTokens int

	// SystemPrompt is prepended to generation requests when set.
	SystemPrompt string

	// PoolSize is the number of concurrent workers. Defaults to 5.
	PoolSize int

	// Metadata carries free-form attributes, e.g. a "capabilities" tag
	// list consulted by capability routing.
	Metadata map[string]any
}

// Message is a single conversation exchange.
type Message struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Role      string         `json:"role"` // "user", "assistant", "system"
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewMessage creates a message with a fresh id and timestamp.
func NewMessage(role, content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Content:   content,
		Role:      role,
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]any),
	}
}

// Callback is invoked by a worker once a task's result is available.
type Callback func(*TaskResult)

// TaskRequest is a unit of work. Created on submission, consumed exactly
// once by a worker, never mutated after creation.
type TaskRequest struct {
	ID       string
	Message  *Message
	Priority int
	Callback Callback
	Timeout  time.Duration
	Metadata map[string]any

	// seq is the monotonic submission sequence, the explicit tiebreak for
	// equal priorities: earlier submissions dequeue first.
	seq uint64
}

// TaskResult is the outcome of one task. Immutable once produced.
type TaskResult struct {
	TaskID         string         `json:"task_id"`
	AgentID        string         `json:"agent_id"`
	Status         Status         `json:"status"` // StatusCompleted or StatusError
	Result         any            `json:"result,omitempty"`
	Error          string         `json:"error,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	CompletedAt    time.Time      `json:"completed_at"`
	ProcessingTime time.Duration  `json:"processing_time"`
}
