package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/neargravity/gravity/pkg/llm"
)

// MockGenerator is a test generator returning a configurable reply.
type MockGenerator struct {
	mu sync.Mutex

	// Reply is returned from Complete. When Echo is set, the last user
	// message content is returned instead.
	Reply string
	Echo  bool

	// Delay stalls each Complete call, simulating a slow provider.
	Delay time.Duration

	// Err, when set, is returned from every Complete call.
	Err error

	// Requests accumulates every request passed to Complete.
	Requests []*llm.ChatRequest
}

func NewMockGenerator(reply string) *MockGenerator {
	return &MockGenerator{Reply: reply}
}

func (m *MockGenerator) Complete(ctx context.Context, req *llm.ChatRequest) (string, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	delay := m.Delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if m.Err != nil {
		return "", m.Err
	}

	if m.Echo {
		for i := len(req.Messages) - 1; i >= 0; i-- {
			if req.Messages[i].Role == "user" {
				return req.Messages[i].Content, nil
			}
		}
	}
	return m.Reply, nil
}

func (m *MockGenerator) Close() error {
	return nil
}

// RequestCount returns the number of Complete invocations so far.
func (m *MockGenerator) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
