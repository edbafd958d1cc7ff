// Package memory provides an agent specialized for long-term recall: it
// embeds content into the vector store on write and answers queries with
// similarity search over everything stored so far.
package memory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/neargravity/gravity/pkg/agent"
	"github.com/neargravity/gravity/pkg/embeddings"
	"github.com/neargravity/gravity/pkg/vector"
)

const defaultSearchLimit = 5

// Agent stores and recalls memories through the shared vector store.
type Agent struct {
	*agent.Runner

	store    *vector.Store
	embedder embeddings.Embedder
	logger   *zap.Logger
}

// NewAgent creates a memory agent and starts its worker pool.
func NewAgent(config agent.Config, store *vector.Store, embedder embeddings.Embedder, logger *zap.Logger) *Agent {
	a := &Agent{
		store:    store,
		embedder: embedder,
		logger:   logger,
	}
	a.Runner = agent.NewRunner(config, a, logger)
	return a
}

// StoreMemory embeds the content and adds it to the vector store, returning
// the stored message id.
func (a *Agent) StoreMemory(ctx context.Context, content string, metadata map[string]any) (string, error) {
	embedding, err := a.embedder.Embed(ctx, content)
	if err != nil {
		return "", fmt.Errorf("embedding memory: %w", err)
	}

	msg := vector.Message{
		Content:    content,
		ProviderID: a.Config().Name,
		Metadata:   metadata,
	}

	id, err := a.store.Add(ctx, msg, embedding, metadata)
	if err != nil {
		return "", fmt.Errorf("storing memory: %w", err)
	}

	a.logger.Debug("memory stored", zap.String("memory_id", id))
	return id, nil
}

// SearchMemories embeds the query and returns the most similar stored
// memories, best first. A non-positive limit uses the default.
func (a *Agent) SearchMemories(ctx context.Context, query string, limit int) ([]vector.Match, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	embedding, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	return a.store.Search(ctx, embedding, limit, vector.DefaultSearchThreshold, nil)
}

// Process stores the inbound message as a memory and returns the stored id
// together with the memories most relevant to it.
func (a *Agent) Process(ctx context.Context, msg *agent.Message) (any, error) {
	id, err := a.StoreMemory(ctx, msg.Content, msg.Metadata)
	if err != nil {
		return nil, err
	}

	matches, err := a.SearchMemories(ctx, msg.Content, defaultSearchLimit)
	if err != nil {
		return nil, err
	}

	// The message just stored always matches itself; drop it from the recall
	// set.
	related := make([]vector.Match, 0, len(matches))
	for _, m := range matches {
		if m.Message.ID == id {
			continue
		}
		related = append(related, m)
	}

	return map[string]any{
		"memory_id": id,
		"related":   related,
	}, nil
}
