// Package vector provides a durable, queryable collection of content
// entries with embeddings, supporting linear and approximate-index search.
package vector

import "context"

// Message is a stored content item. ProviderID identifies who submitted it;
// Metadata carries free-form attributes (tags, bid amounts, categories).
type Message struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	ProviderID string         `json:"provider_id"`
	Metadata   map[string]any `json:"metadata"`
}

// Match is a search result with its similarity score.
type Match struct {
	Message Message
	Score   float32
}

// Index is an optional approximate search backend. Implementations score by
// inner product over normalized vectors, which is equivalent to cosine
// similarity. Indexes do not support incremental removal: the store rebuilds
// the whole index after any delete or embedding update.
type Index interface {
	// Add inserts or replaces a single vector.
	Add(ctx context.Context, id string, embedding []float32) error

	// Search returns up to k (id, score) pairs, best first.
	Search(ctx context.Context, embedding []float32, k int) ([]IndexHit, error)

	// Rebuild replaces the index contents with the given vectors.
	Rebuild(ctx context.Context, embeddings map[string][]float32) error

	// Close releases any resources held by the index.
	Close() error
}

// IndexHit is a raw index search hit.
type IndexHit struct {
	ID    string
	Score float32
}
