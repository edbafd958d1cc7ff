// Package cache provides a TTL-bound, capacity-bounded caching decorator
// for an embeddings.Embedder.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/neargravity/gravity/pkg/embeddings"
)

const (
	// DefaultTTL is how long a cached embedding stays valid.
	DefaultTTL = time.Hour

	// DefaultMaxEntries is the cache capacity. When an insertion pushes the
	// cache past this size the single oldest entry is evicted. This is a
	// bounded cache, not LRU: reads do not refresh insertion time.
	DefaultMaxEntries = 1000
)

type entry struct {
	vector     []float32
	insertedAt time.Time
}

// Embedder decorates an inner Embedder with an embedding cache keyed by
// content hash.
type Embedder struct {
	inner      embeddings.Embedder
	ttl        time.Duration
	maxEntries int
	logger     *zap.Logger

	mu      sync.Mutex
	entries map[string]entry

	hits   uint64
	misses uint64

	// now is swappable for tests.
	now func() time.Time
}

// Config holds configuration for the caching embedder.
type Config struct {
	// TTL is the maximum age of a cache entry before it is treated as a miss.
	// Defaults to DefaultTTL if zero.
	TTL time.Duration

	// MaxEntries is the cache capacity. Defaults to DefaultMaxEntries if zero.
	MaxEntries int
}

// NewEmbedder wraps inner with a caching layer.
func NewEmbedder(inner embeddings.Embedder, cfg Config, logger *zap.Logger) *Embedder {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}

	maxEntries := cfg.MaxEntries
	if maxEntries == 0 {
		maxEntries = DefaultMaxEntries
	}

	return &Embedder{
		inner:      inner,
		ttl:        ttl,
		maxEntries: maxEntries,
		logger:     logger,
		entries:    make(map[string]entry),
		now:        time.Now,
	}
}

// Embed returns the cached vector for text when present and younger than the
// TTL; otherwise it calls the inner embedder and caches the result.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := contentKey(text)

	e.mu.Lock()
	if cached, ok := e.entries[key]; ok && e.now().Sub(cached.insertedAt) < e.ttl {
		e.hits++
		e.mu.Unlock()
		return cached.vector, nil
	}
	e.misses++
	e.mu.Unlock()

	vector, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.entries[key] = entry{vector: vector, insertedAt: e.now()}
	if len(e.entries) > e.maxEntries {
		e.evictOldestLocked()
	}
	e.mu.Unlock()

	return vector, nil
}

// EmbedBatch embeds each text through the cache.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vector
	}
	return vectors, nil
}

// Stats returns the running hit and miss counters.
func (e *Embedder) Stats() (hits, misses uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hits, e.misses
}

// Len returns the number of cached entries.
func (e *Embedder) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

// Close releases the inner embedder.
func (e *Embedder) Close() error {
	return e.inner.Close()
}

// SetNowFunc overrides the clock. Tests use this to age entries past the TTL.
func (e *Embedder) SetNowFunc(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

func (e *Embedder) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for key, ent := range e.entries {
		if oldestKey == "" || ent.insertedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = ent.insertedAt
		}
	}
	if oldestKey != "" {
		delete(e.entries, oldestKey)
		if e.logger != nil {
			e.logger.Debug("evicted oldest cache entry", zap.Time("inserted_at", oldestAt))
		}
	}
}

func contentKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Ensure Embedder implements embeddings.Embedder
var _ embeddings.Embedder = (*Embedder)(nil)
