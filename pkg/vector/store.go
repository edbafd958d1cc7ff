package vector

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neargravity/gravity/pkg/embeddings"
)

const (
	// DefaultSearchThreshold is the minimum similarity for a search match.
	DefaultSearchThreshold float32 = 0.6
)

// Store holds messages, their embeddings, and per-id metadata. A message id
// may exist without an embedding; such entries are excluded from search
// results without being deleted.
//
// One lock serializes all mutating operations and snapshot writes: on-disk
// snapshot consistency requires the three files to reflect a single state.
type Store struct {
	mu sync.RWMutex

	messages   map[string]Message
	embeddings map[string][]float32
	metadata   map[string]map[string]any

	index   Index
	persist *persister
	logger  *zap.Logger
}

// StoreConfig holds configuration for the store.
type StoreConfig struct {
	// PersistPath is the snapshot directory. Empty disables persistence.
	PersistPath string

	// Index is an optional approximate search backend. Nil selects the
	// linear in-memory scan.
	Index Index
}

// NewStore creates a store, loading any persisted snapshot. A missing
// snapshot yields an empty store; a corrupt snapshot is logged and skipped.
func NewStore(cfg StoreConfig, logger *zap.Logger) (*Store, error) {
	s := &Store{
		messages:   make(map[string]Message),
		embeddings: make(map[string][]float32),
		metadata:   make(map[string]map[string]any),
		index:      cfg.Index,
		logger:     logger,
	}

	if cfg.PersistPath != "" {
		s.persist = newPersister(cfg.PersistPath)
		if err := s.persist.load(s); err != nil {
			logger.Warn("snapshot load failed, starting with empty store", zap.Error(err))
			s.messages = make(map[string]Message)
			s.embeddings = make(map[string][]float32)
			s.metadata = make(map[string]map[string]any)
		}
	}

	if s.index != nil && len(s.embeddings) > 0 {
		if err := s.index.Rebuild(context.Background(), s.normalizedEmbeddings()); err != nil {
			logger.Warn("index rebuild from snapshot failed, falling back to linear search", zap.Error(err))
			s.index = nil
		}
	}

	logger.Info("vector store initialized",
		zap.Int("messages", len(s.messages)),
		zap.Bool("approximate_index", s.index != nil),
	)

	return s, nil
}

// Add stores a message with its embedding and metadata, returning the id.
// A message without an id is assigned a fresh one.
func (s *Store) Add(ctx context.Context, msg Message, embedding []float32, metadata map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	s.messages[msg.ID] = msg
	s.embeddings[msg.ID] = embedding
	if metadata == nil {
		metadata = make(map[string]any)
	}
	s.metadata[msg.ID] = metadata

	if s.index != nil {
		if err := s.index.Add(ctx, msg.ID, embeddings.Normalize(embedding)); err != nil {
			s.logger.Warn("index add failed", zap.String("id", msg.ID), zap.Error(err))
		}
	}

	s.saveLocked()
	return msg.ID, nil
}

// Get retrieves a message by id.
func (s *Store) Get(id string) (Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	return msg, nil
}

// Delete removes a message and its embedding. Returns false when the id is
// unknown. The approximate index is fully rebuilt afterwards.
func (s *Store) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[id]; !ok {
		return false
	}

	delete(s.messages, id)
	delete(s.embeddings, id)
	delete(s.metadata, id)

	s.rebuildIndexLocked(ctx)
	s.saveLocked()
	return true
}

// Update replaces any of a message's components. Nil arguments leave the
// corresponding component unchanged. An embedding update triggers a full
// index rebuild. Returns false when the id is unknown.
func (s *Store) Update(ctx context.Context, id string, msg *Message, embedding []float32, metadata map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[id]; !ok {
		return false
	}

	if msg != nil {
		s.messages[id] = *msg
	}
	if embedding != nil {
		s.embeddings[id] = embedding
		s.rebuildIndexLocked(ctx)
	}
	if metadata != nil {
		s.metadata[id] = metadata
	}

	s.saveLocked()
	return true
}

// Search returns up to topK messages whose similarity to queryEmbedding is
// at least threshold, best first. Filters support exact match on
// "provider_id", inclusion match on "tags" ([]string), and exact match on
// arbitrary message metadata keys.
func (s *Store) Search(ctx context.Context, queryEmbedding []float32, topK int, threshold float32, filters map[string]any) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.embeddings) == 0 {
		return nil, nil
	}

	var hits []IndexHit
	if s.index != nil {
		// Over-fetch so threshold and filter culling still fills topK.
		indexHits, err := s.index.Search(ctx, embeddings.Normalize(queryEmbedding), topK*2)
		if err != nil {
			s.logger.Warn("index search failed, falling back to linear scan", zap.Error(err))
			hits = s.linearScanLocked(queryEmbedding)
		} else {
			hits = indexHits
		}
	} else {
		hits = s.linearScanLocked(queryEmbedding)
	}

	results := make([]Match, 0, topK)
	for _, hit := range hits {
		if hit.Score < threshold {
			continue
		}

		msg, ok := s.messages[hit.ID]
		if !ok {
			continue
		}

		if filters != nil && !matchFilters(msg, filters) {
			continue
		}

		results = append(results, Match{Message: msg, Score: hit.Score})
		if len(results) == topK {
			break
		}
	}

	return results, nil
}

// All returns every stored message.
func (s *Store) All() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make([]Message, 0, len(s.messages))
	for _, msg := range s.messages {
		msgs = append(msgs, msg)
	}
	return msgs
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Stats describes the store contents.
type Stats struct {
	TotalMessages    int  `json:"total_messages"`
	TotalEmbeddings  int  `json:"total_embeddings"`
	Providers        int  `json:"providers"`
	ApproximateIndex bool `json:"approximate_index"`
}

// Statistics returns store statistics.
func (s *Store) Statistics() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	providers := make(map[string]struct{})
	for _, msg := range s.messages {
		providers[msg.ProviderID] = struct{}{}
	}

	return Stats{
		TotalMessages:    len(s.messages),
		TotalEmbeddings:  len(s.embeddings),
		Providers:        len(providers),
		ApproximateIndex: s.index != nil,
	}
}

// Close releases the approximate index, if any.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index != nil {
		return s.index.Close()
	}
	return nil
}

// linearScanLocked computes cosine similarity against every stored embedding
// and returns all hits sorted descending. Always correct, O(n).
func (s *Store) linearScanLocked(queryEmbedding []float32) []IndexHit {
	hits := make([]IndexHit, 0, len(s.embeddings))
	for id, emb := range s.embeddings {
		hits = append(hits, IndexHit{ID: id, Score: embeddings.Cosine(queryEmbedding, emb)})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits
}

func (s *Store) rebuildIndexLocked(ctx context.Context) {
	if s.index == nil {
		return
	}
	if err := s.index.Rebuild(ctx, s.normalizedEmbeddings()); err != nil {
		s.logger.Warn("index rebuild failed", zap.Error(err))
	}
}

func (s *Store) normalizedEmbeddings() map[string][]float32 {
	normalized := make(map[string][]float32, len(s.embeddings))
	for id, emb := range s.embeddings {
		normalized[id] = embeddings.Normalize(emb)
	}
	return normalized
}

func (s *Store) saveLocked() {
	if s.persist == nil {
		return
	}
	if err := s.persist.save(s); err != nil {
		s.logger.Warn("snapshot write failed", zap.Error(err))
	}
}

// matchFilters reports whether msg satisfies every filter entry.
func matchFilters(msg Message, filters map[string]any) bool {
	for key, want := range filters {
		switch key {
		case "provider_id":
			if msg.ProviderID != want {
				return false
			}
		case "tags":
			wantTags, ok := want.([]string)
			if !ok {
				return false
			}
			if !anyTagMatch(msg.Metadata, wantTags) {
				return false
			}
		default:
			got, ok := msg.Metadata[key]
			if !ok || got != want {
				return false
			}
		}
	}
	return true
}

func anyTagMatch(metadata map[string]any, wantTags []string) bool {
	raw, ok := metadata["tags"]
	if !ok {
		return false
	}

	var msgTags []string
	switch tags := raw.(type) {
	case []string:
		msgTags = tags
	case []any:
		for _, t := range tags {
			if str, ok := t.(string); ok {
				msgTags = append(msgTags, str)
			}
		}
	default:
		return false
	}

	for _, want := range wantTags {
		for _, got := range msgTags {
			if got == want {
				return true
			}
		}
	}
	return false
}
