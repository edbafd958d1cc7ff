package rag

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/neargravity/gravity/pkg/agent"
	"github.com/neargravity/gravity/pkg/embeddings"
	"github.com/neargravity/gravity/pkg/embeddings/cache"
	"github.com/neargravity/gravity/pkg/ledger"
	"github.com/neargravity/gravity/pkg/llm"
	"github.com/neargravity/gravity/pkg/vector"
)

const (
	scoredInjectionLimit = 3

	scoreBase         = 0.5
	scoreTagWeight    = 0.2
	scoreBidCap       = 0.3
	scoreRecencyBonus = 0.1
	recencyWindow     = 24 * time.Hour
)

// Metrics is a snapshot of the enhanced agent's counters.
type Metrics struct {
	TotalRequests     uint64        `json:"total_requests"`
	CacheHits         uint64        `json:"cache_hits"`
	CacheMisses       uint64        `json:"cache_misses"`
	AvgProcessingTime time.Duration `json:"avg_processing_time"`
	AvgCompositeDelta float64       `json:"avg_composite_delta"`
}

// Enhanced is the production pipeline agent: the base pipeline plus an
// embedding cache, request metrics, batch processing, and bid-aware
// injection scoring. Pipeline semantics are unchanged.
type Enhanced struct {
	*agent.Runner

	pipeline *Processor
	cache    *cache.Embedder

	// Welford running means; one lock for all counters.
	metricsMu     sync.Mutex
	totalRequests uint64
	samples       uint64
	meanSeconds   float64
	meanComposite float64
	nowFunc       func() time.Time
}

// NewEnhanced wraps the embedder in a cache, builds the pipeline with
// bid-aware candidate selection, and starts the agent's worker pool.
func NewEnhanced(agentConfig agent.Config, pipelineConfig Config, cacheConfig cache.Config, embedder embeddings.Embedder, generator llm.Generator, store *vector.Store, audit ledger.Ledger, logger *zap.Logger) *Enhanced {
	e := &Enhanced{nowFunc: time.Now}
	e.cache = cache.NewEmbedder(embedder, cacheConfig, logger)

	if pipelineConfig.Selector == nil {
		pipelineConfig.Selector = e.selectInjections
	}
	e.pipeline = NewProcessor(pipelineConfig, e.cache, generator, store, audit, logger)

	e.Runner = agent.NewRunner(agentConfig, e, logger)
	return e
}

// Pipeline returns the underlying processor, e.g. for injection
// registration.
func (e *Enhanced) Pipeline() *Processor { return e.pipeline }

// Process runs the base pipeline and folds the outcome into the running
// metrics.
func (e *Enhanced) Process(ctx context.Context, msg *agent.Message) (any, error) {
	start := time.Now()
	result, err := e.pipeline.Process(ctx, msg)
	elapsed := time.Since(start)

	e.metricsMu.Lock()
	e.totalRequests++
	if err == nil {
		if r, ok := result.(*Result); ok {
			e.samples++
			n := float64(e.samples)
			e.meanSeconds += (elapsed.Seconds() - e.meanSeconds) / n
			e.meanComposite += (r.Delta.CompositeDelta - e.meanComposite) / n
		}
	}
	e.metricsMu.Unlock()

	return result, err
}

// Metrics returns a snapshot of the counters and running averages.
func (e *Enhanced) Metrics() Metrics {
	hits, misses := e.cache.Stats()

	e.metricsMu.Lock()
	defer e.metricsMu.Unlock()

	return Metrics{
		TotalRequests:     e.totalRequests,
		CacheHits:         hits,
		CacheMisses:       misses,
		AvgProcessingTime: time.Duration(e.meanSeconds * float64(time.Second)),
		AvgCompositeDelta: e.meanComposite,
	}
}

// ProcessBatch submits every message up front, then waits for each result in
// order with the given per-task timeout. A wait that times out leaves a nil
// slot; remaining waits continue and the underlying task keeps running.
func (e *Enhanced) ProcessBatch(msgs []*agent.Message, priority int, timeout time.Duration) ([]*Result, error) {
	waiters := make([]chan *agent.TaskResult, len(msgs))

	for i, msg := range msgs {
		ch := make(chan *agent.TaskResult, 1)
		waiters[i] = ch
		if _, err := e.Submit(msg, priority, func(r *agent.TaskResult) { ch <- r }); err != nil {
			return nil, err
		}
	}

	results := make([]*Result, len(msgs))
	for i, ch := range waiters {
		select {
		case taskResult := <-ch:
			if taskResult.Status == agent.StatusCompleted {
				if r, ok := taskResult.Result.(*Result); ok {
					results[i] = r
				}
			}
		case <-time.After(timeout):
		}
	}

	return results, nil
}

// selectInjections reranks candidates by provider bid, tag overlap, and
// recency when the message explicitly requests optimization; otherwise the
// similarity order stands.
func (e *Enhanced) selectInjections(msg *agent.Message, matches []vector.Match) []vector.Match {
	optimize, _ := msg.Metadata["optimize"].(bool)
	if !optimize || len(matches) == 0 {
		return matches
	}

	prefTags := stringsFrom(preferenceValue(msg.Metadata, "tags"))
	now := e.nowFunc()

	type scored struct {
		match vector.Match
		score float64
	}
	ranked := make([]scored, 0, len(matches))
	for _, m := range matches {
		ranked = append(ranked, scored{match: m, score: scoreInjection(m.Message.Metadata, prefTags, now)})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	limit := scoredInjectionLimit
	if len(ranked) < limit {
		limit = len(ranked)
	}

	out := make([]vector.Match, 0, limit)
	for _, s := range ranked[:limit] {
		out = append(out, s.match)
	}
	return out
}

// scoreInjection combines a flat base with tag overlap against the user's
// preferences, the provider's bid, and a recency bonus.
func scoreInjection(metadata map[string]any, prefTags []string, now time.Time) float64 {
	score := scoreBase

	if len(prefTags) > 0 {
		tags := stringsFrom(metadata["tags"])
		overlap := 0
		for _, pref := range prefTags {
			for _, tag := range tags {
				if pref == tag {
					overlap++
					break
				}
			}
		}
		score += scoreTagWeight * float64(overlap) / float64(len(prefTags))
	}

	if bid, ok := floatFrom(metadata["bid_amount"]); ok && bid > 0 {
		contribution := bid * 100
		if contribution > scoreBidCap {
			contribution = scoreBidCap
		}
		score += contribution
	}

	if created, ok := timeFrom(metadata["created_at"]); ok && now.Sub(created) < recencyWindow {
		score += scoreRecencyBonus
	}

	return score
}

func preferenceValue(metadata map[string]any, key string) any {
	prefs, ok := metadata["preferences"].(map[string]any)
	if !ok {
		return nil
	}
	return prefs[key]
}

func stringsFrom(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func floatFrom(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func timeFrom(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}
