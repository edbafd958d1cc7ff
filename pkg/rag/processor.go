package rag

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/neargravity/gravity/pkg/agent"
	"github.com/neargravity/gravity/pkg/embeddings"
	"github.com/neargravity/gravity/pkg/ledger"
	"github.com/neargravity/gravity/pkg/llm"
	"github.com/neargravity/gravity/pkg/vector"
)

const (
	// DefaultRetrievalThreshold is the minimum cosine similarity an
	// injection needs to be considered for combination.
	DefaultRetrievalThreshold = 0.6

	retrievalTopK = 5

	auditKeyPrefix = "gravity.generation"
)

var modalityPrompts = map[Modality]string{
	ModalityCode:       "You are an expert programmer. Produce clean, well-commented code.",
	ModalityStructured: "You are a data formatter. Emit well-formed structured data.",
	ModalityText:       "You are a helpful assistant.",
}

// SelectFunc reorders or narrows retrieval candidates before combination.
// It receives candidates already sorted by similarity, best first.
type SelectFunc func(msg *agent.Message, matches []vector.Match) []vector.Match

// Config holds pipeline settings.
type Config struct {
	// Model, Temperature, and MaxTokens parametrize generation calls.
	Model       string
	Temperature float64
	MaxTokens   int

	// RetrievalThreshold overrides DefaultRetrievalThreshold when positive.
	RetrievalThreshold float64

	// Selector, when set, filters retrieval candidates before the top one
	// is combined.
	Selector SelectFunc
}

// Processor runs the retrieval-augmented generation pipeline. It implements
// agent.Processor, so it can back any Runner's worker pool.
type Processor struct {
	config    Config
	embedder  embeddings.Embedder
	generator llm.Generator
	store     *vector.Store
	ledger    ledger.Ledger
	logger    *zap.Logger
}

// NewProcessor creates a pipeline processor. The ledger may be nil; audit
// submission is skipped without one.
func NewProcessor(config Config, embedder embeddings.Embedder, generator llm.Generator, store *vector.Store, audit ledger.Ledger, logger *zap.Logger) *Processor {
	if config.RetrievalThreshold <= 0 {
		config.RetrievalThreshold = DefaultRetrievalThreshold
	}

	return &Processor{
		config:    config,
		embedder:  embedder,
		generator: generator,
		store:     store,
		ledger:    audit,
		logger:    logger,
	}
}

var _ agent.Processor = (*Processor)(nil)

// AddInjection embeds content once and stores it. The vector store is the
// single authoritative copy; retrieval reads it directly.
func (p *Processor) AddInjection(ctx context.Context, content, providerID string, metadata map[string]any) (string, error) {
	embedding, err := p.embedder.Embed(ctx, content)
	if err != nil {
		return "", fmt.Errorf("embedding injection: %w", err)
	}

	msg := vector.Message{
		Content:    content,
		ProviderID: providerID,
		Metadata:   metadata,
	}

	id, err := p.store.Add(ctx, msg, embedding, metadata)
	if err != nil {
		return "", fmt.Errorf("storing injection: %w", err)
	}

	p.logger.Debug("injection registered",
		zap.String("injection_id", id),
		zap.String("provider_id", providerID),
	)
	return id, nil
}

// InjectionCount returns the number of stored injections.
func (p *Processor) InjectionCount() int { return p.store.Len() }

// Process executes the pipeline: embed, retrieve, combine, generate, verify,
// audit. A query matching no injection yields the no-match sentinel without
// a generation call.
func (p *Processor) Process(ctx context.Context, msg *agent.Message) (any, error) {
	start := time.Now()

	modality := modalityFrom(msg.Metadata)
	transformation := transformationFrom(msg.Metadata)

	queryEmbedding, err := p.embedder.Embed(ctx, msg.Content)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	threshold := float32(p.config.RetrievalThreshold)
	if override, ok := floatFrom(msg.Metadata["semantic_threshold"]); ok && override > 0 {
		threshold = float32(override)
	}

	candidates, err := p.store.Search(ctx, queryEmbedding, retrievalTopK, threshold, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieving injections: %w", err)
	}
	if p.config.Selector != nil {
		candidates = p.config.Selector(msg, candidates)
	}
	if limit, ok := floatFrom(msg.Metadata["max_injections"]); ok && int(limit) > 0 && int(limit) < len(candidates) {
		candidates = candidates[:int(limit)]
	}

	if len(candidates) == 0 {
		return &Result{
			Content:        NoMatchSentinel,
			Modality:       modality,
			ProcessingTime: time.Since(start),
			Delta: SemanticDelta{
				IsWithinBounds: true,
				Transformation: transformation,
			},
		}, nil
	}

	injection := candidates[0]

	strategy := chooseStrategy(msg.Content)
	if override, ok := msg.Metadata["combination"].(string); ok && override != "" {
		strategy = CombinationStrategy(override)
	}
	combined := combine(msg.Content, injection.Message.Content, strategy)

	generated, err := p.generate(ctx, modality, combined)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrGeneration, err)
	}

	delta, err := verifyIntegrity(ctx, p.embedder, msg.Content, generated, transformation)
	if err != nil {
		return nil, err
	}

	if delta.IsWithinBounds {
		p.submitAudit(ctx, msg, delta, injection.Message.ID)
	}

	return &Result{
		Content:        generated,
		Modality:       modality,
		ProcessingTime: time.Since(start),
		Delta:          delta,
		InjectionID:    injection.Message.ID,
		InjectionCount: 1,
	}, nil
}

func (p *Processor) generate(ctx context.Context, modality Modality, content string) (string, error) {
	prompt, ok := modalityPrompts[modality]
	if !ok {
		prompt = modalityPrompts[ModalityText]
	}

	return p.generator.Complete(ctx, &llm.ChatRequest{
		Model: p.config.Model,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: content},
		},
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
	})
}

// submitAudit records a within-bounds generation. Ledger failures are logged
// and never fail the task.
func (p *Processor) submitAudit(ctx context.Context, msg *agent.Message, delta SemanticDelta, injectionID string) {
	if p.ledger == nil {
		return
	}

	userID, _ := msg.Metadata["user_id"].(string)
	record := ledger.Record{
		KeyPrefix:  auditKeyPrefix,
		Identifier: msg.ID,
		Payload: map[string]any{
			"user_id":      userID,
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
			"delta":        delta,
			"injection_id": injectionID,
		},
	}

	if _, err := p.ledger.Submit(ctx, record); err != nil {
		p.logger.Warn("ledger submission failed",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}
}

func modalityFrom(metadata map[string]any) Modality {
	if raw, ok := metadata["modality"].(string); ok && raw != "" {
		return Modality(raw)
	}
	return ModalityText
}

func transformationFrom(metadata map[string]any) Transformation {
	if raw, ok := metadata["transformation_type"].(string); ok && raw != "" {
		return Transformation(raw)
	}
	return TransformationDefault
}
