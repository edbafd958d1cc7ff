// Package rag implements retrieval-augmented generation: user messages are
// enriched with the most similar stored injection, generated against a
// modality-specific prompt, and checked for semantic integrity before the
// result is released.
package rag

import "time"

// NoMatchSentinel is emitted when no injection clears the retrieval
// threshold. It is a deliberate no-match outcome, not an error.
const NoMatchSentinel = "no vibe found"

// Modality selects the output shape the generator is prompted for.
type Modality string

const (
	ModalityText       Modality = "text"
	ModalityCode       Modality = "code"
	ModalityStructured Modality = "structured"
)

// Transformation identifies the kind of rewrite being verified. Each kind
// has its own integrity thresholds.
type Transformation string

const (
	TransformationDefault       Transformation = "default"
	TransformationSummarization Transformation = "summarization"
	TransformationTranslation   Transformation = "translation"
	TransformationCreative      Transformation = "creative"
)

// SemanticDelta summarizes how far generated output drifted from the
// original message.
type SemanticDelta struct {
	CosineSimilarity  float64        `json:"cosine_similarity"`
	MutualInformation float64        `json:"mutual_information"`
	CompositeDelta    float64        `json:"composite_delta"`
	IsWithinBounds    bool           `json:"is_within_bounds"`
	Transformation    Transformation `json:"transformation"`
}

// Result is the outcome of one pipeline run.
type Result struct {
	Content        string        `json:"content"`
	Modality       Modality      `json:"modality"`
	ProcessingTime time.Duration `json:"processing_time"`
	Delta          SemanticDelta `json:"semantic_delta"`
	InjectionID    string        `json:"injection_id,omitempty"`
	InjectionCount int           `json:"injection_count"`
}
