package rag

import (
	"context"
	"fmt"

	"github.com/neargravity/gravity/pkg/embeddings"
)

// bounds holds the per-transformation minimums a rewrite must clear. Both
// metrics must clear independently; the composite is informational.
type bounds struct {
	cosine     float64
	mutualInfo float64
}

var transformationBounds = map[Transformation]bounds{
	TransformationDefault:       {cosine: 0.70, mutualInfo: 0.65},
	TransformationSummarization: {cosine: 0.90, mutualInfo: 0.85},
	TransformationTranslation:   {cosine: 0.92, mutualInfo: 0.90},
	TransformationCreative:      {cosine: 0.75, mutualInfo: 0.70},
}

const (
	cosineWeight     = 0.7
	mutualInfoWeight = 0.3
)

// verifyIntegrity measures how far generated output drifted from the
// original text. Cosine similarity comes from the embedder; the
// mutual-information proxy is the ratio of shared distinct characters.
func verifyIntegrity(ctx context.Context, embedder embeddings.Embedder, original, generated string, t Transformation) (SemanticDelta, error) {
	vectors, err := embedder.EmbedBatch(ctx, []string{original, generated})
	if err != nil {
		return SemanticDelta{}, fmt.Errorf("embedding for verification: %w", err)
	}
	if len(vectors) != 2 {
		return SemanticDelta{}, fmt.Errorf("%w: expected 2 vectors, got %d", embeddings.ErrEmbedding, len(vectors))
	}

	cosine := float64(embeddings.Cosine(vectors[0], vectors[1]))
	proxy := charOverlap(original, generated)

	b, ok := transformationBounds[t]
	if !ok {
		t = TransformationDefault
		b = transformationBounds[TransformationDefault]
	}

	return SemanticDelta{
		CosineSimilarity:  cosine,
		MutualInformation: proxy,
		CompositeDelta:    cosineWeight*cosine + mutualInfoWeight*proxy,
		IsWithinBounds:    cosine >= b.cosine && proxy >= b.mutualInfo,
		Transformation:    t,
	}, nil
}

// charOverlap is the shared-distinct-character ratio
// |charset(a) ∩ charset(b)| / max(|charset(a)|, |charset(b)|).
// Identical texts score 1.0.
func charOverlap(a, b string) float64 {
	setA := charset(a)
	setB := charset(b)

	larger := len(setA)
	if len(setB) > larger {
		larger = len(setB)
	}
	if larger == 0 {
		return 1.0
	}

	shared := 0
	for r := range setA {
		if _, ok := setB[r]; ok {
			shared++
		}
	}
	return float64(shared) / float64(larger)
}

func charset(s string) map[rune]struct{} {
	set := make(map[rune]struct{}, len(s))
	for _, r := range s {
		set[r] = struct{}{}
	}
	return set
}
