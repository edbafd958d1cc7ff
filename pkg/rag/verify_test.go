package rag

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	testutils "github.com/neargravity/gravity/pkg/utils/test"
)

var _ = Describe("verifyIntegrity", func() {
	var (
		ctx      context.Context
		embedder *testutils.MockEmbedder
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
	})

	It("scores identical text as a perfect match for every transformation", func() {
		for _, t := range []Transformation{
			TransformationDefault,
			TransformationSummarization,
			TransformationTranslation,
			TransformationCreative,
		} {
			delta, err := verifyIntegrity(ctx, embedder, "same text", "same text", t)
			Expect(err).NotTo(HaveOccurred())
			Expect(delta.CosineSimilarity).To(BeNumerically("~", 1.0, 1e-6))
			Expect(delta.MutualInformation).To(BeNumerically("~", 1.0, 1e-6))
			Expect(delta.IsWithinBounds).To(BeTrue(), string(t))
			Expect(delta.Transformation).To(Equal(t))
		}
	})

	It("rejects output that drifted too far", func() {
		embedder.Embeddings["original request"] = []float32{1, 0, 0}
		embedder.Embeddings["zzz"] = []float32{0, 1, 0}

		delta, err := verifyIntegrity(ctx, embedder, "original request", "zzz", TransformationDefault)
		Expect(err).NotTo(HaveOccurred())
		Expect(delta.IsWithinBounds).To(BeFalse())
		Expect(delta.CosineSimilarity).To(BeNumerically("~", 0.0, 1e-6))
	})

	It("requires both metrics to clear their bounds", func() {
		// Same embedding, disjoint character sets: cosine passes, the
		// mutual-information proxy fails.
		embedder.Embeddings["abc"] = []float32{1, 0, 0}
		embedder.Embeddings["xyz"] = []float32{1, 0, 0}

		delta, err := verifyIntegrity(ctx, embedder, "abc", "xyz", TransformationDefault)
		Expect(err).NotTo(HaveOccurred())
		Expect(delta.CosineSimilarity).To(BeNumerically("~", 1.0, 1e-6))
		Expect(delta.MutualInformation).To(BeZero())
		Expect(delta.IsWithinBounds).To(BeFalse())
	})

	It("weights the composite toward cosine similarity", func() {
		delta, err := verifyIntegrity(ctx, embedder, "same", "same", TransformationDefault)
		Expect(err).NotTo(HaveOccurred())
		Expect(delta.CompositeDelta).To(BeNumerically("~", 1.0, 1e-6))
	})

	It("falls back to default bounds for unknown transformations", func() {
		delta, err := verifyIntegrity(ctx, embedder, "same", "same", Transformation("mystery"))
		Expect(err).NotTo(HaveOccurred())
		Expect(delta.Transformation).To(Equal(TransformationDefault))
		Expect(delta.IsWithinBounds).To(BeTrue())
	})

	It("propagates embedding failures", func() {
		embedder.FailOn = "broken"
		_, err := verifyIntegrity(ctx, embedder, "broken", "fine", TransformationDefault)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("charOverlap", func() {
	It("returns 1 for two empty strings", func() {
		Expect(charOverlap("", "")).To(Equal(1.0))
	})

	It("returns the shared distinct character ratio", func() {
		// charset(a) = {a,b,c}, charset(b) = {b,c,d}: 2 shared of 3.
		Expect(charOverlap("abc", "bcd")).To(BeNumerically("~", 2.0/3.0, 1e-9))
	})
})
