package rag_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/neargravity/gravity/pkg/agent"
	"github.com/neargravity/gravity/pkg/llm"
	"github.com/neargravity/gravity/pkg/rag"
	testutils "github.com/neargravity/gravity/pkg/utils/test"
	"github.com/neargravity/gravity/pkg/vector"
)

const (
	coffeeQuery     = "I need morning motivation and energy"
	coffeeInjection = "Blue Bottle Coffee - artisanal pour-over for sustained energy"
)

var _ = Describe("Processor", func() {
	var (
		ctx      context.Context
		embedder *testutils.MockEmbedder
		gen      *testutils.MockGenerator
		audit    *testutils.MockLedger
		store    *vector.Store
		proc     *rag.Processor
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
		gen = testutils.NewMockGenerator("")
		audit = testutils.NewMockLedger()

		var err error
		store, err = vector.NewStore(vector.StoreConfig{}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		proc = rag.NewProcessor(rag.Config{Model: "test-model"}, embedder, gen, store, audit, zap.NewNop())
	})

	// seedCoffee stores one injection close to the coffee query and
	// configures the generator to echo the query back, which keeps the
	// integrity check clear of its bounds.
	seedCoffee := func() string {
		embedder.Embeddings[coffeeQuery] = []float32{0.9, 0.1, 0}
		embedder.Embeddings[coffeeInjection] = []float32{1, 0, 0}
		gen.Reply = coffeeQuery

		id, err := proc.AddInjection(ctx, coffeeInjection, "blue-bottle", map[string]any{"tags": []string{"coffee"}})
		Expect(err).NotTo(HaveOccurred())
		return id
	}

	asResult := func(raw any) *rag.Result {
		result, ok := raw.(*rag.Result)
		Expect(ok).To(BeTrue())
		return result
	}

	Describe("with no matching injection", func() {
		It("returns the no-match sentinel without calling the generator", func() {
			raw, err := proc.Process(ctx, agent.NewMessage("user", "anything at all"))
			Expect(err).NotTo(HaveOccurred())

			result := asResult(raw)
			Expect(result.Content).To(Equal(rag.NoMatchSentinel))
			Expect(result.Delta.IsWithinBounds).To(BeTrue())
			Expect(result.InjectionCount).To(BeZero())
			Expect(gen.RequestCount()).To(BeZero())
		})
	})

	Describe("with a matching injection", func() {
		It("combines, generates, verifies, and audits", func() {
			id := seedCoffee()

			msg := agent.NewMessage("user", coffeeQuery)
			msg.Metadata["user_id"] = "u-1"

			raw, err := proc.Process(ctx, msg)
			Expect(err).NotTo(HaveOccurred())

			result := asResult(raw)
			Expect(result.Content).To(Equal(coffeeQuery))
			Expect(result.InjectionID).To(Equal(id))
			Expect(result.InjectionCount).To(Equal(1))
			Expect(result.Delta.IsWithinBounds).To(BeTrue())
			Expect(result.Delta.CosineSimilarity).To(BeNumerically("~", 1.0, 1e-6))

			Expect(audit.SubmissionCount()).To(Equal(1))
			record := audit.Records[0]
			Expect(record.KeyPrefix).To(Equal("gravity.generation"))
			Expect(record.Identifier).To(Equal(msg.ID))
			Expect(record.Payload["user_id"]).To(Equal("u-1"))
			Expect(record.Payload["injection_id"]).To(Equal(id))
		})

		It("passes the combined message to the generator", func() {
			seedCoffee()

			_, err := proc.Process(ctx, agent.NewMessage("user", coffeeQuery))
			Expect(err).NotTo(HaveOccurred())

			Expect(gen.Requests).To(HaveLen(1))
			prompt := gen.Requests[0].Messages[1].Content
			Expect(prompt).To(ContainSubstring(coffeeQuery))
			Expect(prompt).To(ContainSubstring(coffeeInjection))
		})

		It("honors a combination strategy override", func() {
			seedCoffee()

			msg := agent.NewMessage("user", coffeeQuery)
			msg.Metadata["combination"] = "contextual"

			_, err := proc.Process(ctx, msg)
			Expect(err).NotTo(HaveOccurred())

			prompt := gen.Requests[0].Messages[1].Content
			Expect(prompt).To(ContainSubstring("Relevant context: " + coffeeInjection))
		})

		It("honors a per-request retrieval threshold", func() {
			seedCoffee()

			msg := agent.NewMessage("user", coffeeQuery)
			msg.Metadata["semantic_threshold"] = 0.999

			raw, err := proc.Process(ctx, msg)
			Expect(err).NotTo(HaveOccurred())
			Expect(asResult(raw).Content).To(Equal(rag.NoMatchSentinel))
			Expect(gen.RequestCount()).To(BeZero())
		})

		It("selects the modality prompt from metadata", func() {
			seedCoffee()

			msg := agent.NewMessage("user", coffeeQuery)
			msg.Metadata["modality"] = "code"

			raw, err := proc.Process(ctx, msg)
			Expect(err).NotTo(HaveOccurred())
			Expect(asResult(raw).Modality).To(Equal(rag.ModalityCode))
			Expect(gen.Requests[0].Messages[0].Content).To(ContainSubstring("programmer"))
		})
	})

	Describe("integrity verification", func() {
		It("skips the audit when the output drifts out of bounds", func() {
			seedCoffee()
			gen.Reply = "zzz"
			embedder.Embeddings["zzz"] = []float32{0, 0, 1}

			raw, err := proc.Process(ctx, agent.NewMessage("user", coffeeQuery))
			Expect(err).NotTo(HaveOccurred())

			result := asResult(raw)
			Expect(result.Delta.IsWithinBounds).To(BeFalse())
			Expect(audit.SubmissionCount()).To(BeZero())
		})

		It("applies the transformation's bounds", func() {
			seedCoffee()

			msg := agent.NewMessage("user", coffeeQuery)
			msg.Metadata["transformation_type"] = "summarization"

			raw, err := proc.Process(ctx, msg)
			Expect(err).NotTo(HaveOccurred())

			result := asResult(raw)
			Expect(result.Delta.Transformation).To(Equal(rag.TransformationSummarization))
			Expect(result.Delta.IsWithinBounds).To(BeTrue())
		})
	})

	Describe("failure handling", func() {
		It("wraps generation failures", func() {
			seedCoffee()
			gen.Err = llm.ErrGeneration

			_, err := proc.Process(ctx, agent.NewMessage("user", coffeeQuery))
			Expect(err).To(MatchError(llm.ErrGeneration))
		})

		It("treats ledger failures as non-fatal", func() {
			seedCoffee()
			audit.Fail = true

			raw, err := proc.Process(ctx, agent.NewMessage("user", coffeeQuery))
			Expect(err).NotTo(HaveOccurred())
			Expect(asResult(raw).Delta.IsWithinBounds).To(BeTrue())
		})

		It("propagates query embedding failures", func() {
			embedder.FailOn = "cursed input"

			_, err := proc.Process(ctx, agent.NewMessage("user", "cursed input"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("AddInjection", func() {
		It("stores content once and counts it", func() {
			Expect(proc.InjectionCount()).To(BeZero())

			id, err := proc.AddInjection(ctx, "an offer", "provider-1", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).NotTo(BeEmpty())
			Expect(proc.InjectionCount()).To(Equal(1))
			Expect(embedder.CallCount()).To(Equal(1))
		})
	})
})
