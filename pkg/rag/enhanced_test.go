package rag_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/neargravity/gravity/pkg/agent"
	"github.com/neargravity/gravity/pkg/embeddings/cache"
	"github.com/neargravity/gravity/pkg/rag"
	testutils "github.com/neargravity/gravity/pkg/utils/test"
	"github.com/neargravity/gravity/pkg/vector"
)

var _ = Describe("Enhanced", func() {
	var (
		ctx      context.Context
		embedder *testutils.MockEmbedder
		gen      *testutils.MockGenerator
		audit    *testutils.MockLedger
		store    *vector.Store
		e        *rag.Enhanced
	)

	newEnhanced := func() *rag.Enhanced {
		return rag.NewEnhanced(
			agent.Config{Name: "pipeline", PoolSize: 1},
			rag.Config{Model: "test-model"},
			cache.Config{},
			embedder, gen, store, audit,
			zap.NewNop(),
		)
	}

	process := func(msg *agent.Message) *rag.Result {
		done := make(chan *agent.TaskResult, 1)
		_, err := e.Submit(msg, 0, func(res *agent.TaskResult) { done <- res })
		Expect(err).NotTo(HaveOccurred())

		var taskResult *agent.TaskResult
		Eventually(done, 2*time.Second).Should(Receive(&taskResult))
		Expect(taskResult.Status).To(Equal(agent.StatusCompleted))

		result, ok := taskResult.Result.(*rag.Result)
		Expect(ok).To(BeTrue())
		return result
	}

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
		gen = testutils.NewMockGenerator("")
		audit = testutils.NewMockLedger()

		var err error
		store, err = vector.NewStore(vector.StoreConfig{}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if e != nil {
			e.Shutdown(false)
			e = nil
		}
	})

	Describe("metrics", func() {
		It("counts requests and cache traffic", func() {
			e = newEnhanced()

			result := process(agent.NewMessage("user", "same question"))
			Expect(result.Content).To(Equal(rag.NoMatchSentinel))

			// The repeated query hits the embedding cache.
			process(agent.NewMessage("user", "same question"))

			metrics := e.Metrics()
			Expect(metrics.TotalRequests).To(Equal(uint64(2)))
			Expect(metrics.CacheHits).To(Equal(uint64(1)))
			Expect(metrics.CacheMisses).To(Equal(uint64(1)))
		})
	})

	Describe("ProcessBatch", func() {
		It("returns results in submission order", func() {
			e = newEnhanced()

			msgs := []*agent.Message{
				agent.NewMessage("user", "first"),
				agent.NewMessage("user", "second"),
				agent.NewMessage("user", "third"),
			}

			results, err := e.ProcessBatch(msgs, 0, 5*time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			for _, r := range results {
				Expect(r).NotTo(BeNil())
				Expect(r.Content).To(Equal(rag.NoMatchSentinel))
			}
		})

		It("leaves nil slots for tasks that miss the timeout", func() {
			embedder.Embeddings["slow query"] = []float32{1, 0, 0}
			gen.Reply = "slow query"
			gen.Delay = 500 * time.Millisecond

			e = newEnhanced()
			_, err := e.Pipeline().AddInjection(ctx, "slow query", "p1", nil)
			Expect(err).NotTo(HaveOccurred())

			results, err := e.ProcessBatch([]*agent.Message{agent.NewMessage("user", "slow query")}, 0, 50*time.Millisecond)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0]).To(BeNil())
		})
	})

	Describe("bid-aware injection selection", func() {
		seed := func() (organicID, sponsoredID string) {
			embedder.Embeddings["coffee advice please"] = []float32{1, 0, 0}
			embedder.Embeddings["organic offer"] = []float32{0.999, 0.01, 0}
			embedder.Embeddings["sponsored offer"] = []float32{0.99, 0.05, 0}
			gen.Reply = "coffee advice please"

			var err error
			organicID, err = e.Pipeline().AddInjection(ctx, "organic offer", "p1", nil)
			Expect(err).NotTo(HaveOccurred())

			sponsoredID, err = e.Pipeline().AddInjection(ctx, "sponsored offer", "p2", map[string]any{"bid_amount": 0.05})
			Expect(err).NotTo(HaveOccurred())
			return organicID, sponsoredID
		}

		It("keeps similarity order without the optimize flag", func() {
			e = newEnhanced()
			organicID, _ := seed()

			result := process(agent.NewMessage("user", "coffee advice please"))
			Expect(result.InjectionID).To(Equal(organicID))
		})

		It("prefers the higher-scored injection when optimization is requested", func() {
			e = newEnhanced()
			_, sponsoredID := seed()

			msg := agent.NewMessage("user", "coffee advice please")
			msg.Metadata["optimize"] = true

			result := process(msg)
			Expect(result.InjectionID).To(Equal(sponsoredID))
		})
	})
})
