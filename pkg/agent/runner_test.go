package agent_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/neargravity/gravity/pkg/agent"
)

// recordingProcessor records the order tasks are processed in and can block
// or fail on demand.
type recordingProcessor struct {
	mu    sync.Mutex
	order []string

	// gate, when non-nil, blocks Process until closed.
	gate chan struct{}

	// failOn returns an error for matching message content.
	failOn string

	// panicOn panics for matching message content.
	panicOn string
}

func (p *recordingProcessor) Process(_ context.Context, msg *agent.Message) (any, error) {
	if p.gate != nil {
		<-p.gate
	}

	p.mu.Lock()
	p.order = append(p.order, msg.Content)
	p.mu.Unlock()

	if p.panicOn != "" && msg.Content == p.panicOn {
		panic("processor exploded")
	}
	if p.failOn != "" && msg.Content == p.failOn {
		return nil, errors.New("simulated failure")
	}
	return "processed: " + msg.Content, nil
}

func (p *recordingProcessor) processed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

var _ = Describe("Runner", func() {
	var logger *zap.Logger

	BeforeEach(func() {
		logger = zap.NewNop()
	})

	Describe("Submit", func() {
		It("returns a task id immediately even when all workers are busy", func() {
			proc := &recordingProcessor{gate: make(chan struct{})}
			r := agent.NewRunner(agent.Config{Name: "busy", PoolSize: 1}, proc, logger)
			defer r.Shutdown(false)

			// Occupy the single worker.
			_, err := r.Submit(agent.NewMessage("user", "blocker"), 0, nil)
			Expect(err).NotTo(HaveOccurred())

			start := time.Now()
			id, err := r.Submit(agent.NewMessage("user", "queued"), 0, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).NotTo(BeEmpty())
			Expect(time.Since(start)).To(BeNumerically("<", 100*time.Millisecond))

			close(proc.gate)
		})

		It("fails after shutdown", func() {
			r := agent.NewRunner(agent.Config{Name: "done"}, &recordingProcessor{}, logger)
			r.Shutdown(true)

			_, err := r.Submit(agent.NewMessage("user", "late"), 0, nil)
			Expect(err).To(MatchError(agent.ErrShutdown))
		})
	})

	Describe("priority ordering", func() {
		It("processes higher priorities first", func() {
			gate := make(chan struct{})
			proc := &recordingProcessor{gate: gate}
			r := agent.NewRunner(agent.Config{Name: "prio", PoolSize: 1}, proc, logger)
			defer r.Shutdown(false)

			// First submission occupies the worker so the rest queue up.
			_, err := r.Submit(agent.NewMessage("user", "first"), 0, nil)
			Expect(err).NotTo(HaveOccurred())

			// Wait until the worker has dequeued the blocker.
			Eventually(r.QueueDepth, time.Second, 10*time.Millisecond).Should(Equal(0))

			_, err = r.Submit(agent.NewMessage("user", "low"), 1, nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = r.Submit(agent.NewMessage("user", "high"), 10, nil)
			Expect(err).NotTo(HaveOccurred())

			close(gate)

			Eventually(proc.processed, 2*time.Second, 10*time.Millisecond).Should(HaveLen(3))
			Expect(proc.processed()).To(Equal([]string{"first", "high", "low"}))
		})

		It("preserves submission order across equal priorities", func() {
			gate := make(chan struct{})
			proc := &recordingProcessor{gate: gate}
			r := agent.NewRunner(agent.Config{Name: "fifo", PoolSize: 1}, proc, logger)
			defer r.Shutdown(false)

			_, err := r.Submit(agent.NewMessage("user", "blocker"), 0, nil)
			Expect(err).NotTo(HaveOccurred())
			Eventually(r.QueueDepth, time.Second, 10*time.Millisecond).Should(Equal(0))

			for _, content := range []string{"a", "b", "c"} {
				_, err := r.Submit(agent.NewMessage("user", content), 5, nil)
				Expect(err).NotTo(HaveOccurred())
			}

			close(gate)

			Eventually(proc.processed, 2*time.Second, 10*time.Millisecond).Should(HaveLen(4))
			Expect(proc.processed()).To(Equal([]string{"blocker", "a", "b", "c"}))
		})
	})

	Describe("task outcomes", func() {
		It("delivers completed results through the callback", func() {
			r := agent.NewRunner(agent.Config{Name: "ok"}, &recordingProcessor{}, logger)
			defer r.Shutdown(false)

			results := make(chan *agent.TaskResult, 1)
			id, err := r.Submit(agent.NewMessage("user", "hello"), 0, func(res *agent.TaskResult) {
				results <- res
			})
			Expect(err).NotTo(HaveOccurred())

			var res *agent.TaskResult
			Eventually(results, 2*time.Second).Should(Receive(&res))
			Expect(res.TaskID).To(Equal(id))
			Expect(res.Status).To(Equal(agent.StatusCompleted))
			Expect(res.Result).To(Equal("processed: hello"))
			Expect(res.ProcessingTime).To(BeNumerically(">", 0))
		})

		It("captures processor errors as error-status results", func() {
			proc := &recordingProcessor{failOn: "bad"}
			r := agent.NewRunner(agent.Config{Name: "err"}, proc, logger)
			defer r.Shutdown(false)

			results := make(chan *agent.TaskResult, 1)
			_, err := r.Submit(agent.NewMessage("user", "bad"), 0, func(res *agent.TaskResult) {
				results <- res
			})
			Expect(err).NotTo(HaveOccurred())

			var res *agent.TaskResult
			Eventually(results, 2*time.Second).Should(Receive(&res))
			Expect(res.Status).To(Equal(agent.StatusError))
			Expect(res.Error).To(ContainSubstring("simulated failure"))
		})

		It("isolates processor panics and keeps workers alive", func() {
			proc := &recordingProcessor{panicOn: "boom"}
			r := agent.NewRunner(agent.Config{Name: "panic", PoolSize: 1}, proc, logger)
			defer r.Shutdown(false)

			results := make(chan *agent.TaskResult, 2)
			cb := func(res *agent.TaskResult) { results <- res }

			_, err := r.Submit(agent.NewMessage("user", "boom"), 0, cb)
			Expect(err).NotTo(HaveOccurred())

			var res *agent.TaskResult
			Eventually(results, 2*time.Second).Should(Receive(&res))
			Expect(res.Status).To(Equal(agent.StatusError))
			Expect(res.Error).To(ContainSubstring("panic"))

			// The same worker processes the next task.
			_, err = r.Submit(agent.NewMessage("user", "after"), 0, cb)
			Expect(err).NotTo(HaveOccurred())
			Eventually(results, 2*time.Second).Should(Receive(&res))
			Expect(res.Status).To(Equal(agent.StatusCompleted))
		})
	})

	Describe("history", func() {
		It("records inbound messages and supports clearing", func() {
			r := agent.NewRunner(agent.Config{Name: "hist"}, &recordingProcessor{}, logger)
			defer r.Shutdown(false)

			done := make(chan *agent.TaskResult, 1)
			_, err := r.Submit(agent.NewMessage("user", "remember me"), 0, func(res *agent.TaskResult) {
				done <- res
			})
			Expect(err).NotTo(HaveOccurred())
			Eventually(done, 2*time.Second).Should(Receive())

			history := r.History()
			Expect(history).To(HaveLen(1))
			Expect(history[0].Content).To(Equal("remember me"))

			r.ClearHistory()
			Expect(r.History()).To(BeEmpty())
		})
	})

	Describe("Shutdown", func() {
		It("is idempotent and sets terminated status", func() {
			r := agent.NewRunner(agent.Config{Name: "stop"}, &recordingProcessor{}, logger)
			r.Shutdown(true)
			r.Shutdown(true)
			Expect(r.Status()).To(Equal(agent.StatusTerminated))
		})
	})
})
