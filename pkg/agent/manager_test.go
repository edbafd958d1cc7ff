package agent_test

import (
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/neargravity/gravity/pkg/agent"
)

// fakeAgent satisfies agent.Agent without a worker pool. Submissions are
// recorded; the configured behavior decides whether and how the callback
// fires.
type fakeAgent struct {
	mu sync.Mutex

	id     string
	config agent.Config
	depth  int

	submissions []string
	callbacks   []agent.Callback
	taskIDs     []string

	// complete invokes callbacks synchronously with the given status.
	complete bool
	status   agent.Status
	duration time.Duration

	submitErr error
	shutdowns int
}

func newFakeAgent(id string, cfg agent.Config) *fakeAgent {
	return &fakeAgent{id: id, config: cfg, complete: true, status: agent.StatusCompleted}
}

func (f *fakeAgent) ID() string           { return f.id }
func (f *fakeAgent) Config() agent.Config { return f.config }
func (f *fakeAgent) QueueDepth() int      { return f.depth }
func (f *fakeAgent) Status() agent.Status { return agent.StatusIdle }

func (f *fakeAgent) Submit(msg *agent.Message, _ int, cb agent.Callback) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitErr != nil {
		return "", f.submitErr
	}

	taskID := fmt.Sprintf("%s-task-%d", f.id, len(f.submissions))
	f.submissions = append(f.submissions, msg.Content)
	f.callbacks = append(f.callbacks, cb)
	f.taskIDs = append(f.taskIDs, taskID)

	if f.complete && cb != nil {
		result := &agent.TaskResult{
			TaskID:         taskID,
			AgentID:        f.id,
			Status:         f.status,
			ProcessingTime: f.duration,
		}
		if f.status == agent.StatusError {
			result.Error = "fake failure"
		}
		cb(result)
	}

	return taskID, nil
}

func (f *fakeAgent) Shutdown(_ bool) {
	f.mu.Lock()
	f.shutdowns++
	f.mu.Unlock()
}

func (f *fakeAgent) submissionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submissions)
}

// fireLast invokes the most recent pending callback with the given result.
func (f *fakeAgent) fireLast(status agent.Status) {
	f.mu.Lock()
	cb := f.callbacks[len(f.callbacks)-1]
	taskID := f.taskIDs[len(f.taskIDs)-1]
	f.mu.Unlock()

	cb(&agent.TaskResult{TaskID: taskID, AgentID: f.id, Status: status})
}

var _ = Describe("Manager", func() {
	var m *agent.Manager

	BeforeEach(func() {
		m = agent.NewManager(zap.NewNop())
	})

	Describe("routing with an empty registry", func() {
		It("fails round-robin with ErrNoAgents", func() {
			_, err := m.Route(agent.NewMessage("user", "hi"), agent.StrategyRoundRobin, 0)
			Expect(err).To(MatchError(agent.ErrNoAgents))
		})

		It("fails least-busy with ErrNoAgents", func() {
			_, err := m.Route(agent.NewMessage("user", "hi"), agent.StrategyLeastBusy, 0)
			Expect(err).To(MatchError(agent.ErrNoAgents))
		})

		It("fails capability routing with ErrNoAgents", func() {
			_, err := m.Route(agent.NewMessage("user", "hi"), agent.StrategyCapability, 0)
			Expect(err).To(MatchError(agent.ErrNoAgents))
		})

		It("rejects unknown strategies", func() {
			_, err := m.Route(agent.NewMessage("user", "hi"), agent.Strategy("chaotic"), 0)
			Expect(err).To(MatchError(agent.ErrUnknownStrategy))
		})
	})

	Describe("round-robin routing", func() {
		It("visits each agent exactly once in registration order", func() {
			agents := []*fakeAgent{
				newFakeAgent("a", agent.Config{Name: "a"}),
				newFakeAgent("b", agent.Config{Name: "b"}),
				newFakeAgent("c", agent.Config{Name: "c"}),
			}
			for _, a := range agents {
				m.Register(a)
			}

			for i := 0; i < len(agents); i++ {
				_, err := m.Route(agent.NewMessage("user", "work"), agent.StrategyRoundRobin, 0)
				Expect(err).NotTo(HaveOccurred())
			}

			for _, a := range agents {
				Expect(a.submissionCount()).To(Equal(1))
			}
		})
	})

	Describe("least-busy routing", func() {
		It("selects the agent with the shallowest queue", func() {
			idle := newFakeAgent("idle", agent.Config{Name: "idle"})
			busy := newFakeAgent("busy", agent.Config{Name: "busy"})
			busy.depth = 3

			m.Register(busy)
			m.Register(idle)

			_, err := m.Route(agent.NewMessage("user", "work"), agent.StrategyLeastBusy, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(idle.submissionCount()).To(Equal(1))
			Expect(busy.submissionCount()).To(BeZero())
		})
	})

	Describe("capability routing", func() {
		It("prefers a capability match over round-robin order", func() {
			general := newFakeAgent("general", agent.Config{Name: "general"})
			searcher := newFakeAgent("searcher", agent.Config{
				Name:     "searcher",
				Metadata: map[string]any{"capabilities": []string{"search"}},
			})

			m.Register(general)
			m.Register(searcher)

			_, err := m.Route(agent.NewMessage("user", "search for papers"), agent.StrategyCapability, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(searcher.submissionCount()).To(Equal(1))
			Expect(general.submissionCount()).To(BeZero())
		})

		It("falls back to round-robin when nothing matches", func() {
			a := newFakeAgent("a", agent.Config{Name: "a"})
			m.Register(a)

			_, err := m.Route(agent.NewMessage("user", "unrelated request"), agent.StrategyCapability, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(a.submissionCount()).To(Equal(1))
		})
	})

	Describe("Submit", func() {
		It("fails for unknown agents", func() {
			_, err := m.Submit("missing", agent.NewMessage("user", "hi"), 0, nil)
			Expect(err).To(MatchError(agent.ErrAgentNotFound))
		})

		It("runs the caller callback after indexing", func() {
			a := newFakeAgent("a", agent.Config{Name: "a"})
			m.Register(a)

			var got *agent.TaskResult
			taskID, err := m.Submit("a", agent.NewMessage("user", "hi"), 0, func(res *agent.TaskResult) {
				// The result must already be retrievable when the caller
				// callback runs.
				indexed, err := m.GetResult(res.TaskID, time.Second)
				Expect(err).NotTo(HaveOccurred())
				got = indexed
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeNil())
			Expect(got.TaskID).To(Equal(taskID))
		})
	})

	Describe("GetResult", func() {
		It("returns ErrResultTimeout for a stalled task, then the result once it completes", func() {
			a := newFakeAgent("slow", agent.Config{Name: "slow"})
			a.complete = false
			m.Register(a)

			taskID, err := m.Submit("slow", agent.NewMessage("user", "hi"), 0, nil)
			Expect(err).NotTo(HaveOccurred())

			_, err = m.GetResult(taskID, 50*time.Millisecond)
			Expect(err).To(MatchError(agent.ErrResultTimeout))

			go func() {
				time.Sleep(50 * time.Millisecond)
				a.fireLast(agent.StatusCompleted)
			}()

			res, err := m.GetResult(taskID, 5*time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.TaskID).To(Equal(taskID))
			Expect(res.Status).To(Equal(agent.StatusCompleted))
		})

		It("releases concurrent waiters for the same task", func() {
			a := newFakeAgent("slow", agent.Config{Name: "slow"})
			a.complete = false
			m.Register(a)

			taskID, err := m.Submit("slow", agent.NewMessage("user", "hi"), 0, nil)
			Expect(err).NotTo(HaveOccurred())

			var wg sync.WaitGroup
			errs := make([]error, 3)
			for i := 0; i < 3; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = m.GetResult(taskID, 5*time.Second)
				}(i)
			}

			time.Sleep(50 * time.Millisecond)
			a.fireLast(agent.StatusCompleted)
			wg.Wait()

			for _, err := range errs {
				Expect(err).NotTo(HaveOccurred())
			}
		})
	})

	Describe("Broadcast", func() {
		It("skips failing agents without aborting", func() {
			ok := newFakeAgent("ok", agent.Config{Name: "ok"})
			broken := newFakeAgent("broken", agent.Config{Name: "broken"})
			broken.submitErr = errors.New("refused")

			m.Register(ok)
			m.Register(broken)

			taskIDs := m.Broadcast(agent.NewMessage("user", "all hands"), 0)
			Expect(taskIDs).To(HaveLen(1))
			Expect(ok.submissionCount()).To(Equal(1))
		})
	})

	Describe("AgentStats", func() {
		It("derives counts and error rate from the task history", func() {
			a := newFakeAgent("a", agent.Config{Name: "a"})
			a.duration = 100 * time.Millisecond
			m.Register(a)

			for i := 0; i < 8; i++ {
				_, err := m.Submit("a", agent.NewMessage("user", "ok"), 0, nil)
				Expect(err).NotTo(HaveOccurred())
			}

			a.status = agent.StatusError
			for i := 0; i < 2; i++ {
				_, err := m.Submit("a", agent.NewMessage("user", "bad"), 0, nil)
				Expect(err).NotTo(HaveOccurred())
			}

			stats := m.AgentStats("a")
			Expect(stats.TotalTasks).To(Equal(10))
			Expect(stats.Completed).To(Equal(8))
			Expect(stats.Errors).To(Equal(2))
			Expect(stats.ErrorRate).To(BeNumerically("~", 0.2, 0.001))
			Expect(stats.AvgProcessingTime).To(Equal(100 * time.Millisecond))
		})

		It("returns zeroes for an agent with no history", func() {
			stats := m.AgentStats("nobody")
			Expect(stats.TotalTasks).To(BeZero())
			Expect(stats.ErrorRate).To(BeZero())
		})
	})

	Describe("Unregister", func() {
		It("shuts the agent down and removes it", func() {
			a := newFakeAgent("a", agent.Config{Name: "a"})
			m.Register(a)

			Expect(m.Unregister("a")).To(Succeed())
			Expect(a.shutdowns).To(Equal(1))
			Expect(m.Agents()).To(BeEmpty())
		})

		It("fails for unknown agents", func() {
			Expect(m.Unregister("ghost")).To(MatchError(agent.ErrAgentNotFound))
		})
	})
})
