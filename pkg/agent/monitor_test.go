package agent_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/neargravity/gravity/pkg/agent"
)

// submitBatch drives n auto-completing submissions through the manager so
// the agent accrues history with the given status.
func submitBatch(m *agent.Manager, a *fakeAgent, n int, status agent.Status) {
	a.status = status
	for i := 0; i < n; i++ {
		_, err := m.Submit(a.ID(), agent.NewMessage("user", "work"), 0, nil)
		Expect(err).NotTo(HaveOccurred())
	}
}

var _ = Describe("Monitor", func() {
	var (
		m       *agent.Manager
		monitor *agent.Monitor
	)

	BeforeEach(func() {
		m = agent.NewManager(zap.NewNop())
		monitor = agent.NewMonitor(m, time.Hour, zap.NewNop())
	})

	AfterEach(func() {
		monitor.Shutdown()
	})

	Describe("Check", func() {
		It("reports ok for a quiet agent", func() {
			a := newFakeAgent("quiet", agent.Config{Name: "quiet"})
			m.Register(a)

			reports := monitor.Check()
			Expect(reports).To(HaveLen(1))
			Expect(reports[0].Health).To(Equal(agent.HealthOK))
			Expect(reports[0].AgentID).To(Equal("quiet"))
		})

		It("reports warning when the error rate exceeds the warning threshold", func() {
			a := newFakeAgent("flaky", agent.Config{Name: "flaky"})
			m.Register(a)

			// 93 completed, 7 errors: rate 0.07 sits between the warning
			// and unhealthy thresholds.
			submitBatch(m, a, 93, agent.StatusCompleted)
			submitBatch(m, a, 7, agent.StatusError)

			reports := monitor.Check()
			Expect(reports).To(HaveLen(1))
			Expect(reports[0].Health).To(Equal(agent.HealthWarning))
			Expect(reports[0].ErrorRate).To(BeNumerically("~", 0.07, 0.001))
		})

		It("reports unhealthy when the error rate exceeds the unhealthy threshold", func() {
			a := newFakeAgent("broken", agent.Config{Name: "broken"})
			m.Register(a)

			submitBatch(m, a, 8, agent.StatusCompleted)
			submitBatch(m, a, 2, agent.StatusError)

			reports := monitor.Check()
			Expect(reports).To(HaveLen(1))
			Expect(reports[0].Health).To(Equal(agent.HealthUnhealthy))
		})

		It("reports overloaded when queue depth exceeds the limit", func() {
			a := newFakeAgent("swamped", agent.Config{Name: "swamped"})
			a.depth = 150
			m.Register(a)

			reports := monitor.Check()
			Expect(reports).To(HaveLen(1))
			Expect(reports[0].Health).To(Equal(agent.HealthOverloaded))
			Expect(reports[0].QueueDepth).To(Equal(150))
		})

		It("ranks queue overload above error rate", func() {
			a := newFakeAgent("both", agent.Config{Name: "both"})
			a.depth = 150
			m.Register(a)

			submitBatch(m, a, 1, agent.StatusCompleted)
			submitBatch(m, a, 9, agent.StatusError)

			reports := monitor.Check()
			Expect(reports[0].Health).To(Equal(agent.HealthOverloaded))
		})

		It("covers every registered agent", func() {
			m.Register(newFakeAgent("one", agent.Config{Name: "one"}))
			m.Register(newFakeAgent("two", agent.Config{Name: "two"}))

			reports := monitor.Check()
			Expect(reports).To(HaveLen(2))
		})
	})

	Describe("sampling loop", func() {
		It("raises alerts for degraded agents", func() {
			fast := agent.NewMonitor(m, 10*time.Millisecond, zap.NewNop())
			defer fast.Shutdown()

			a := newFakeAgent("swamped", agent.Config{Name: "swamped"})
			a.depth = 150
			m.Register(a)

			var alert agent.Alert
			Eventually(fast.Alerts(), 2*time.Second).Should(Receive(&alert))
			Expect(alert.AgentID).To(Equal("swamped"))
			Expect(alert.Health).To(Equal(agent.HealthOverloaded))
			Expect(alert.Reason).NotTo(BeEmpty())
		})
	})

	Describe("Shutdown", func() {
		It("is idempotent", func() {
			monitor.Shutdown()
			monitor.Shutdown()
		})
	})
})
