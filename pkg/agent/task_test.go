package agent_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/neargravity/gravity/pkg/agent"
	"github.com/neargravity/gravity/pkg/llm"
	testutils "github.com/neargravity/gravity/pkg/utils/test"
)

var _ = Describe("TaskAgent", func() {
	var gen *testutils.MockGenerator

	submit := func(a *agent.TaskAgent, content string) *agent.TaskResult {
		done := make(chan *agent.TaskResult, 1)
		_, err := a.Submit(agent.NewMessage("user", content), 0, func(res *agent.TaskResult) {
			done <- res
		})
		Expect(err).NotTo(HaveOccurred())

		var res *agent.TaskResult
		Eventually(done, 2*time.Second).Should(Receive(&res))
		return res
	}

	BeforeEach(func() {
		gen = testutils.NewMockGenerator("")
		gen.Echo = true
	})

	It("sends the system prompt ahead of the conversation", func() {
		a := agent.NewTaskAgent(agent.Config{
			Name:         "assistant",
			SystemPrompt: "You are terse.",
			Model:        "gpt-4o-mini",
		}, gen, zap.NewNop())
		defer a.Shutdown(false)

		res := submit(a, "hello there")
		Expect(res.Status).To(Equal(agent.StatusCompleted))
		Expect(res.Result).To(Equal("hello there"))

		Expect(gen.Requests).To(HaveLen(1))
		req := gen.Requests[0]
		Expect(req.Model).To(Equal("gpt-4o-mini"))
		Expect(req.Messages[0]).To(Equal(llm.ChatMessage{Role: "system", Content: "You are terse."}))
		Expect(req.Messages[1]).To(Equal(llm.ChatMessage{Role: "user", Content: "hello there"}))
	})

	It("carries prior turns into subsequent requests", func() {
		a := agent.NewTaskAgent(agent.Config{Name: "assistant"}, gen, zap.NewNop())
		defer a.Shutdown(false)

		submit(a, "first question")
		submit(a, "second question")

		Expect(gen.Requests).To(HaveLen(2))
		second := gen.Requests[1]

		contents := make([]string, 0, len(second.Messages))
		for _, msg := range second.Messages {
			contents = append(contents, msg.Role+": "+msg.Content)
		}
		Expect(contents).To(Equal([]string{
			"user: first question",
			"assistant: first question",
			"user: second question",
		}))
	})

	It("records the assistant reply in history", func() {
		gen.Echo = false
		gen.Reply = "a considered answer"

		a := agent.NewTaskAgent(agent.Config{Name: "assistant"}, gen, zap.NewNop())
		defer a.Shutdown(false)

		submit(a, "question")

		history := a.History()
		Expect(history).To(HaveLen(2))
		Expect(history[0].Role).To(Equal("user"))
		Expect(history[1].Role).To(Equal("assistant"))
		Expect(history[1].Content).To(Equal("a considered answer"))
	})

	It("surfaces generator failures as error results", func() {
		gen.Err = llm.ErrGeneration

		a := agent.NewTaskAgent(agent.Config{Name: "assistant"}, gen, zap.NewNop())
		defer a.Shutdown(false)

		res := submit(a, "question")
		Expect(res.Status).To(Equal(agent.StatusError))
		Expect(res.Error).To(ContainSubstring("task generation"))
	})
})
