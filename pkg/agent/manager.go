package agent

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Agent is the manager's view of a registered agent. *Runner and everything
// embedding it satisfy this.
type Agent interface {
	ID() string
	Config() Config
	Submit(msg *Message, priority int, callback Callback) (string, error)
	QueueDepth() int
	Status() Status
	Shutdown(wait bool)
}

// Strategy selects how Route picks an agent.
type Strategy string

const (
	StrategyRoundRobin Strategy = "round_robin"
	StrategyLeastBusy  Strategy = "least_busy"
	StrategyCapability Strategy = "capability"
)

// Stats summarizes an agent's task history. Derived from the history at
// call time, so cost is O(history).
type Stats struct {
	TotalTasks        int           `json:"total_tasks"`
	Completed         int           `json:"completed"`
	Errors            int           `json:"errors"`
	ErrorRate         float64       `json:"error_rate"`
	AvgProcessingTime time.Duration `json:"avg_processing_time"`
}

// Manager maintains a registry of agents, routes messages to them, and owns
// the global result index and per-agent task history.
type Manager struct {
	logger *zap.Logger

	mu     sync.RWMutex
	agents map[string]Agent
	order  []string // registration order, used by routing tiebreaks

	// rrMu guards the per-manager round-robin counter; managers never share
	// routing state.
	rrMu    sync.Mutex
	rrIndex int

	resultsMu sync.Mutex
	results   map[string]*TaskResult
	waiters   map[string][]chan *TaskResult

	historyMu sync.Mutex
	history   map[string][]*TaskResult
}

// NewManager creates an empty manager.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		logger:  logger,
		agents:  make(map[string]Agent),
		results: make(map[string]*TaskResult),
		waiters: make(map[string][]chan *TaskResult),
		history: make(map[string][]*TaskResult),
	}
}

// Register adds an agent and returns its id.
func (m *Manager) Register(agent Agent) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := agent.ID()
	if _, exists := m.agents[id]; !exists {
		m.order = append(m.order, id)
	}
	m.agents[id] = agent

	m.logger.Info("agent registered",
		zap.String("agent_id", id),
		zap.String("name", agent.Config().Name),
	)
	return id
}

// Unregister shuts an agent down and removes it from the registry.
func (m *Manager) Unregister(agentID string) error {
	m.mu.Lock()
	agent, ok := m.agents[agentID]
	if ok {
		delete(m.agents, agentID)
		for i, id := range m.order {
			if id == agentID {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}

	agent.Shutdown(true)
	return nil
}

// Submit sends a message to a specific agent. The caller's callback (if any)
// runs after the manager indexes the result.
func (m *Manager) Submit(agentID string, msg *Message, priority int, callback Callback) (string, error) {
	m.mu.RLock()
	agent, ok := m.agents[agentID]
	m.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}

	indexing := func(result *TaskResult) {
		m.storeResult(agentID, result)
		if callback != nil {
			callback(result)
		}
	}

	return agent.Submit(msg, priority, indexing)
}

// Route selects an agent by strategy and submits the message to it.
// Strategy errors are synchronous; they are never wrapped in a TaskResult.
func (m *Manager) Route(msg *Message, strategy Strategy, priority int) (string, error) {
	switch strategy {
	case StrategyRoundRobin:
		return m.routeRoundRobin(msg, priority)
	case StrategyLeastBusy:
		return m.routeLeastBusy(msg, priority)
	case StrategyCapability:
		return m.routeCapability(msg, priority)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

// Broadcast submits the message to every registered agent. A single agent's
// failure is logged and skipped; it never aborts the broadcast.
func (m *Manager) Broadcast(msg *Message, priority int) []string {
	m.mu.RLock()
	ids := make([]string, len(m.order))
	copy(ids, m.order)
	m.mu.RUnlock()

	taskIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		taskID, err := m.Submit(id, msg, priority, nil)
		if err != nil {
			m.logger.Warn("broadcast submission failed",
				zap.String("agent_id", id),
				zap.Error(err),
			)
			continue
		}
		taskIDs = append(taskIDs, taskID)
	}
	return taskIDs
}

// GetResult waits for a task's result. A timeout yields ErrResultTimeout,
// which is distinct from a task error: the task may still complete later
// and its result stays indexed. A non-positive timeout waits indefinitely.
func (m *Manager) GetResult(taskID string, timeout time.Duration) (*TaskResult, error) {
	m.resultsMu.Lock()
	if result, ok := m.results[taskID]; ok {
		m.resultsMu.Unlock()
		return result, nil
	}

	waiter := make(chan *TaskResult, 1)
	m.waiters[taskID] = append(m.waiters[taskID], waiter)
	m.resultsMu.Unlock()

	if timeout <= 0 {
		return <-waiter, nil
	}

	select {
	case result := <-waiter:
		return result, nil
	case <-time.After(timeout):
		m.removeWaiter(taskID, waiter)
		return nil, ErrResultTimeout
	}
}

// AgentStats computes statistics from an agent's task history.
func (m *Manager) AgentStats(agentID string) Stats {
	m.historyMu.Lock()
	history := m.history[agentID]
	results := make([]*TaskResult, len(history))
	copy(results, history)
	m.historyMu.Unlock()

	stats := Stats{TotalTasks: len(results)}
	if len(results) == 0 {
		return stats
	}

	var completedTime time.Duration
	for _, r := range results {
		switch r.Status {
		case StatusCompleted:
			stats.Completed++
			completedTime += r.ProcessingTime
		case StatusError:
			stats.Errors++
		}
	}

	stats.ErrorRate = float64(stats.Errors) / float64(stats.TotalTasks)
	if stats.Completed > 0 {
		stats.AvgProcessingTime = completedTime / time.Duration(stats.Completed)
	}
	return stats
}

// Agents returns agent ids in registration order.
func (m *Manager) Agents() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, len(m.order))
	copy(ids, m.order)
	return ids
}

// Agent returns a registered agent by id.
func (m *Manager) Agent(agentID string) (Agent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agent, ok := m.agents[agentID]
	return agent, ok
}

// ShutdownAll shuts down every registered agent.
func (m *Manager) ShutdownAll() {
	m.mu.RLock()
	agents := make([]Agent, 0, len(m.agents))
	for _, a := range m.agents {
		agents = append(agents, a)
	}
	m.mu.RUnlock()

	for _, a := range agents {
		a.Shutdown(true)
	}
}

func (m *Manager) routeRoundRobin(msg *Message, priority int) (string, error) {
	m.mu.RLock()
	ids := make([]string, len(m.order))
	copy(ids, m.order)
	m.mu.RUnlock()

	if len(ids) == 0 {
		return "", ErrNoAgents
	}

	m.rrMu.Lock()
	id := ids[m.rrIndex%len(ids)]
	m.rrIndex++
	m.rrMu.Unlock()

	return m.Submit(id, msg, priority, nil)
}

func (m *Manager) routeLeastBusy(msg *Message, priority int) (string, error) {
	m.mu.RLock()
	var leastBusyID string
	minDepth := -1
	for _, id := range m.order {
		depth := m.agents[id].QueueDepth()
		if minDepth < 0 || depth < minDepth {
			minDepth = depth
			leastBusyID = id
		}
	}
	m.mu.RUnlock()

	if leastBusyID == "" {
		return m.routeRoundRobin(msg, priority)
	}

	return m.Submit(leastBusyID, msg, priority, nil)
}

// routeCapability matches agents whose "capabilities" metadata contains a
// case-insensitive substring of the message content; first match in
// registration order wins. Falls back to round-robin.
func (m *Manager) routeCapability(msg *Message, priority int) (string, error) {
	content := strings.ToLower(msg.Content)

	m.mu.RLock()
	var matchedID string
	for _, id := range m.order {
		if hasMatchingCapability(m.agents[id].Config().Metadata, content) {
			matchedID = id
			break
		}
	}
	m.mu.RUnlock()

	if matchedID == "" {
		return m.routeRoundRobin(msg, priority)
	}

	return m.Submit(matchedID, msg, priority, nil)
}

func hasMatchingCapability(metadata map[string]any, content string) bool {
	raw, ok := metadata["capabilities"]
	if !ok {
		return false
	}

	var capabilities []string
	switch caps := raw.(type) {
	case []string:
		capabilities = caps
	case []any:
		for _, c := range caps {
			if str, ok := c.(string); ok {
				capabilities = append(capabilities, str)
			}
		}
	}

	for _, capability := range capabilities {
		if capability != "" && strings.Contains(content, strings.ToLower(capability)) {
			return true
		}
	}
	return false
}

// storeResult indexes a result, appends it to the agent's task history, and
// releases any waiters.
func (m *Manager) storeResult(agentID string, result *TaskResult) {
	m.resultsMu.Lock()
	m.results[result.TaskID] = result
	waiting := m.waiters[result.TaskID]
	delete(m.waiters, result.TaskID)
	m.resultsMu.Unlock()

	for _, w := range waiting {
		w <- result
	}

	m.historyMu.Lock()
	m.history[agentID] = append(m.history[agentID], result)
	m.historyMu.Unlock()
}

func (m *Manager) removeWaiter(taskID string, waiter chan *TaskResult) {
	m.resultsMu.Lock()
	defer m.resultsMu.Unlock()

	waiting := m.waiters[taskID]
	for i, w := range waiting {
		if w == waiter {
			m.waiters[taskID] = append(waiting[:i], waiting[i+1:]...)
			break
		}
	}
	if len(m.waiters[taskID]) == 0 {
		delete(m.waiters, taskID)
	}
}
