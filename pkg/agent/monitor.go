package agent

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMonitorInterval is how often the monitor samples agent health.
	DefaultMonitorInterval = 30 * time.Second

	unhealthyErrorRate = 0.1
	warningErrorRate   = 0.05
	overloadedDepth    = 100
)

// Health classifies an agent's condition from its error rate and queue depth.
type Health string

const (
	HealthOK         Health = "ok"
	HealthWarning    Health = "warning"
	HealthUnhealthy  Health = "unhealthy"
	HealthOverloaded Health = "overloaded"
)

// HealthReport is one agent's sampled condition.
type HealthReport struct {
	AgentID    string  `json:"agent_id"`
	Name       string  `json:"name"`
	Status     Status  `json:"status"`
	Health     Health  `json:"health"`
	QueueDepth int     `json:"queue_depth"`
	ErrorRate  float64 `json:"error_rate"`
	TotalTasks int     `json:"total_tasks"`
}

// Alert flags a degraded agent.
type Alert struct {
	AgentID string    `json:"agent_id"`
	Health  Health    `json:"health"`
	Reason  string    `json:"reason"`
	At      time.Time `json:"at"`
}

// Monitor periodically samples every agent in a manager and raises alerts
// for degraded ones.
type Monitor struct {
	manager  *Manager
	logger   *zap.Logger
	interval time.Duration

	alerts chan Alert

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewMonitor creates a monitor and starts its sampling loop. A non-positive
// interval uses DefaultMonitorInterval.
func NewMonitor(manager *Manager, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}

	m := &Monitor{
		manager:  manager,
		logger:   logger,
		interval: interval,
		alerts:   make(chan Alert, 64),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go m.loop()
	return m
}

// Alerts returns the channel carrying degradation alerts. Alerts are dropped
// when the channel is full; the log line is the durable record.
func (m *Monitor) Alerts() <-chan Alert { return m.alerts }

// Check samples every registered agent once.
func (m *Monitor) Check() []HealthReport {
	ids := m.manager.Agents()
	reports := make([]HealthReport, 0, len(ids))

	for _, id := range ids {
		agent, ok := m.manager.Agent(id)
		if !ok {
			continue
		}

		stats := m.manager.AgentStats(id)
		report := HealthReport{
			AgentID:    id,
			Name:       agent.Config().Name,
			Status:     agent.Status(),
			QueueDepth: agent.QueueDepth(),
			ErrorRate:  stats.ErrorRate,
			TotalTasks: stats.TotalTasks,
		}
		report.Health = classify(report)
		reports = append(reports, report)
	}

	return reports
}

// Shutdown stops the sampling loop and waits for it to exit.
func (m *Monitor) Shutdown() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	<-m.done
}

func (m *Monitor) loop() {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			for _, report := range m.Check() {
				if report.Health == HealthOK {
					continue
				}
				m.raise(report)
			}
		}
	}
}

func (m *Monitor) raise(report HealthReport) {
	alert := Alert{
		AgentID: report.AgentID,
		Health:  report.Health,
		Reason:  reason(report),
		At:      time.Now().UTC(),
	}

	m.logger.Warn("agent degraded",
		zap.String("agent_id", report.AgentID),
		zap.String("name", report.Name),
		zap.String("health", string(report.Health)),
		zap.String("reason", alert.Reason),
		zap.Float64("error_rate", report.ErrorRate),
		zap.Int("queue_depth", report.QueueDepth),
	)

	select {
	case m.alerts <- alert:
	default:
	}
}

// classify orders checks by severity: queue overload outranks error rate.
func classify(r HealthReport) Health {
	switch {
	case r.QueueDepth > overloadedDepth:
		return HealthOverloaded
	case r.ErrorRate > unhealthyErrorRate:
		return HealthUnhealthy
	case r.ErrorRate > warningErrorRate:
		return HealthWarning
	default:
		return HealthOK
	}
}

func reason(r HealthReport) string {
	switch r.Health {
	case HealthOverloaded:
		return "queue depth exceeds limit"
	case HealthUnhealthy:
		return "error rate exceeds unhealthy threshold"
	case HealthWarning:
		return "error rate exceeds warning threshold"
	default:
		return ""
	}
}
