package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPoolSize = 5

	// pollInterval bounds how long an idle worker waits before re-checking
	// the queue and the shutdown flag.
	pollInterval = 100 * time.Millisecond

	// joinTimeout bounds how long Shutdown(wait=true) blocks for workers.
	// A worker stuck inside a long provider call can exceed this; it is not
	// forcibly interrupted.
	joinTimeout = 5 * time.Second

	// resultBuffer is the capacity of the result channel.
	resultBuffer = 256
)

// Processor is the domain-specific extension point of an agent. It must be
// safe for concurrent calls: all workers of a pool share one Processor, but
// each invocation operates on an independent task.
type Processor interface {
	Process(ctx context.Context, msg *Message) (any, error)
}

// Runner owns an agent's worker pool, priority queue, conversation history,
// and result channel. Concrete agents embed a Runner and supply a Processor.
type Runner struct {
	id        string
	config    Config
	processor Processor
	logger    *zap.Logger

	queue   *taskQueue
	notify  chan struct{}
	results chan *TaskResult

	shutdown     chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup

	// status and history have dedicated locks so processing-state
	// transitions never contend with history bookkeeping.
	statusMu sync.Mutex
	status   Status

	historyMu sync.RWMutex
	history   []*Message
}

// NewRunner creates a runner and starts its worker pool.
func NewRunner(config Config, processor Processor, logger *zap.Logger) *Runner {
	if config.PoolSize <= 0 {
		config.PoolSize = defaultPoolSize
	}

	r := &Runner{
		id:        uuid.NewString(),
		config:    config,
		processor: processor,
		logger:    logger.With(zap.String("agent", config.Name)),
		queue:     newTaskQueue(),
		notify:    make(chan struct{}, 1),
		results:   make(chan *TaskResult, resultBuffer),
		shutdown:  make(chan struct{}),
		status:    StatusIdle,
	}

	r.wg.Add(config.PoolSize)
	for i := 0; i < config.PoolSize; i++ {
		go r.worker(i)
	}

	return r
}

// ID returns the agent's unique id.
func (r *Runner) ID() string { return r.id }

// Config returns the agent's configuration.
func (r *Runner) Config() Config { return r.config }

// Submit enqueues a task and returns its id immediately; it never blocks on
// workers. Larger priority values are processed first.
func (r *Runner) Submit(msg *Message, priority int, callback Callback) (string, error) {
	select {
	case <-r.shutdown:
		return "", ErrShutdown
	default:
	}

	req := &TaskRequest{
		ID:       uuid.NewString(),
		Message:  msg,
		Priority: priority,
		Callback: callback,
		Metadata: msg.Metadata,
	}

	r.queue.push(req)

	// Wake one idle worker. A full notify channel means a wakeup is already
	// pending; the poll tick covers the rest.
	select {
	case r.notify <- struct{}{}:
	default:
	}

	return req.ID, nil
}

// QueueDepth returns the number of queued tasks.
func (r *Runner) QueueDepth() int { return r.queue.depth() }

// Results returns the channel carrying completed task results.
func (r *Runner) Results() <-chan *TaskResult { return r.results }

// Status returns the agent's current status.
func (r *Runner) Status() Status {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	return r.status
}

func (r *Runner) setStatus(s Status) {
	r.statusMu.Lock()
	r.status = s
	r.statusMu.Unlock()
}

// AddToHistory appends a message to the conversation history.
func (r *Runner) AddToHistory(msg *Message) {
	r.historyMu.Lock()
	r.history = append(r.history, msg)
	r.historyMu.Unlock()
}

// History returns a copy of the conversation history.
func (r *Runner) History() []*Message {
	r.historyMu.RLock()
	defer r.historyMu.RUnlock()

	out := make([]*Message, len(r.history))
	copy(out, r.history)
	return out
}

// ClearHistory empties the conversation history.
func (r *Runner) ClearHistory() {
	r.historyMu.Lock()
	r.history = nil
	r.historyMu.Unlock()
}

// Shutdown signals workers to stop. When wait is true it blocks until the
// pool drains or the join timeout elapses. Status becomes Terminated
// unconditionally.
func (r *Runner) Shutdown(wait bool) {
	r.shutdownOnce.Do(func() {
		close(r.shutdown)
	})

	if wait {
		done := make(chan struct{})
		go func() {
			r.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(joinTimeout):
			r.logger.Warn("shutdown join timed out with workers still busy")
		}
	}

	r.setStatus(StatusTerminated)
}

// worker is the per-slot loop: bounded-wait dequeue, process, deliver.
func (r *Runner) worker(id int) {
	defer r.wg.Done()
	r.logger.Debug("worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-r.shutdown:
			r.logger.Debug("worker stopped", zap.Int("worker_id", id))
			return
		default:
		}

		req := r.queue.pop()
		if req == nil {
			select {
			case <-r.notify:
			case <-time.After(pollInterval):
			case <-r.shutdown:
				r.logger.Debug("worker stopped", zap.Int("worker_id", id))
				return
			}
			continue
		}

		result := r.runTask(req)

		select {
		case r.results <- result:
		default:
			r.logger.Warn("result channel full, result only reachable via callback",
				zap.String("task_id", req.ID),
			)
		}

		if req.Callback != nil {
			r.invokeCallback(req.Callback, result)
		}
	}
}

// runTask executes a single task. A Processor error or panic becomes an
// Error-status result; it never kills the worker.
func (r *Runner) runTask(req *TaskRequest) *TaskResult {
	start := time.Now()
	r.setStatus(StatusProcessing)
	r.AddToHistory(req.Message)

	payload, err := r.invokeProcessor(req)
	completed := time.Now()

	result := &TaskResult{
		TaskID:         req.ID,
		AgentID:        r.id,
		Metadata:       req.Metadata,
		CreatedAt:      start,
		CompletedAt:    completed,
		ProcessingTime: completed.Sub(start),
	}

	if err != nil {
		r.setStatus(StatusError)
		result.Status = StatusError
		result.Error = err.Error()
		r.logger.Debug("task failed",
			zap.String("task_id", req.ID),
			zap.Error(err),
		)
		return result
	}

	r.setStatus(StatusCompleted)
	result.Status = StatusCompleted
	result.Result = payload
	return result
}

// invokeProcessor calls Process with the task's timeout applied, converting
// panics into errors at the worker boundary.
func (r *Runner) invokeProcessor(req *TaskRequest) (payload any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("processor panic: %v", rec)
		}
	}()

	ctx := context.Background()
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	return r.processor.Process(ctx, req.Message)
}

func (r *Runner) invokeCallback(cb Callback, result *TaskResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("task callback panicked",
				zap.String("task_id", result.TaskID),
				zap.Any("panic", rec),
			)
		}
	}()
	cb(result)
}
