package agent

import (
	"container/heap"
	"sync"
)

// taskQueue is a thread-safe priority queue of task requests. Numerically
// larger priorities dequeue first; equal priorities dequeue in submission
// order via the request sequence number.
type taskQueue struct {
	mu    sync.Mutex
	items taskHeap
	seq   uint64
}

func newTaskQueue() *taskQueue {
	return &taskQueue{}
}

// push enqueues a request, stamping its sequence number.
func (q *taskQueue) push(req *TaskRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	req.seq = q.seq
	heap.Push(&q.items, req)
}

// pop removes and returns the highest-priority request, or nil when empty.
func (q *taskQueue) pop() *TaskRequest {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.items).(*TaskRequest)
}

// depth returns the number of queued requests.
func (q *taskQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// taskHeap implements heap.Interface ordered by (priority desc, seq asc).
type taskHeap []*TaskRequest

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	*h = append(*h, x.(*TaskRequest))
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
