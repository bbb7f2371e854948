package engine

import "sync"

// Task is a unit of work executed on the loop goroutine.
type Task func()

// taskQueue is the loop's unbounded inbox. Producers never block, so a
// timer expiry cannot stall on a busy loop.
//
// The loop drains it in batches: take hands over everything queued so far,
// and ready wakes the loop when the queue goes from empty to non-empty or
// is closed.
type taskQueue struct {
	mu     sync.Mutex
	tasks  []Task
	closed bool
	ready  chan struct{} // capacity 1; closed by close
}

func newTaskQueue() *taskQueue {
	return &taskQueue{ready: make(chan struct{}, 1)}
}

// push appends t. It reports false once the queue is closed.
func (q *taskQueue) push(t Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, t)
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// take removes every queued task, oldest first, and reports whether the
// queue has been closed.
func (q *taskQueue) take() ([]Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.tasks
	q.tasks = nil
	return batch, q.closed
}

// wake fires after push or close.
func (q *taskQueue) wake() <-chan struct{} {
	return q.ready
}

func (q *taskQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// close rejects further pushes. Already queued tasks can still be taken.
func (q *taskQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ready)
	}
}
