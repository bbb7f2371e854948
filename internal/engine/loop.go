package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrLoopStopped is returned when work is submitted to a loop that has stopped.
var ErrLoopStopped = errors.New("engine loop stopped")

// Loop is the single-writer event loop that owns a notebook in real time.
//
// Submitted commands and scheduler expiries are both delivered as tasks and
// executed one at a time, in FIFO order, on the goroutine that calls Run.
// Whatever state those tasks touch therefore needs no locking.
//
// Thread-safety model:
//   - Enqueue(), Do(), Stop(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//
// A panicking task is logged and the loop continues with the next task.
type Loop struct {
	queue    *taskQueue
	logger   *slog.Logger
	done     chan struct{}
	doneOnce sync.Once
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLogger sets the logger used for loop lifecycle and task failures.
// Default: slog.Default().
func WithLogger(l *slog.Logger) LoopOption {
	return func(lp *Loop) {
		lp.logger = l
	}
}

// NewLoop creates a loop. It does nothing until Run is called.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		queue:  newTaskQueue(),
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Enqueue submits a task without waiting for it.
// Returns false if the loop has been stopped.
func (l *Loop) Enqueue(t Task) bool {
	return l.queue.push(t)
}

// Do submits a task and blocks until it has run on the loop goroutine,
// ctx is cancelled, or the loop exits.
func (l *Loop) Do(ctx context.Context, t Task) error {
	ran := make(chan struct{})
	if !l.queue.push(func() {
		defer close(ran)
		t()
	}) {
		return ErrLoopStopped
	}

	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// The task may still have run just before exit.
		select {
		case <-ran:
			return nil
		default:
			return ErrLoopStopped
		}
	}
}

// Run executes tasks until ctx is cancelled or Stop is called.
// After Stop, tasks that were already queued are still executed.
//
// CRITICAL: Must be called from exactly ONE goroutine.
func (l *Loop) Run(ctx context.Context) error {
	defer l.doneOnce.Do(func() { close(l.done) })
	l.logger.Debug("engine loop starting")

	for {
		if err := ctx.Err(); err != nil {
			l.logger.Debug("engine loop stopping: context cancelled")
			l.queue.close()
			return err
		}

		batch, closed := l.queue.take()
		for _, t := range batch {
			l.runTask(t)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			l.logger.Debug("engine loop stopping: queue closed")
			return nil
		}

		select {
		case <-ctx.Done():
		case <-l.queue.wake():
		}
	}
}

// Stop closes the loop for new work. Run returns once the queue drains.
func (l *Loop) Stop() {
	l.queue.close()
}

// Done is closed when Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// runTask executes one task, converting a panic into a logged error so the
// loop keeps serving the remaining tasks.
func (l *Loop) runTask(t Task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("engine task panicked", "error", fmt.Sprint(r))
		}
	}()
	t()
}
