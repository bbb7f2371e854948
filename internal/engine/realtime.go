package engine

import (
	"sync/atomic"
	"time"
)

// RealtimeScheduler schedules callbacks on wall-clock timers and delivers
// them as tasks on a Loop, so they interleave with submitted commands on the
// loop goroutine only.
type RealtimeScheduler struct {
	loop  *Loop
	start time.Time
}

// NewRealtimeScheduler creates a scheduler whose origin is the current time.
func NewRealtimeScheduler(loop *Loop) *RealtimeScheduler {
	return &RealtimeScheduler{loop: loop, start: time.Now()}
}

// Now returns the time elapsed since the scheduler was created.
func (s *RealtimeScheduler) Now() time.Duration {
	return time.Since(s.start)
}

// AfterFunc schedules fn to run on the loop after d.
//
// Expiry only enqueues a task; the task re-checks the timer state on the
// loop goroutine, so a Stop that returns true before the task runs always
// wins, even if the wall-clock timer already expired.
func (s *RealtimeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	t := &realtimeTimer{}
	t.timer = time.AfterFunc(d, func() {
		s.loop.Enqueue(func() {
			if !t.done.CompareAndSwap(false, true) {
				return
			}
			fn()
		})
	})
	return t
}

type realtimeTimer struct {
	timer *time.Timer
	done  atomic.Bool // set once the callback ran or the timer was stopped
}

func (t *realtimeTimer) Stop() bool {
	t.timer.Stop()
	return t.done.CompareAndSwap(false, true)
}
