package engine

import (
	"container/heap"
	"time"
)

// VirtualScheduler is a deterministic Scheduler driven by explicit time
// advancement. Nothing happens until Advance, AdvanceTo or RunUntilIdle is
// called; due callbacks then run synchronously on the caller's goroutine.
//
// Ordering: callbacks fire by due time, and callbacks with equal due times
// fire in the order they were scheduled. While a callback runs, Now reports
// its due time, so callbacks scheduling follow-ups chain exactly.
//
// Thread-safety: none. A VirtualScheduler belongs to one goroutine.
type VirtualScheduler struct {
	now    time.Duration
	clock  *Clock
	timers timerHeap
}

// NewVirtualScheduler creates a scheduler at offset 0.
func NewVirtualScheduler() *VirtualScheduler {
	return &VirtualScheduler{clock: NewClock()}
}

// Now returns the current virtual offset.
func (s *VirtualScheduler) Now() time.Duration {
	return s.now
}

// AfterFunc schedules fn at Now()+d.
func (s *VirtualScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	t := &virtualTimer{
		s:     s,
		due:   s.now + d,
		order: s.clock.Next(),
		fn:    fn,
		index: -1,
	}
	heap.Push(&s.timers, t)
	return t
}

// Advance moves virtual time forward by d, firing every callback that
// becomes due, including callbacks scheduled by earlier callbacks within the
// window. Returns the number of callbacks fired.
func (s *VirtualScheduler) Advance(d time.Duration) int {
	if d < 0 {
		d = 0
	}
	return s.AdvanceTo(s.now + d)
}

// AdvanceTo moves virtual time forward to at. Moving backwards is a no-op
// apart from firing callbacks already due at the current instant.
func (s *VirtualScheduler) AdvanceTo(at time.Duration) int {
	if at < s.now {
		at = s.now
	}
	fired := 0
	for len(s.timers) > 0 && s.timers[0].due <= at {
		t := heap.Pop(&s.timers).(*virtualTimer)
		s.now = t.due
		t.fn()
		fired++
	}
	s.now = at
	return fired
}

// RunUntilIdle fires callbacks in order until none are pending or limit
// callbacks have fired. A limit <= 0 means no limit. Virtual time ends at the
// due time of the last fired callback. Returns the number fired.
func (s *VirtualScheduler) RunUntilIdle(limit int) int {
	fired := 0
	for len(s.timers) > 0 {
		if limit > 0 && fired >= limit {
			break
		}
		t := heap.Pop(&s.timers).(*virtualTimer)
		s.now = t.due
		t.fn()
		fired++
	}
	return fired
}

// Pending returns the number of scheduled callbacks that have not fired.
func (s *VirtualScheduler) Pending() int {
	return len(s.timers)
}

// NextDue returns the due time of the earliest pending callback.
func (s *VirtualScheduler) NextDue() (time.Duration, bool) {
	if len(s.timers) == 0 {
		return 0, false
	}
	return s.timers[0].due, true
}

type virtualTimer struct {
	s     *VirtualScheduler
	due   time.Duration
	order int64
	fn    func()
	index int // position in the heap, -1 once fired or stopped
}

// Stop removes the timer from the pending set.
func (t *virtualTimer) Stop() bool {
	if t.index < 0 {
		return false
	}
	heap.Remove(&t.s.timers, t.index)
	return true
}

// timerHeap orders timers by (due, order).
type timerHeap []*virtualTimer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].order < h[j].order
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*virtualTimer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
