package engine

import "sync/atomic"

// Clock hands out strictly increasing sequence numbers starting at 1.
//
// Notebooks stamp events with it, sequential cell ids are drawn from it,
// and the virtual scheduler uses it to break ties between timers due at
// the same instant. None of these read wall-clock time, so a replayed
// session numbers everything the same way.
//
// The zero value is ready to use.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first Next is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Last returns the most recent value handed out, or 0.
func (c *Clock) Last() int64 {
	return c.seq.Load()
}

// AdvanceTo moves the clock forward so the next value exceeds n.
// A clock already past n is left alone.
func (c *Clock) AdvanceTo(n int64) {
	for {
		cur := c.seq.Load()
		if cur >= n || c.seq.CompareAndSwap(cur, n) {
			return
		}
	}
}
