package engine

import "time"

// Timer is a handle on a scheduled callback.
type Timer interface {
	// Stop prevents the callback from running.
	// Returns true if the call stopped the timer, false if the callback
	// already ran (or is guaranteed to run) or the timer was stopped before.
	Stop() bool
}

// Scheduler runs callbacks after a delay.
//
// Implementations guarantee that callbacks run on the goroutine that owns
// the scheduled-for state: the caller of Advance for VirtualScheduler, the
// loop goroutine for RealtimeScheduler. Callbacks never run concurrently with
// each other.
type Scheduler interface {
	// Now returns the scheduler's current offset from its origin.
	Now() time.Duration

	// AfterFunc schedules fn to run once, d after Now.
	// A non-positive d schedules fn for the current instant; it still runs
	// asynchronously, never inside AfterFunc.
	AfterFunc(d time.Duration, fn func()) Timer
}
