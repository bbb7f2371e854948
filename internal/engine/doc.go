// Package engine provides the execution substrate of the notebook simulator:
// a logical clock, a single-writer task loop, and the Scheduler abstraction
// used for simulated cell execution.
//
// ARCHITECTURE:
//
// Single-Writer Loop:
// A notebook is never touched by two goroutines. In real-time sessions the
// Loop goroutine owns it; commands from other goroutines are submitted as
// tasks (Loop.Do) and timer expiries are delivered as tasks too. This ensures:
// - No locks around notebook state
// - Completions and commands interleave in one well-defined order
// - Simple reasoning about causality
//
// Scheduled Callbacks:
// Simulated execution is a callback scheduled after a fixed delay. Every
// scheduled callback returns a Timer whose Stop is authoritative: once Stop
// returns true the callback will not run. Two implementations exist:
// - VirtualScheduler: deterministic, advanced explicitly (tests, harness, replay)
// - RealtimeScheduler: wall-clock timers delivering into a Loop (CLI sessions)
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Event ordering uses seq numbers from Clock.Next(), never wall-clock time.
//
// Deterministic Scheduling:
// VirtualScheduler fires callbacks by (due time, schedule order). No
// randomness, no concurrency, no non-determinism.
package engine
