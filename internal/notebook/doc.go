// Package notebook implements the notebook execution simulator.
//
// A Notebook owns an ordered sequence of cells, tracks the active cell and
// the run-level status, and simulates execution without any interpreter:
// running a cell marks it executing and, one unit delay later, clears the
// flag and assigns canned output to code cells.
//
// Execution is driven by an engine.Scheduler. With engine.VirtualScheduler
// the whole simulation is deterministic and advanced explicitly:
//
//	sched := engine.NewVirtualScheduler()
//	nb, _ := notebook.New(notebook.WithScheduler(sched))
//	nb.RunAll()
//	sched.Advance(nb.UnitDelay()) // first cell completes
//
// Operations that cannot apply (unknown id, deleting the last cell) leave the
// notebook unchanged and return an *Error the caller is free to ignore.
//
// Every transition is reported to registered Observers as an ir.Event.
package notebook
