package notebook

import (
	"github.com/roach88/nbsim/internal/engine"
	"github.com/roach88/nbsim/internal/ir"
)

// runState is one run-all: a chain that completes the cells captured at
// start, one unit apart, in their start order.
type runState struct {
	id    int64
	order []ir.Cell // copies taken at run start
	next  int       // index into order of the next cell to complete
	timer engine.Timer
}

// RunCell simulates executing one cell.
//
// The cell is marked executing immediately. One unit later it stops
// executing and, if it is a code cell at that moment, receives output
// synthesized from its content at run start. A cell that is already
// executing (on its own or as part of a run-all) is left alone, so a cell
// never has two completions that can take effect.
func (n *Notebook) RunCell(id ir.CellID) error {
	cs, ok := n.byID[id]
	if !ok {
		n.logger.Debug("run ignored: no such cell", "cell", id)
		return notFound(id)
	}
	if cs.cell.Executing {
		n.logger.Debug("run ignored: cell already executing", "cell", id)
		return nil
	}

	cs.cell.Executing = true
	cs.owner = 0
	snapshot := cs.cell.Clone()
	n.emit(ir.Event{Type: ir.EventCellStarted, CellID: id, Kind: cs.cell.Kind})

	n.pending++
	cs.single = n.sched.AfterFunc(n.unit, func() {
		n.completeSingle(cs, snapshot)
	})
	return nil
}

func (n *Notebook) completeSingle(cs *cellState, snapshot ir.Cell) {
	n.pending--
	cs.single = nil
	if n.byID[snapshot.ID] != cs || !cs.cell.Executing || cs.owner != 0 {
		return
	}
	n.finishCell(cs, snapshot, 0)
}

// RunAll simulates executing every cell in sequence order.
//
// All cells are marked executing in one batch and the run status becomes
// running. The cell at position k then completes (k+1) units later, each
// completion scheduled from the previous one. When the last cell of the run
// completes, the status returns to idle.
//
// A run-all started while another is running first stops the current one
// (see StopAll). Pending single-cell completions are taken over by the run.
// Cells added after the start are not part of the run; cells deleted during
// it keep their time slot and are skipped. Returns the run id.
func (n *Notebook) RunAll() int64 {
	if n.current != nil {
		n.stopRun(n.current)
	}

	n.runSeq++
	r := &runState{id: n.runSeq, order: make([]ir.Cell, len(n.cells))}
	n.runs[r.id] = r

	for i, cs := range n.cells {
		if cs.single != nil && cs.single.Stop() {
			n.pending--
		}
		cs.single = nil
		cs.cell.Executing = true
		cs.owner = r.id
		r.order[i] = cs.cell.Clone()
	}

	n.current = r
	n.status = ir.StatusRunning
	n.emit(ir.Event{Type: ir.EventRunStarted, RunID: r.id})
	for _, c := range r.order {
		n.emit(ir.Event{Type: ir.EventCellStarted, CellID: c.ID, Kind: c.Kind, RunID: r.id})
	}

	n.scheduleNext(r)
	return r.id
}

func (n *Notebook) scheduleNext(r *runState) {
	n.pending++
	r.timer = n.sched.AfterFunc(n.unit, func() {
		n.advanceRun(r)
	})
}

// advanceRun completes the next cell of r and schedules the one after it.
func (n *Notebook) advanceRun(r *runState) {
	n.pending--
	r.timer = nil

	snapshot := r.order[r.next]
	r.next++
	if cs, ok := n.byID[snapshot.ID]; ok && cs.cell.Executing && cs.owner == r.id {
		n.finishCell(cs, snapshot, r.id)
	}

	if r.next < len(r.order) {
		n.scheduleNext(r)
		return
	}

	delete(n.runs, r.id)
	if n.current == r {
		n.current = nil
		n.status = ir.StatusIdle
		n.emit(ir.Event{Type: ir.EventRunFinished, RunID: r.id})
	}
}

// finishCell moves a cell out of the executing state and assigns output for
// code cells.
func (n *Notebook) finishCell(cs *cellState, snapshot ir.Cell, runID int64) {
	cs.cell.Executing = false
	cs.owner = 0

	var output *string
	if cs.cell.Kind == ir.KindCode {
		output = ir.StringPtr(n.output(snapshot, runID))
		cs.cell.Output = output
	}
	n.emit(ir.Event{
		Type:   ir.EventCellCompleted,
		CellID: cs.cell.ID,
		Kind:   cs.cell.Kind,
		Output: output,
		RunID:  runID,
	})
}

// StopAll stops the running run-all, if any, and reports whether one was
// running. The run status is idle afterwards.
//
// With ir.StopCancel the run's pending completion is cancelled and every
// cell it had not completed yet stops executing, without output. With
// ir.StopStatusOnly only the status changes; the run's cells keep
// completing on schedule.
func (n *Notebook) StopAll() bool {
	if n.current == nil {
		return false
	}
	n.stopRun(n.current)
	return true
}

func (n *Notebook) stopRun(r *runState) {
	if n.stopMode != ir.StopStatusOnly {
		if r.timer != nil && r.timer.Stop() {
			n.pending--
		}
		r.timer = nil
		delete(n.runs, r.id)

		for _, c := range r.order[r.next:] {
			cs, ok := n.byID[c.ID]
			if !ok || !cs.cell.Executing || cs.owner != r.id {
				continue
			}
			cs.cell.Executing = false
			cs.owner = 0
			n.emit(ir.Event{Type: ir.EventCellCancelled, CellID: c.ID, Kind: cs.cell.Kind, RunID: r.id})
		}
	}

	n.current = nil
	n.status = ir.StatusIdle
	n.emit(ir.Event{Type: ir.EventRunStopped, RunID: r.id})
}

// ActiveRuns returns the number of run-all chains that still have a pending
// completion. Only differs from 0/1 in StopStatusOnly mode.
func (n *Notebook) ActiveRuns() int {
	return len(n.runs)
}
