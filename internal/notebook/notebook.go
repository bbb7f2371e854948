package notebook

import (
	"log/slog"
	"time"

	"github.com/roach88/nbsim/internal/engine"
	"github.com/roach88/nbsim/internal/ir"
)

// cellState is a cell plus its execution bookkeeping.
type cellState struct {
	cell ir.Cell

	// owner is the run-all that set Executing, 0 for a single-cell run.
	owner int64

	// single is the pending completion of a single-cell run, if any.
	single engine.Timer
}

// Notebook is an ordered sequence of cells with simulated execution.
//
// INVARIANTS:
//   - The sequence is never empty
//   - The active id always names a cell in the sequence
//   - Cell ids are unique for the notebook's lifetime and never reused
//   - A cell has at most one completion that can take effect
//
// Thread-safety: none. A Notebook is owned by one goroutine, which is also
// the goroutine its Scheduler delivers callbacks on (see package engine).
type Notebook struct {
	cells  []*cellState
	byID   map[ir.CellID]*cellState
	active ir.CellID
	status ir.RunStatus

	// current owns the run status. runs holds every chain with a pending
	// completion, which in StopStatusOnly mode may include stopped runs.
	current *runState
	runs    map[int64]*runState
	runSeq  int64
	pending int

	sched     engine.Scheduler
	unit      time.Duration
	stopMode  ir.StopMode
	ids       IDGenerator
	output    OutputFunc
	observers []Observer
	events    *engine.Clock
	logger    *slog.Logger
	seed      []ir.Cell
}

// New creates a notebook. Without WithCells it holds a single narrative
// welcome cell. The first cell is active and the run status is idle.
func New(opts ...Option) (*Notebook, error) {
	n := &Notebook{
		byID:     make(map[ir.CellID]*cellState),
		status:   ir.StatusIdle,
		runs:     make(map[int64]*runState),
		unit:     DefaultUnitDelay,
		stopMode: ir.StopCancel,
		output:   DefaultOutput,
		events:   engine.NewClock(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.sched == nil {
		n.sched = engine.NewVirtualScheduler()
	}
	if n.ids == nil {
		n.ids = NewSequenceIDs()
	}

	seed := n.seed
	n.seed = nil
	if len(seed) == 0 {
		seed = []ir.Cell{{Kind: ir.KindNarrative, Content: WelcomeContent}}
	}

	// Reserve explicit ids first so generated ones cannot collide with them.
	if r, ok := n.ids.(reserver); ok {
		for _, c := range seed {
			if c.ID != "" {
				r.Reserve(c.ID)
			}
		}
	}
	for _, c := range seed {
		if !c.Kind.Valid() {
			return nil, invalidKind(c.Kind)
		}
		c = c.Clone()
		c.Executing = false
		if c.ID == "" {
			c.ID = n.newID()
		}
		if _, dup := n.byID[c.ID]; dup {
			return nil, &Error{Code: ErrCodeDuplicateID, Message: "duplicate seed cell id", CellID: c.ID}
		}
		cs := &cellState{cell: c}
		n.cells = append(n.cells, cs)
		n.byID[c.ID] = cs
	}
	n.active = n.cells[0].cell.ID

	return n, nil
}

// newID draws ids until one is unused.
func (n *Notebook) newID() ir.CellID {
	for {
		id := n.ids.NextID()
		if _, taken := n.byID[id]; !taken {
			return id
		}
	}
}

// Len returns the number of cells.
func (n *Notebook) Len() int {
	return len(n.cells)
}

// Cells returns copies of all cells in sequence order.
func (n *Notebook) Cells() []ir.Cell {
	out := make([]ir.Cell, len(n.cells))
	for i, cs := range n.cells {
		out[i] = cs.cell.Clone()
	}
	return out
}

// Cell returns a copy of the cell with the given id.
func (n *Notebook) Cell(id ir.CellID) (ir.Cell, bool) {
	cs, ok := n.byID[id]
	if !ok {
		return ir.Cell{}, false
	}
	return cs.cell.Clone(), true
}

// ActiveID returns the id of the focused cell.
func (n *Notebook) ActiveID() ir.CellID {
	return n.active
}

// Status returns the run-level status.
func (n *Notebook) Status() ir.RunStatus {
	return n.status
}

// Pending returns the number of scheduled completions that have neither
// fired nor been cancelled. A run-all counts as one (its chain).
func (n *Notebook) Pending() int {
	return n.pending
}

// UnitDelay returns the simulated execution time of one cell.
func (n *Notebook) UnitDelay() time.Duration {
	return n.unit
}

// Scheduler returns the scheduler driving simulated execution.
func (n *Notebook) Scheduler() engine.Scheduler {
	return n.sched
}

// Snapshot returns a copy of the whole observable state.
func (n *Notebook) Snapshot() ir.Snapshot {
	return ir.Snapshot{
		Cells:    n.Cells(),
		ActiveID: n.active,
		Status:   n.status,
	}
}

// AddCell appends a cell of the given kind with placeholder content and
// makes it active. It fails only for an invalid kind.
func (n *Notebook) AddCell(kind ir.CellKind) (ir.CellID, error) {
	if !kind.Valid() {
		return "", invalidKind(kind)
	}
	content := NarrativePlaceholder
	if kind == ir.KindCode {
		content = CodePlaceholder
	}

	cs := &cellState{cell: ir.Cell{ID: n.newID(), Kind: kind, Content: content}}
	n.cells = append(n.cells, cs)
	n.byID[cs.cell.ID] = cs

	n.emit(ir.Event{Type: ir.EventCellAdded, CellID: cs.cell.ID, Kind: kind, Content: ir.StringPtr(content)})
	n.setActive(cs.cell.ID)
	return cs.cell.ID, nil
}

// DeleteCell removes a cell. Deleting the only cell is rejected.
//
// On success the active cell moves to the cell that preceded the deleted
// one, or to the new first cell if the deleted cell was first. A pending
// single-cell completion of the deleted cell is cancelled; a pending run-all
// keeps its time slot and skips it.
func (n *Notebook) DeleteCell(id ir.CellID) error {
	cs, ok := n.byID[id]
	if !ok {
		n.logger.Debug("delete ignored: no such cell", "cell", id)
		return notFound(id)
	}
	if len(n.cells) == 1 {
		n.logger.Debug("delete ignored: last cell", "cell", id)
		return lastCell(id)
	}

	idx := n.index(id)
	n.cells = append(n.cells[:idx:idx], n.cells[idx+1:]...)
	delete(n.byID, id)
	if cs.single != nil && cs.single.Stop() {
		n.pending--
	}
	cs.single = nil

	n.emit(ir.Event{Type: ir.EventCellDeleted, CellID: id, Kind: cs.cell.Kind})
	n.setActive(n.cells[max(0, idx-1)].cell.ID)
	return nil
}

// SetContent replaces a cell's content. Allowed at any time, including while
// the cell executes.
func (n *Notebook) SetContent(id ir.CellID, text string) error {
	cs, ok := n.byID[id]
	if !ok {
		return notFound(id)
	}
	cs.cell.Content = text
	n.emit(ir.Event{Type: ir.EventContentChanged, CellID: id, Kind: cs.cell.Kind, Content: ir.StringPtr(text)})
	return nil
}

// SetKind changes a cell's kind in place. Content and output are kept.
func (n *Notebook) SetKind(id ir.CellID, kind ir.CellKind) error {
	if !kind.Valid() {
		return invalidKind(kind)
	}
	cs, ok := n.byID[id]
	if !ok {
		return notFound(id)
	}
	if cs.cell.Kind == kind {
		return nil
	}
	cs.cell.Kind = kind
	n.emit(ir.Event{Type: ir.EventKindChanged, CellID: id, Kind: kind})
	return nil
}

// SetActive focuses a cell.
func (n *Notebook) SetActive(id ir.CellID) error {
	if _, ok := n.byID[id]; !ok {
		return notFound(id)
	}
	n.setActive(id)
	return nil
}

func (n *Notebook) setActive(id ir.CellID) {
	if n.active == id {
		return
	}
	n.active = id
	n.emit(ir.Event{Type: ir.EventActiveChanged, CellID: id})
}

func (n *Notebook) index(id ir.CellID) int {
	for i, cs := range n.cells {
		if cs.cell.ID == id {
			return i
		}
	}
	return -1
}

// emit stamps an event and delivers it to every observer. Every event takes
// a sequence number, observed or not.
func (n *Notebook) emit(e ir.Event) {
	e.Seq = n.events.Next()
	e.At = n.sched.Now()
	for _, o := range n.observers {
		o.OnEvent(e)
	}
}
