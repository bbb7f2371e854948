package notebook

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/nbsim/internal/engine"
	"github.com/roach88/nbsim/internal/ir"
)

// DefaultUnitDelay is the simulated execution time of one cell.
const DefaultUnitDelay = time.Second

// Placeholder content of cells created by AddCell.
const (
	CodePlaceholder      = "# Enter your code here"
	NarrativePlaceholder = "## New markdown cell"
)

// WelcomeContent seeds a notebook created without cells.
const WelcomeContent = "# Welcome to the notebook\n\nThis is a narrative cell where you can write documentation."

// OutputFunc synthesizes the output of a completed code cell.
//
// cell is a copy taken when the run started, so content edits made while the
// cell was executing are not visible. runID is 0 for single-cell runs.
type OutputFunc func(cell ir.Cell, runID int64) string

// DefaultOutput produces the canned results of the notebook front-end.
func DefaultOutput(cell ir.Cell, runID int64) string {
	if runID == 0 {
		return "Execution result would appear here.\nIn a real application, this would be the output from the server."
	}
	return fmt.Sprintf("Execution result for %s would appear here.", cell.ID)
}

// Observer receives every transition of a notebook.
//
// OnEvent is called synchronously on the goroutine that owns the notebook,
// after the state change is applied. Observers may read the notebook but must
// not mutate it.
type Observer interface {
	OnEvent(ir.Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ir.Event)

// OnEvent calls f(e).
func (f ObserverFunc) OnEvent(e ir.Event) { f(e) }

// Option configures a Notebook.
type Option func(*Notebook)

// WithScheduler sets the scheduler used for simulated execution.
// Default: a fresh engine.VirtualScheduler.
func WithScheduler(s engine.Scheduler) Option {
	return func(n *Notebook) {
		n.sched = s
	}
}

// WithUnitDelay sets the simulated execution time of one cell.
// Non-positive values are ignored. Default: DefaultUnitDelay.
func WithUnitDelay(d time.Duration) Option {
	return func(n *Notebook) {
		if d > 0 {
			n.unit = d
		}
	}
}

// WithStopMode selects what StopAll does to pending completions.
// Default: ir.StopCancel.
func WithStopMode(m ir.StopMode) Option {
	return func(n *Notebook) {
		n.stopMode = m
	}
}

// WithIDGenerator sets the cell id generator. Default: NewSequenceIDs().
func WithIDGenerator(g IDGenerator) Option {
	return func(n *Notebook) {
		n.ids = g
	}
}

// WithOutputFunc replaces DefaultOutput.
func WithOutputFunc(f OutputFunc) Option {
	return func(n *Notebook) {
		n.output = f
	}
}

// WithObserver registers an observer. May be given more than once.
func WithObserver(o Observer) Option {
	return func(n *Notebook) {
		n.observers = append(n.observers, o)
	}
}

// WithCells seeds the notebook. Cells with an empty id get one from the id
// generator; Executing is always reset. Outputs are kept as given.
func WithCells(cells ...ir.Cell) Option {
	return func(n *Notebook) {
		n.seed = append(n.seed, cells...)
	}
}

// WithLogger sets the logger for ignored operations. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(n *Notebook) {
		n.logger = l
	}
}
