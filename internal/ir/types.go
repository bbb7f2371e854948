package ir

import (
	"fmt"
	"strings"
)

// CellKind distinguishes executable cells from documentation cells.
type CellKind string

const (
	// KindCode is a cell whose content is simulated as executable.
	KindCode CellKind = "code"
	// KindNarrative is a documentation cell. It never produces output.
	KindNarrative CellKind = "narrative"
)

// kindAliases maps accepted spellings to canonical kinds.
// "markdown" is what notebook front-ends usually call narrative cells.
var kindAliases = map[string]CellKind{
	"code":      KindCode,
	"narrative": KindNarrative,
	"markdown":  KindNarrative,
}

// ParseCellKind parses a kind name, case-insensitively.
func ParseCellKind(s string) (CellKind, error) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("invalid cell kind %q: must be code or narrative", s)
	}
	return k, nil
}

// Valid reports whether k is one of the canonical kinds.
func (k CellKind) Valid() bool {
	return k == KindCode || k == KindNarrative
}

// CellID identifies a cell for the lifetime of its notebook.
type CellID string

// RunStatus is the run-level status of a notebook.
type RunStatus string

const (
	StatusIdle    RunStatus = "idle"
	StatusRunning RunStatus = "running"
)

// StopMode selects what stopping a run-all does to its pending completions.
type StopMode string

const (
	// StopCancel cancels every pending completion of the run and clears the
	// executing flag of cells that had not completed yet.
	StopCancel StopMode = "cancel"

	// StopStatusOnly only resets the run status. Completions already
	// scheduled still fire.
	StopStatusOnly StopMode = "status_only"
)

// ParseStopMode parses a stop mode name. Empty means StopCancel.
func ParseStopMode(s string) (StopMode, error) {
	switch StopMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", StopCancel:
		return StopCancel, nil
	case StopStatusOnly:
		return StopStatusOnly, nil
	default:
		return "", fmt.Errorf("invalid stop mode %q: must be %s or %s", s, StopCancel, StopStatusOnly)
	}
}

// Cell is one unit of notebook content.
type Cell struct {
	ID        CellID   `json:"id"`
	Kind      CellKind `json:"kind"`
	Content   string   `json:"content"`
	Executing bool     `json:"executing"`
	Output    *string  `json:"output,omitempty"` // nil until a code run completes
}

// HasOutput reports whether the cell carries output.
func (c Cell) HasOutput() bool {
	return c.Output != nil
}

// Clone returns a deep copy of the cell.
// The output pointer is not shared with the receiver.
func (c Cell) Clone() Cell {
	if c.Output != nil {
		out := *c.Output
		c.Output = &out
	}
	return c
}

// Snapshot is a read-only view of a notebook at one point in time.
type Snapshot struct {
	Cells    []Cell    `json:"cells"`
	ActiveID CellID    `json:"active_id"`
	Status   RunStatus `json:"status"`
}

// Index returns the position of id in the snapshot, or -1.
func (s Snapshot) Index(id CellID) int {
	for i, c := range s.Cells {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
