package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/nbsim/internal/ir"
)

// Op names a notebook operation.
type Op string

const (
	OpAddCell    Op = "add_cell"
	OpDeleteCell Op = "delete_cell"
	OpSetContent Op = "set_content"
	OpSetKind    Op = "set_kind"
	OpSetActive  Op = "set_active"
	OpRunCell    Op = "run_cell"
	OpRunAll     Op = "run_all"
	OpStopAll    Op = "stop_all"
)

// ErrUnknownOp is returned for commands whose Op is not one of the Op constants.
var ErrUnknownOp = errors.New("unknown operation")

// Valid reports whether op is a known operation.
func (op Op) Valid() bool {
	switch op {
	case OpAddCell, OpDeleteCell, OpSetContent, OpSetKind, OpSetActive, OpRunCell, OpRunAll, OpStopAll:
		return true
	}
	return false
}

// NeedsCell reports whether op addresses an existing cell.
func (op Op) NeedsCell() bool {
	switch op {
	case OpDeleteCell, OpSetContent, OpSetKind, OpSetActive, OpRunCell:
		return true
	}
	return false
}

// Command is one operation submitted to a notebook.
//
// Seq, At and After are stamped by the session when the command is applied.
// After is the number of notebook events emitted before the command, which
// pins its position relative to scheduled completions for replay.
type Command struct {
	Seq    int64         `yaml:"-" json:"seq,omitempty"`
	At     time.Duration `yaml:"-" json:"at,omitempty"`
	After  int64         `yaml:"-" json:"after,omitempty"`
	Op     Op            `yaml:"op" json:"op"`
	CellID ir.CellID     `yaml:"cell,omitempty" json:"cell,omitempty"`
	Kind   ir.CellKind   `yaml:"kind,omitempty" json:"kind,omitempty"`
	Text   string        `yaml:"text,omitempty" json:"text,omitempty"`
}

func (c Command) String() string {
	var b strings.Builder
	b.WriteString(string(c.Op))
	if c.CellID != "" {
		b.WriteString(" ")
		b.WriteString(string(c.CellID))
	}
	if c.Kind != "" {
		b.WriteString(" ")
		b.WriteString(string(c.Kind))
	}
	if c.Op == OpSetContent {
		b.WriteString(" ")
		b.WriteString(strconv.Quote(c.Text))
	}
	return b.String()
}

// verbs maps REPL words to operations.
var verbs = map[string]Op{
	"add":         OpAddCell,
	"add_cell":    OpAddCell,
	"delete":      OpDeleteCell,
	"rm":          OpDeleteCell,
	"delete_cell": OpDeleteCell,
	"edit":        OpSetContent,
	"set_content": OpSetContent,
	"kind":        OpSetKind,
	"set_kind":    OpSetKind,
	"focus":       OpSetActive,
	"set_active":  OpSetActive,
	"run":         OpRunCell,
	"run_cell":    OpRunCell,
	"runall":      OpRunAll,
	"run-all":     OpRunAll,
	"run_all":     OpRunAll,
	"stop":        OpStopAll,
	"stop_all":    OpStopAll,
}

// Parse reads a command from one REPL line:
//
//	add [code|narrative]
//	delete <cell>
//	edit <cell> <text>      text runs to the end of the line; a Go-quoted
//	                        string may be used for newlines
//	kind <cell> <code|narrative>
//	focus <cell>
//	run <cell>
//	runall
//	stop
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	verb, rest, _ := strings.Cut(line, " ")
	op, ok := verbs[strings.ToLower(verb)]
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownOp, verb)
	}
	rest = strings.TrimSpace(rest)
	cmd := Command{Op: op}

	switch op {
	case OpAddCell:
		cmd.Kind = ir.KindCode
		if rest != "" {
			kind, err := ir.ParseCellKind(rest)
			if err != nil {
				return Command{}, err
			}
			cmd.Kind = kind
		}
	case OpRunAll, OpStopAll:
		if rest != "" {
			return Command{}, fmt.Errorf("%s takes no arguments", verb)
		}
	case OpSetContent:
		id, text, _ := strings.Cut(rest, " ")
		if id == "" {
			return Command{}, fmt.Errorf("usage: %s <cell> <text>", verb)
		}
		cmd.CellID = ir.CellID(id)
		text = strings.TrimSpace(text)
		if strings.HasPrefix(text, `"`) {
			unquoted, err := strconv.Unquote(text)
			if err != nil {
				return Command{}, fmt.Errorf("bad quoted text: %w", err)
			}
			text = unquoted
		}
		cmd.Text = text
	case OpSetKind:
		fields := strings.Fields(rest)
		if len(fields) != 2 {
			return Command{}, fmt.Errorf("usage: %s <cell> <code|narrative>", verb)
		}
		kind, err := ir.ParseCellKind(fields[1])
		if err != nil {
			return Command{}, err
		}
		cmd.CellID = ir.CellID(fields[0])
		cmd.Kind = kind
	default:
		fields := strings.Fields(rest)
		if len(fields) != 1 {
			return Command{}, fmt.Errorf("usage: %s <cell>", verb)
		}
		cmd.CellID = ir.CellID(fields[0])
	}
	return cmd, nil
}
