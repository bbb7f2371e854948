package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/nbsim/internal/document"
	"github.com/roach88/nbsim/internal/ir"
	"github.com/roach88/nbsim/internal/session"
)

// Scenario defines a notebook test scenario.
// Scenarios drive a notebook through a list of steps in virtual time and
// assert on the resulting event trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It is also the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Notebook is the seed document, given inline.
	Notebook *document.Document `yaml:"notebook,omitempty"`

	// Document is a path to a seed document (.yaml or .cue), relative to
	// the scenario file. Exactly one of Notebook and Document is required.
	Document string `yaml:"document,omitempty"`

	// Steps are executed in order. Virtual time only moves on advance,
	// advance_units and settle steps.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count,
	// completion_order, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scenario step: a notebook command or a movement of virtual time.
type Step struct {
	// Command fields (op, cell, kind, text) are inlined.
	session.Command `yaml:",inline"`

	// Advance moves virtual time by a duration string ("1s", "250ms").
	Advance string `yaml:"advance,omitempty"`

	// AdvanceUnits moves virtual time by a multiple of the unit delay.
	AdvanceUnits int `yaml:"advance_units,omitempty"`

	// Settle fires every pending completion.
	Settle bool `yaml:"settle,omitempty"`

	// Expect is checked right after the step.
	Expect *StepExpect `yaml:"expect,omitempty"`
}

// kind describes what the step does, for messages.
func (s Step) kind() string {
	switch {
	case s.Op != "":
		return string(s.Op)
	case s.Advance != "":
		return "advance " + s.Advance
	case s.AdvanceUnits != 0:
		return fmt.Sprintf("advance_units %d", s.AdvanceUnits)
	case s.Settle:
		return "settle"
	}
	return "empty step"
}

// StepExpect checks the outcome of a single step.
type StepExpect struct {
	// Error is the expected notebook error code of a command step:
	// "not_found", "last_cell" or "invalid_kind". Empty means success.
	Error string `yaml:"error,omitempty"`

	// State is checked against the notebook after the step.
	StateExpect `yaml:",inline"`
}

// StateExpect is a subset match on a notebook snapshot.
// Zero values are not checked.
type StateExpect struct {
	Status    string                `yaml:"status,omitempty"`
	Active    string                `yaml:"active,omitempty"`
	CellCount int                   `yaml:"cell_count,omitempty"`
	Order     []string              `yaml:"order,omitempty"`
	Cells     map[string]CellExpect `yaml:"cells,omitempty"`
}

// CellExpect is a subset match on one cell. Nil fields are not checked.
// HasOutput false asserts that the cell has no output at all.
type CellExpect struct {
	Exists    *bool   `yaml:"exists,omitempty"`
	Kind      string  `yaml:"kind,omitempty"`
	Content   *string `yaml:"content,omitempty"`
	Executing *bool   `yaml:"executing,omitempty"`
	Output    *string `yaml:"output,omitempty"`
	HasOutput *bool   `yaml:"has_output,omitempty"`
}

func (e StateExpect) empty() bool {
	return e.Status == "" && e.Active == "" && e.CellCount == 0 && len(e.Order) == 0 && len(e.Cells) == 0
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event of Event type (for Cell) is in the trace
	// - "trace_order": Events appear in order, not necessarily adjacent
	// - "trace_count": Event (for Cell) appears exactly Count times
	// - "completion_order": cells completed exactly in the order of Cells
	// - "final_state": the final snapshot matches State
	Type string `yaml:"type"`

	// Event is an event type, e.g. "cell_completed".
	Event string `yaml:"event,omitempty"`

	// Cell narrows Event to one cell.
	Cell string `yaml:"cell,omitempty"`

	// Output is the expected output of a matching event (trace_contains).
	Output *string `yaml:"output,omitempty"`

	// Events lists event keys for trace_order: "type" or "type:cell".
	Events []string `yaml:"events,omitempty"`

	// Cells lists cell ids for completion_order.
	Cells []string `yaml:"cells,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// State is the expected final state (final_state).
	State *StateExpect `yaml:"state,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains   = "trace_contains"
	AssertTraceOrder      = "trace_order"
	AssertTraceCount      = "trace_count"
	AssertCompletionOrder = "completion_order"
	AssertFinalState      = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A document path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Document != "" && !filepath.IsAbs(scenario.Document) {
		scenario.Document = filepath.Join(filepath.Dir(path), scenario.Document)
	}
	if scenario.Document != "" {
		if _, err := os.Stat(scenario.Document); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: document not found: %s", scenario.Document)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if (s.Notebook == nil) == (s.Document == "") {
		return fmt.Errorf("exactly one of notebook and document is required")
	}
	if s.Notebook != nil {
		if err := document.Validate(s.Notebook); err != nil {
			return fmt.Errorf("notebook: %w", err)
		}
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(step Step) error {
	set := 0
	if step.Op != "" {
		set++
	}
	if step.Advance != "" {
		set++
	}
	if step.AdvanceUnits != 0 {
		set++
	}
	if step.Settle {
		set++
	}
	if set != 1 {
		return fmt.Errorf("exactly one of op, advance, advance_units and settle is required")
	}

	switch {
	case step.Op != "":
		if !step.Op.Valid() {
			return fmt.Errorf("unknown op %q", step.Op)
		}
		if step.Op.NeedsCell() && step.CellID == "" {
			return fmt.Errorf("%s: cell is required", step.Op)
		}
		if step.Op == session.OpSetKind && step.Kind == "" {
			return fmt.Errorf("set_kind: kind is required")
		}
	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("advance: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("advance must not be negative")
		}
	case step.AdvanceUnits < 0:
		return fmt.Errorf("advance_units must not be negative")
	}

	if step.Expect != nil {
		if step.Op == "" && step.Expect.Error != "" {
			return fmt.Errorf("expect.error is only valid on command steps")
		}
		if err := validateErrorCode(step.Expect.Error); err != nil {
			return err
		}
		if err := validateStateExpect(step.Expect.StateExpect); err != nil {
			return fmt.Errorf("expect: %w", err)
		}
	}
	return nil
}

func validateErrorCode(code string) error {
	switch code {
	case "", "not_found", "last_cell", "invalid_kind":
		return nil
	}
	return fmt.Errorf("unknown expected error %q (want not_found, last_cell or invalid_kind)", code)
}

func validateStateExpect(e StateExpect) error {
	switch ir.RunStatus(e.Status) {
	case "", ir.StatusIdle, ir.StatusRunning:
	default:
		return fmt.Errorf("unknown status %q", e.Status)
	}
	if e.CellCount < 0 {
		return fmt.Errorf("cell_count must be non-negative")
	}
	for id, c := range e.Cells {
		if c.Kind != "" {
			if _, err := ir.ParseCellKind(c.Kind); err != nil {
				return fmt.Errorf("cells[%s]: %w", id, err)
			}
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
		for _, key := range a.Events {
			if typ, _, _ := strings.Cut(key, ":"); typ == "" {
				return fmt.Errorf("assertions[%d]: empty event type in %q", index, key)
			}
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertCompletionOrder:
		if a.Cells == nil {
			return fmt.Errorf("assertions[%d]: cells list is required for completion_order", index)
		}
	case AssertFinalState:
		if a.State == nil || a.State.empty() {
			return fmt.Errorf("assertions[%d]: state is required for final_state", index)
		}
		if err := validateStateExpect(*a.State); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
