package harness

import (
	"fmt"

	"github.com/roach88/nbsim/internal/ir"
)

// Result is what a scenario run produced.
type Result struct {
	// Pass is false once any step expectation, assertion or the replay
	// check has failed.
	Pass bool `json:"pass"`

	Trace  []ir.Event  `json:"trace"`
	Final  ir.Snapshot `json:"final"`
	Errors []string    `json:"errors,omitempty"`

	// TraceHash identifies Trace; equal traces hash equally.
	TraceHash string `json:"trace_hash"`
}

// NewResult returns a passing result with no events.
func NewResult() *Result {
	return &Result{Pass: true, Trace: []ir.Event{}, Errors: []string{}}
}

// AddError records a failure.
func (r *Result) AddError(msg string) {
	r.Pass = false
	r.Errors = append(r.Errors, msg)
}

// Failf records a formatted failure.
func (r *Result) Failf(format string, args ...any) {
	r.AddError(fmt.Sprintf(format, args...))
}
