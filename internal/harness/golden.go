package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/nbsim/internal/ir"
)

// goldenDir holds harness golden files, relative to the package under test.
const goldenDir = "testdata/golden"

// MarshalGolden renders a scenario's trace and final notebook as canonical
// JSON. Equal runs render byte-identical output.
func MarshalGolden(scenarioName string, result *Result) ([]byte, error) {
	events := make([]any, len(result.Trace))
	for i, e := range result.Trace {
		events[i] = e.CanonicalMap()
	}
	out, err := ir.MarshalCanonical(map[string]any{
		"scenario_name": scenarioName,
		"trace":         events,
		"final":         result.Final.CanonicalMap(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal golden for %q: %w", scenarioName, err)
	}
	return out, nil
}

// RunWithGolden runs scenario and checks its rendering against
// testdata/golden/<name>.golden. Pass -update to rewrite the file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden checks an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	out, err := MarshalGolden(scenarioName, result)
	if err != nil {
		return err
	}
	goldie.New(t,
		goldie.WithFixtureDir(goldenDir),
		goldie.WithNameSuffix(".golden"),
	).Assert(t, scenarioName, out)
	return nil
}
