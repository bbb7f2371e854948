package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/nbsim/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name      string   `json:"name"`
	Pass      bool     `json:"pass"`
	Events    int      `json:"events"`
	TraceHash string   `json:"trace_hash,omitempty"`
	Golden    string   `json:"golden,omitempty"` // "match", "updated" or "" when absent
	Errors    []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run harness scenarios",
		Long: `Run notebook scenarios in virtual time.

Each scenario seeds a notebook, applies its steps, checks step
expectations and assertions, and verifies that the recorded session
replays to the same trace. When <scenarios-dir>/golden/<name>.golden
exists the trace and final state must also match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  nbsim test ./testdata/scenarios
  nbsim test ./testdata/scenarios --filter "stop_*"
  nbsim test ./testdata/scenarios --update
  nbsim test ./testdata/scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	info, err := os.Stat(scenariosDir)
	if err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, opts.RootOptions, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}

	for _, scenarioFile := range scenarioFiles {
		scenResult := runScenario(scenarioFile, scenariosDir, opts)
		if opts.Format != "json" {
			printScenarioResult(cmd, scenResult)
		}
		result.Scenarios = append(result.Scenarios, scenResult)

		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, opts.RootOptions, result)
	}
	return outputTestText(cmd, result)
}

// findScenarioFiles finds the YAML scenario files directly inside dir.
// Subdirectories (such as golden/) are not searched.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if filter != "" {
			name := strings.TrimSuffix(entry.Name(), ext)
			if matched, _ := filepath.Match(filter, name); !matched {
				continue
			}
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}

// runScenario executes a single scenario and returns the result.
func runScenario(scenarioFile, scenariosDir string, opts *TestOptions) ScenarioResult {
	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(scenarioFile),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return ScenarioResult{
			Name:   scenario.Name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	scenResult := ScenarioResult{
		Name:      scenario.Name,
		Pass:      result.Pass,
		Events:    len(result.Trace),
		TraceHash: result.TraceHash,
		Errors:    result.Errors,
	}

	goldenPath := goldenFilePath(scenariosDir, scenario.Name)
	golden, err := harness.MarshalGolden(scenario.Name, result)
	if err != nil {
		scenResult.Pass = false
		scenResult.Errors = append(scenResult.Errors, fmt.Sprintf("failed to marshal trace: %v", err))
		return scenResult
	}

	if opts.Update {
		if err := writeGoldenFile(goldenPath, golden); err != nil {
			scenResult.Pass = false
			scenResult.Errors = append(scenResult.Errors, fmt.Sprintf("failed to update golden file: %v", err))
			return scenResult
		}
		scenResult.Golden = "updated"
		return scenResult
	}

	want, err := os.ReadFile(goldenPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// No golden file - assertions only
	case err != nil:
		scenResult.Pass = false
		scenResult.Errors = append(scenResult.Errors, fmt.Sprintf("failed to read golden file: %v", err))
	case !bytes.Equal(want, golden):
		scenResult.Pass = false
		scenResult.Errors = append(scenResult.Errors, "trace does not match golden file (run with --update to regenerate)")
	default:
		scenResult.Golden = "match"
	}
	return scenResult
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenariosDir, name string) string {
	return filepath.Join(scenariosDir, "golden", name+".golden")
}

// writeGoldenFile writes the current trace as the golden file.
func writeGoldenFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func printScenarioResult(cmd *cobra.Command, r ScenarioResult) {
	w := cmd.OutOrStdout()
	if !r.Pass {
		fmt.Fprintf(w, "✗ %s\n", r.Name)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return
	}
	switch r.Golden {
	case "updated":
		fmt.Fprintf(w, "✓ %s (golden updated)\n", r.Name)
	case "match":
		fmt.Fprintf(w, "✓ %s (%d events, golden match)\n", r.Name, r.Events)
	default:
		fmt.Fprintf(w, "✓ %s (%d events)\n", r.Name, r.Events)
	}
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(cmd *cobra.Command, opts *RootOptions, result TestResult) error {
	formatter := newFormatter(opts, cmd)
	if result.Failed == 0 {
		return formatter.Success(result)
	}
	msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
	if err := formatter.Failure(ErrCodeTestFailed, msg, result); err != nil {
		return err
	}
	return NewExitError(ExitFailure, msg)
}

// outputTestText outputs the test summary as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
