package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions are the flags shared by every subcommand.
type RootOptions struct {
	Verbose bool
	Format  string
}

// ValidFormats lists the accepted --format values.
var ValidFormats = []string{"text", "json"}

// NewRootCommand builds the nbsim command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "nbsim",
		Short: "nbsim - notebook execution simulator",
		Long: `Simulate a notebook's cells, execution and run state.

Cells are executed in simulated time: a single run completes one unit
after it starts, and run-all completes cell k after k+1 units. Sessions
can be recorded to SQLite and replayed deterministically.`,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")

	for _, sub := range []func(*RootOptions) *cobra.Command{
		NewValidateCommand,
		NewRunCommand,
		NewReplayCommand,
		NewTestCommand,
		NewTraceCommand,
	} {
		cmd.AddCommand(sub(opts))
	}

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
