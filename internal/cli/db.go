package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/nbsim/internal/store"
)

// openExistingStore opens a trace database that must already exist.
// store.Open would silently create an empty one.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// sessionNotFound reports an unknown session id.
func sessionNotFound(opts *RootOptions, cmd *cobra.Command, sessionID string) error {
	msg := fmt.Sprintf("session not found: %s", sessionID)
	_ = newFormatter(opts, cmd).Error(ErrCodeNotFound, msg, nil)
	return NewExitError(ExitCommandError, msg)
}
