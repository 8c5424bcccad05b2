package cli

import (
	"errors"
	"fmt"

	"github.com/yourorg/hubsync/internal/types"
)

// Exit codes for devsync commands.
const (
	ExitSuccess      = 0   // run reached Done
	ExitFailure      = 1   // run aborted: job failure or transport error
	ExitCommandError = 2   // bad flags or configuration
	ExitInterrupted  = 130 // aborted by caller (SIGINT/SIGTERM)
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from err. Nil is success; errors
// without a code are failures.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// outcomeExit maps a run outcome onto an exit code.
func outcomeExit(o types.Outcome) int {
	switch o {
	case types.OutcomeSucceeded:
		return ExitSuccess
	case types.OutcomeAbortedByCaller:
		return ExitInterrupted
	default:
		return ExitFailure
	}
}
