package cli

import (
	"errors"
	"fmt"

	"approval-tracker/backend/internal/services"
	"approval-tracker/backend/internal/workflow"
)

// Exit codes returned by trackerctl.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitRejected    = 2
	ExitNotFound    = 3
	ExitConflict    = 4
	ExitUnavailable = 5
)

// ExitError carries a process exit code out of a cobra RunE function so that
// commands never call os.Exit themselves.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewExitError creates an ExitError with the given exit code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// IsExitError reports the exit code of err when it is an ExitError.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// exitCodeFor classifies a tracker error.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, workflow.ErrOrderViolation),
		errors.Is(err, workflow.ErrInvalidProposal),
		errors.Is(err, services.ErrInvalidInput):
		return ExitRejected
	case errors.Is(err, services.ErrNotFound), errors.Is(err, workflow.ErrUnknownKind):
		return ExitNotFound
	case errors.Is(err, services.ErrDuplicateID):
		return ExitConflict
	case errors.Is(err, services.ErrPersistence):
		return ExitUnavailable
	default:
		return ExitFailure
	}
}
