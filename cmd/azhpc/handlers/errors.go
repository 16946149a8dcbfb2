package handlers

import (
	"errors"

	"github.com/imamik/azhpc/internal/config"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2
)

// ExitError carries the exit code of a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error returned by a handler to the process exit code.
// Configuration problems exit with ExitConfig, everything else with ExitFailure.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var validationErr *config.ValidationError
	if errors.As(err, &validationErr) {
		return ExitConfig
	}
	return ExitFailure
}
