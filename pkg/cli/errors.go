package cli

import (
	"errors"
	"fmt"

	"mercator-hq/reportkeeper/pkg/report"
)

// Process exit codes.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitConfig    = 2
	ExitNotFound  = 3
	ExitForbidden = 4
	ExitConflict  = 5
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	var cfgErr *ConfigError

	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &cfgErr):
		return ExitConfig
	case errors.Is(err, report.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, report.ErrForbidden):
		return ExitForbidden
	case errors.Is(err, report.ErrInvalidTransition),
		errors.Is(err, report.ErrNotDeleted),
		errors.Is(err, report.ErrRecoveryWindowExpired),
		errors.Is(err, report.ErrAlreadyExists),
		errors.Is(err, report.ErrRunInProgress):
		return ExitConflict
	default:
		return ExitFailure
	}
}
