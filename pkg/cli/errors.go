package cli

import (
	"errors"
	"fmt"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2
	ExitBlocked = 3
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config error: %s", e.Message)
	}
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

// ThresholdError is returned when a moderated text reaches the action the
// caller asked to fail on.
type ThresholdError struct {
	Action string
	Count  int
}

func (e *ThresholdError) Error() string {
	if e.Count == 1 {
		return fmt.Sprintf("text reached action %q", e.Action)
	}
	return fmt.Sprintf("%d texts reached action %q", e.Count, e.Action)
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

// ExitCode maps err to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var te *ThresholdError
	if errors.As(err, &te) {
		return ExitBlocked
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ExitConfig
	}
	return ExitFailure
}
