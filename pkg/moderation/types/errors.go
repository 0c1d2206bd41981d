package types

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyText is returned when a request carries no moderatable text.
	ErrEmptyText = errors.New("empty text")

	// ErrTextTooLong is returned when a request exceeds the configured length.
	ErrTextTooLong = errors.New("text too long")
)

// ValidationError is the only core error surfaced to callers. It marks a
// structurally invalid request.
type ValidationError struct {
	// Field is the offending request field.
	Field string

	// Message describes the problem.
	Message string

	// Err is the sentinel cause (ErrEmptyText, ErrTextTooLong).
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %q: %s", e.Field, e.Message)
}

// Unwrap returns the sentinel cause.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
