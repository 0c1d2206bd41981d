package remote

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StatusError represents a non-2xx response from a remote service.
type StatusError struct {
	// Service is the name of the remote service
	Service string

	// StatusCode is the HTTP status code
	StatusCode int

	// Message is the (truncated) response body
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("service %q returned status %d: %s", e.Service, e.StatusCode, e.Message)
}

// Retryable reports whether the status is worth retrying.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 408
}

// TimeoutError represents a call that exceeded its deadline.
type TimeoutError struct {
	// Service is the name of the remote service
	Service string

	// Timeout is the configured per-call timeout (0 when the caller's
	// deadline expired first)
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("service %q request timeout after %s", e.Service, e.Timeout)
	}
	return fmt.Sprintf("service %q request deadline exceeded", e.Service)
}

// Unwrap lets errors.Is match context.DeadlineExceeded.
func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// TransportError represents a network-level failure (connection refused,
// reset, DNS).
type TransportError struct {
	// Service is the name of the remote service
	Service string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("service %q transport error: %v", e.Service, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// ParseError represents a response body that could not be decoded.
type ParseError struct {
	// Service is the name of the remote service
	Service string

	// RawResponse is the (truncated) body that failed to parse
	RawResponse string

	// Cause is the underlying parse error
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("service %q response parse error: %v", e.Service, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// IsTimeout reports whether err is a timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
