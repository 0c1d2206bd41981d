package types

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Request is a moderation request. It is immutable once created.
type Request struct {
	text             string
	requestID        string
	declaredLanguage string
}

// NewRequest creates a request. A random request ID is generated when
// requestID is empty.
func NewRequest(text, requestID, declaredLanguage string) Request {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return Request{
		text:             text,
		requestID:        requestID,
		declaredLanguage: strings.TrimSpace(declaredLanguage),
	}
}

// Text returns the request text.
func (r Request) Text() string { return r.text }

// RequestID returns the request identifier.
func (r Request) RequestID() string { return r.requestID }

// DeclaredLanguage returns the caller-declared language, if any.
func (r Request) DeclaredLanguage() string { return r.declaredLanguage }

// Validate checks the structural requirements of a request.
// maxRunes <= 0 disables the length check.
func (r Request) Validate(maxRunes int) error {
	if strings.TrimSpace(r.text) == "" {
		return &ValidationError{Field: "text", Message: "text is required", Err: ErrEmptyText}
	}
	if maxRunes > 0 && utf8.RuneCountInString(r.text) > maxRunes {
		return &ValidationError{Field: "text", Message: "text exceeds maximum length", Err: ErrTextTooLong}
	}
	return nil
}
