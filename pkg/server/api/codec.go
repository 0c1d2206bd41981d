package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"openserver-hq/guardrails/pkg/moderation/types"
)

// DecodeError is a request body that could not be read or parsed.
type DecodeError struct {
	Response *ErrorResponse
	Err      error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return e.Response.Error.Message
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeJSON reads a single JSON object from r into dst. Unknown fields are
// rejected. The body size is bounded by the server's MaxBytesReader.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return &DecodeError{
				Response: NewErrorResponse(fmt.Sprintf("request body exceeds maximum size of %d bytes", maxErr.Limit), ErrorTypeRequestTooLarge, "body", CodeBodyTooLarge),
				Err:      err,
			}
		case errors.Is(err, io.EOF):
			return &DecodeError{Response: NewInvalidRequestError("request body is empty", "body", CodeInvalidJSON), Err: err}
		default:
			return &DecodeError{Response: NewInvalidRequestError(fmt.Sprintf("invalid JSON: %v", err), "body", CodeInvalidJSON), Err: err}
		}
	}
	if dec.More() {
		return &DecodeError{Response: NewInvalidRequestError("request body must contain a single JSON object", "body", CodeInvalidJSON)}
	}
	return nil
}

// HandleError maps an error from decoding or the orchestrator to a response.
// param names the request field carrying the text.
func HandleError(err error, param string) *ErrorResponse {
	var decErr *DecodeError
	if errors.As(err, &decErr) {
		return decErr.Response
	}

	var valErr *types.ValidationError
	if errors.As(err, &valErr) {
		code := CodeInvalidValue
		switch {
		case errors.Is(err, types.ErrEmptyText):
			code = CodeEmptyText
		case errors.Is(err, types.ErrTextTooLong):
			code = CodeTextTooLong
		}
		return NewInvalidRequestError(valErr.Message, param, code)
	}

	switch {
	case errors.Is(err, context.Canceled):
		return NewErrorResponse("request canceled", ErrorTypeServiceUnavailable, "", CodeRequestCanceled)
	case errors.Is(err, context.DeadlineExceeded):
		return NewErrorResponse("request timed out", ErrorTypeTimeout, "", CodeRequestCanceled)
	}
	return NewServerError("An internal error occurred. Please try again later.")
}

// WriteJSON writes data with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}
	return nil
}

// WriteError writes errResp with its mapped status code.
func WriteError(w http.ResponseWriter, errResp *ErrorResponse) error {
	return WriteJSON(w, errResp.Error.HTTPStatusCode(), errResp)
}
