package api

import "net/http"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes an error.
type ErrorDetail struct {
	// Message is a human-readable error message.
	Message string `json:"message"`

	// Type categorizes the error and determines the status code.
	Type string `json:"type"`

	// Param is the request field that caused the error, if any.
	Param string `json:"param,omitempty"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`
}

// Error types.
const (
	ErrorTypeInvalidRequest     = "invalid_request_error"
	ErrorTypeNotFound           = "not_found"
	ErrorTypeMethodNotAllowed   = "method_not_allowed"
	ErrorTypeRequestTooLarge    = "request_too_large"
	ErrorTypeRateLimit          = "rate_limit_error"
	ErrorTypeServerError        = "server_error"
	ErrorTypeServiceUnavailable = "service_unavailable"
	ErrorTypeTimeout            = "timeout"
)

// Error codes.
const (
	CodeInvalidJSON     = "invalid_json"
	CodeInvalidValue    = "invalid_value"
	CodeEmptyText       = "empty_text"
	CodeTextTooLong     = "text_too_long"
	CodeBodyTooLarge    = "body_too_large"
	CodeInternalError   = "internal_error"
	CodeRequestCanceled = "request_canceled"
	CodeRateLimited     = "rate_limit_exceeded"
)

// NewErrorResponse creates an error response.
func NewErrorResponse(message, errorType, param, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
			Param:   param,
			Code:    code,
		},
	}
}

// NewInvalidRequestError creates a 400 error.
func NewInvalidRequestError(message, param, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeInvalidRequest, param, code)
}

// NewServerError creates a 500 error.
func NewServerError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServerError, "", CodeInternalError)
}

// HTTPStatusCode returns the status code for the error type.
func (e *ErrorDetail) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrorTypeRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
