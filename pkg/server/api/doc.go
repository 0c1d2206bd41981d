// Package api defines the JSON bodies of the guardrails HTTP API and the
// helpers that read and write them.
//
// Errors use an OpenAI-style envelope so existing client libraries can
// surface them:
//
//	{"error": {"message": "text must not be empty", "type": "invalid_request_error", "param": "input", "code": "empty_text"}}
package api
