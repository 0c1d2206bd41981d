// Package logging builds the service's structured loggers on log/slog.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:     "info",
//	    Format:    "json",
//	    RedactPII: true,
//	})
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.InfoContext(ctx, "decision made", "action", "warn") // includes request_id
//
// # PII Redaction
//
// When RedactPII is enabled every string attribute passes through a Redactor
// before it is written:
//
//   - API keys: sk-abc123xyz → sk-***
//   - Bearer tokens: Bearer abc → Bearer ***
//   - Emails: user@example.com → ***@***
//   - SSN: 123-45-6789 → ***-**-****
//   - Credit cards: 4111 1111 1111 1111 → ****-****-****-****
//
// Attributes whose key names a credential (token, api_key, authorization,
// password, secret) are masked whatever their value.
//
// Moderated text is never passed to the logger; redaction covers what
// reaches it indirectly, such as error messages echoing a remote body.
package logging
