// Package telemetry groups the observability packages of the guardrails
// service.
//
//   - logging: slog construction with request context and PII redaction
//   - metrics: Prometheus collectors fed by the moderation observer hooks
//   - tracing: OpenTelemetry spans for each moderation stage
//   - health: liveness, readiness and version endpoints
package telemetry
