// Package tracing provides OpenTelemetry tracing for the guardrails service.
//
// The orchestrator opens a span per request and records each stage and
// engine verdict as span events. Incoming W3C trace context is honoured by
// HTTPMiddleware and forwarded to remote engines and the translation service
// by Inject, so a decision shows up inside the caller's trace.
//
// Exporting spans is left to the embedding application: pass a span
// processor wrapping any OpenTelemetry exporter with WithSpanProcessor.
// Without one, trace ids are still generated, sampled, logged and
// propagated.
//
//	tracer, err := tracing.New(tracing.Config{Enabled: true, Sampler: tracing.SamplerRatio, SampleRatio: 0.1})
//	defer tracer.Shutdown(ctx)
//
// # Sampling
//
// All samplers are parent based: a sampled caller keeps the trace sampled
// here regardless of the local strategy.
package tracing
