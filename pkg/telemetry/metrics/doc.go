// Package metrics provides Prometheus metrics for the guardrails service.
//
// A Collector is passed to the orchestrator as its observer, to the breaker
// registry for state transitions and to the caching translator for cache
// lookups. Every metric lives in the collector's own registry, exposed by
// Handler:
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	mux.Handle("/metrics", collector.Handler())
//
// # Metrics Categories
//
//   - Decision Metrics: decisions by action and profile, severity, categories
//   - Engine Metrics: evaluations by outcome, failures by reason, latency
//   - Breaker Metrics: breaker state and transitions
//   - Translation Metrics: translation outcomes and cache effectiveness
//   - Mitigation Metrics: plans and replacements by kind
//
// Category and profile labels pass through a cardinality limiter; values
// past the limit are reported as "other".
package metrics
