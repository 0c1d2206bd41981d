// Package app assembles the guardrails components from a configuration.
//
// New builds, in dependency order, the logger, tracer, metrics collector,
// breaker registry, engine chain, language resolver with its translation
// cache, mitigation planner, policy and orchestrator, and registers the
// readiness checks. Close releases what New opened. RunReload starts the
// configured policy reload triggers.
package app
