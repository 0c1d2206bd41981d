// Package server runs the guardrails HTTP API.
//
// Routes:
//
//	POST /v1/moderations           decision for an input text
//	POST /v1/classifications       raw engine votes
//	POST /v1/inference-mitigation  PII masking and verb rewriting of model output
//	GET  /health                   liveness
//	GET  /ready                    readiness (policy, engine breakers, translation cache)
//	GET  /version                  build information
//	GET  /metrics                  Prometheus metrics, when enabled
//
// Every request passes through recovery, request id, tracing, logging and
// body-size middleware, in that order. Start blocks until its context is
// cancelled and then drains in-flight requests within the configured
// shutdown timeout.
package server
