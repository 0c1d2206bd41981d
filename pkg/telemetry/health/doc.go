// Package health provides the liveness, readiness and version endpoints.
//
// Liveness (/health) only reports that the process is up. Readiness (/ready)
// runs every registered check concurrently, each under its own timeout:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("policy", health.PolicyCheck(func() bool { return orch.Policy() != nil }))
//	checker.RegisterCheck("engines", health.BreakerCheck(breakers.Snapshot))
//	checker.RegisterCheck("translation_cache", health.PingCheck(redisCache, true))
//
//	mux.Handle("GET /health", checker.LivenessHandler())
//	mux.Handle("GET /ready", checker.ReadinessHandler())
//
// A check returns nil when healthy. Errors wrapped with Degraded are
// reported but keep the service ready: an open engine breaker still gets a
// heuristic decision, and a translation cache outage only costs latency. Any
// other error makes readiness answer 503.
package health
