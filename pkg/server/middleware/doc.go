// Package middleware provides the HTTP middleware of the guardrails API.
//
// Chain applies middleware so the first argument is outermost:
//
//	handler = middleware.Chain(mux,
//	    middleware.Recovery(logger),
//	    middleware.RequestID,
//	    tracing.HTTPMiddleware(tracer),
//	    middleware.Logging(logger),
//	    middleware.BodyLimit(cfg.MaxBodyBytes),
//	)
package middleware
