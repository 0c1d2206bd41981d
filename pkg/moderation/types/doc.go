// Package types defines the data model shared by the moderation core:
// requests, engine verdicts, aggregated decisions and mitigation plans.
//
// Every value in this package is treated as immutable once constructed.
// Verdict constructors copy their inputs, and the orchestrator hands callers
// fresh Decision values per request.
package types
