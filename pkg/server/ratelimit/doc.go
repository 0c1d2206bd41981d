// Package ratelimit provides per-client token buckets for the API routes.
//
// A bucket holds up to Burst tokens and refills at Rate tokens per second.
// Each request takes one token; an empty bucket rejects the request and
// reports how long until a token is available. Buckets idle for longer
// than IdleTTL are dropped so the client table does not grow without bound.
package ratelimit
