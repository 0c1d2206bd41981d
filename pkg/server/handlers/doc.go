// Package handlers implements the moderation endpoints of the guardrails API.
package handlers
