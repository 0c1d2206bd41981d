package api

import (
	"openserver-hq/guardrails/pkg/moderation/types"
)

// ModerationRequest is the body of POST /v1/moderations.
type ModerationRequest struct {
	Input    string `json:"input"`
	Language string `json:"language,omitempty"`
}

// ModerationResponse wraps the decision.
type ModerationResponse struct {
	Moderated *types.Decision `json:"moderated"`
}

// ClassificationRequest is the body of POST /v1/classifications.
type ClassificationRequest struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// ClassificationResponse lists the raw engine votes in chain order.
type ClassificationResponse struct {
	RequestID  string                `json:"request_id"`
	Language   string                `json:"language"`
	Translated bool                  `json:"translated"`
	Votes      []types.EngineVerdict `json:"votes"`
}

// MitigationRequest is the body of POST /v1/inference-mitigation.
type MitigationRequest struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// MitigationResponse reports the sanitized text.
type MitigationResponse struct {
	Mitigated     bool              `json:"mitigated"`
	Message       string            `json:"message"`
	SanitizedText string            `json:"sanitized_text,omitempty"`
	Redactions    []types.Redaction `json:"redactions,omitempty"`
	RulesApplied  []string          `json:"rules_applied,omitempty"`
}

// NoTextMessage is returned by the mitigation endpoint for empty text.
const NoTextMessage = "No text provided"

// NewMitigationResponse converts a plan.
func NewMitigationResponse(plan *types.MitigationPlan) *MitigationResponse {
	resp := &MitigationResponse{
		Mitigated:    plan.Mitigated,
		Message:      plan.Message,
		Redactions:   plan.Redactions,
		RulesApplied: plan.RulesApplied,
	}
	if plan.Mitigated {
		resp.SanitizedText = plan.RewrittenText
	}
	return resp
}
