package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"openserver-hq/guardrails/pkg/moderation"
	"openserver-hq/guardrails/pkg/moderation/types"
	"openserver-hq/guardrails/pkg/server/api"
	"openserver-hq/guardrails/pkg/telemetry/logging"
)

// Moderator is the decision pipeline. *moderation.Orchestrator implements
// it.
type Moderator interface {
	Process(ctx context.Context, req types.Request) (*types.Decision, error)
	Classify(ctx context.Context, req types.Request) (*moderation.Classification, error)
	Mitigate(ctx context.Context, req types.Request) (*types.MitigationPlan, error)
}

// Handlers serves the moderation endpoints.
type Handlers struct {
	moderator Moderator
	logger    *slog.Logger
}

// New creates the handlers.
func New(m Moderator, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{moderator: m, logger: logger}
}

// Moderations serves POST /v1/moderations.
func (h *Handlers) Moderations(w http.ResponseWriter, r *http.Request) {
	var body api.ModerationRequest
	if err := api.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, err, "input")
		return
	}

	ctx := r.Context()
	decision, err := h.moderator.Process(ctx, newRequest(ctx, body.Input, body.Language))
	if err != nil {
		h.fail(w, r, err, "input")
		return
	}
	h.write(w, r, &api.ModerationResponse{Moderated: decision})
}

// Classifications serves POST /v1/classifications.
func (h *Handlers) Classifications(w http.ResponseWriter, r *http.Request) {
	var body api.ClassificationRequest
	if err := api.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, err, "text")
		return
	}

	ctx := r.Context()
	c, err := h.moderator.Classify(ctx, newRequest(ctx, body.Text, body.Language))
	if err != nil {
		h.fail(w, r, err, "text")
		return
	}
	h.write(w, r, &api.ClassificationResponse{
		RequestID:  c.RequestID,
		Language:   c.Language,
		Translated: c.Translated,
		Votes:      c.EngineVotes,
	})
}

// InferenceMitigation serves POST /v1/inference-mitigation. Empty text is
// not an error here: the caller gets mitigated=false.
func (h *Handlers) InferenceMitigation(w http.ResponseWriter, r *http.Request) {
	var body api.MitigationRequest
	if err := api.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, err, "text")
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		h.write(w, r, &api.MitigationResponse{Message: api.NoTextMessage})
		return
	}

	ctx := r.Context()
	plan, err := h.moderator.Mitigate(ctx, newRequest(ctx, body.Text, body.Language))
	if err != nil {
		h.fail(w, r, err, "text")
		return
	}
	h.write(w, r, api.NewMitigationResponse(plan))
}

func newRequest(ctx context.Context, text, lang string) types.Request {
	return types.NewRequest(text, logging.GetRequestID(ctx), lang)
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error, param string) {
	errResp := api.HandleError(err, param)
	if errResp.Error.HTTPStatusCode() >= http.StatusInternalServerError {
		logging.FromContext(r.Context(), h.logger).ErrorContext(r.Context(), "moderation request failed", "error", err)
	}
	if werr := api.WriteError(w, errResp); werr != nil {
		logging.FromContext(r.Context(), h.logger).ErrorContext(r.Context(), "failed to write error response", "error", werr)
	}
}

func (h *Handlers) write(w http.ResponseWriter, r *http.Request, body any) {
	if err := api.WriteJSON(w, http.StatusOK, body); err != nil {
		logging.FromContext(r.Context(), h.logger).ErrorContext(r.Context(), "failed to write response", "error", err)
	}
}
