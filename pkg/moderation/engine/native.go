package engine

import (
	"context"
	"errors"
	"strings"

	"openserver-hq/guardrails/pkg/moderation/types"
	"openserver-hq/guardrails/pkg/remote"
)

const (
	// DefaultNativeEndpoint is the moderation endpoint used when none is configured.
	DefaultNativeEndpoint = "https://api.openai.com/v1/moderations"

	// DefaultNativeModel is the moderation model used when none is configured.
	DefaultNativeModel = "omni-moderation-latest"
)

// Native delegates scoring to a general-purpose moderation classifier and
// maps its taxonomy onto internal categories.
type Native struct {
	name        string
	endpoint    string
	model       string
	apiKey      string
	client      *remote.Client
	categoryMap map[string]string
}

// NewNative creates a native moderation engine.
func NewNative(name, endpoint, model, apiKey string, client *remote.Client, categoryMap map[string]string) *Native {
	if endpoint == "" {
		endpoint = DefaultNativeEndpoint
	}
	if model == "" {
		model = DefaultNativeModel
	}
	return &Native{
		name:        name,
		endpoint:    endpoint,
		model:       model,
		apiKey:      apiKey,
		client:      client,
		categoryMap: categoryMap,
	}
}

// Name returns the engine name.
func (n *Native) Name() string {
	return n.name
}

// Kind returns KindNative.
func (n *Native) Kind() types.EngineKind {
	return types.KindNative
}

type nativeRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type nativeResponse struct {
	Results []struct {
		Flagged        bool               `json:"flagged"`
		Categories     map[string]bool    `json:"categories"`
		CategoryScores map[string]float64 `json:"category_scores"`
	} `json:"results"`
}

// Call performs one moderation request.
func (n *Native) Call(ctx context.Context, text string, _ Metadata) Outcome {
	var resp nativeResponse
	headers := map[string]string{"Authorization": "Bearer " + n.apiKey}
	if err := n.client.DoJSON(ctx, n.endpoint, nativeRequest{Model: n.model, Input: text}, &resp, headers); err != nil {
		return Failed(classify(n.name, err))
	}
	if len(resp.Results) == 0 {
		return Failed(&Failure{Engine: n.name, Reason: types.FailureMalformed, Cause: errors.New("response has no results")})
	}

	result := resp.Results[0]
	scores := make(map[types.Category]float64, len(result.CategoryScores))
	for native, s := range result.CategoryScores {
		mergeMax(scores, n.mapCategory(native), s)
	}
	var flagged []types.Category
	for native, on := range result.Categories {
		if on {
			flagged = append(flagged, n.mapCategory(native))
		}
	}
	return Outcome{Scores: scores, Flagged: flagged}
}

func (n *Native) mapCategory(name string) types.Category {
	if mapped, ok := n.categoryMap[name]; ok {
		return types.Category(mapped)
	}
	return normalizeCategory(name)
}

// normalizeCategory maps a remote category name onto the internal taxonomy:
// the subcategory suffix is dropped and hyphens become underscores, so
// "self-harm/intent" becomes self_harm and "violence/graphic" violence.
func normalizeCategory(name string) types.Category {
	name = strings.ToLower(strings.TrimSpace(name))
	if i := strings.IndexByte(name, '/'); i >= 0 {
		name = name[:i]
	}
	return types.Category(strings.ReplaceAll(name, "-", "_"))
}
