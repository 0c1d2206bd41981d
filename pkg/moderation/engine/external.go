package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"openserver-hq/guardrails/pkg/moderation/types"
	"openserver-hq/guardrails/pkg/remote"
)

// legacyScale is the top of the 0-4 severity scale some policy services use.
const legacyScale = 4.0

// External delegates scoring to a remote policy service over HTTP.
//
// The service receives {"text", "language", "request_id"} and answers either
// {"scores": {category: 0..1}, "flagged": [category]} or the 0-4 scale
// payload {"severity": n, "categories": [category], "details": {category: n}}.
type External struct {
	name        string
	endpoint    string
	apiKey      string
	client      *remote.Client
	categoryMap map[string]string
}

// NewExternal creates an external engine using client for transport.
func NewExternal(name, endpoint, apiKey string, client *remote.Client, categoryMap map[string]string) *External {
	return &External{
		name:        name,
		endpoint:    endpoint,
		apiKey:      apiKey,
		client:      client,
		categoryMap: categoryMap,
	}
}

// Name returns the engine name.
func (e *External) Name() string {
	return e.name
}

// Kind returns KindExternal.
func (e *External) Kind() types.EngineKind {
	return types.KindExternal
}

type externalRequest struct {
	Text      string `json:"text"`
	Language  string `json:"language,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type externalResponse struct {
	Scores     map[string]float64 `json:"scores"`
	Flagged    []string           `json:"flagged"`
	Severity   *float64           `json:"severity"`
	Categories json.RawMessage    `json:"categories"`
	Details    map[string]float64 `json:"details"`
}

// Call performs one request against the policy service.
func (e *External) Call(ctx context.Context, text string, md Metadata) Outcome {
	headers := map[string]string{}
	if e.apiKey != "" {
		headers["Authorization"] = "Bearer " + e.apiKey
	}

	var resp externalResponse
	req := externalRequest{Text: text, Language: md.Language, RequestID: md.RequestID}
	if err := e.client.DoJSON(ctx, e.endpoint, req, &resp, headers); err != nil {
		return Failed(classify(e.name, err))
	}

	out, err := e.normalize(resp)
	if err != nil {
		return Failed(&Failure{Engine: e.name, Reason: types.FailureMalformed, Cause: err})
	}
	return out
}

func (e *External) normalize(resp externalResponse) (Outcome, error) {
	if resp.Scores != nil {
		scores := make(map[types.Category]float64, len(resp.Scores))
		for cat, s := range resp.Scores {
			if math.IsNaN(s) || s < 0 || s > 1 {
				return Outcome{}, fmt.Errorf("score for %q out of range: %v", cat, s)
			}
			mergeMax(scores, e.mapCategory(cat), s)
		}

		var flagged []types.Category
		if resp.Flagged != nil {
			for _, cat := range resp.Flagged {
				flagged = append(flagged, e.mapCategory(cat))
			}
		} else {
			for cat, s := range scores {
				if s > 0 {
					flagged = append(flagged, cat)
				}
			}
		}
		return Outcome{Scores: scores, Flagged: flagged}, nil
	}

	if resp.Severity == nil {
		return Outcome{}, errors.New("response has neither scores nor severity")
	}
	return e.normalizeLegacy(*resp.Severity, resp.Categories, resp.Details)
}

// normalizeLegacy converts the 0-4 scale payload. Categories may be a list
// of names or a map of name to severity.
func (e *External) normalizeLegacy(severity float64, rawCategories json.RawMessage, details map[string]float64) (Outcome, error) {
	if math.IsNaN(severity) || severity < 0 {
		return Outcome{}, fmt.Errorf("severity out of range: %v", severity)
	}

	levels := make(map[string]float64, len(details))
	for cat, v := range details {
		levels[cat] = v
	}

	var names []string
	if len(rawCategories) > 0 && string(rawCategories) != "null" {
		var list []string
		var byName map[string]float64
		switch {
		case json.Unmarshal(rawCategories, &list) == nil:
			names = list
		case json.Unmarshal(rawCategories, &byName) == nil:
			for cat, v := range byName {
				if _, ok := levels[cat]; !ok {
					levels[cat] = v
				}
				if v > 0 {
					names = append(names, cat)
				}
			}
		default:
			return Outcome{}, errors.New("categories is neither a list nor a map")
		}
	}
	if len(levels) == 0 {
		for _, cat := range names {
			levels[cat] = severity
		}
	}

	scores := make(map[types.Category]float64, len(levels))
	for cat, v := range levels {
		mergeMax(scores, e.mapCategory(cat), min(v, legacyScale)/legacyScale)
	}
	flagged := make([]types.Category, 0, len(names))
	for _, cat := range names {
		flagged = append(flagged, e.mapCategory(cat))
	}
	return Outcome{Scores: scores, Flagged: flagged}, nil
}

func (e *External) mapCategory(name string) types.Category {
	if mapped, ok := e.categoryMap[name]; ok {
		return types.Category(mapped)
	}
	return normalizeCategory(name)
}

func mergeMax(scores map[types.Category]float64, c types.Category, s float64) {
	if cur, ok := scores[c]; !ok || s > cur {
		scores[c] = s
	}
}
