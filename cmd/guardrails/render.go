package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"openserver-hq/guardrails/pkg/moderation"
	"openserver-hq/guardrails/pkg/moderation/types"
	"openserver-hq/guardrails/pkg/server/api"
)

// decisionView renders a decision for the terminal. JSON output uses the
// embedded decision unchanged.
type decisionView struct {
	*types.Decision
}

func (v decisionView) RenderText(w io.Writer) error {
	d := v.Decision
	fmt.Fprintf(w, "Action:     %s\n", d.Action)
	fmt.Fprintf(w, "Severity:   %.3f\n", d.Severity)
	fmt.Fprintf(w, "Language:   %s (profile %s", d.Language, d.ProfileApplied)
	if d.Translated {
		fmt.Fprint(w, ", translated")
	}
	fmt.Fprintln(w, ")")
	if len(d.Categories) > 0 {
		fmt.Fprintf(w, "Categories: %s\n", joinCategories(d.Categories))
	}
	renderVotes(w, d.EngineVotes)
	if d.Mitigation != nil && d.Mitigation.Mitigated {
		fmt.Fprintf(w, "Mitigated:  %s\n", d.Mitigation.RewrittenText)
	}
	return nil
}

// classificationView renders engine votes.
type classificationView struct {
	*moderation.Classification
}

func (v classificationView) RenderText(w io.Writer) error {
	c := v.Classification
	fmt.Fprintf(w, "Language:   %s", c.Language)
	if c.Translated {
		fmt.Fprint(w, " (translated)")
	}
	fmt.Fprintln(w)
	renderVotes(w, c.EngineVotes)
	return nil
}

// mitigationView renders a mitigation plan in the API response shape.
type mitigationView struct {
	*api.MitigationResponse
}

func (v mitigationView) RenderText(w io.Writer) error {
	m := v.MitigationResponse
	if !m.Mitigated {
		fmt.Fprintf(w, "%s\n", m.Message)
		return nil
	}
	fmt.Fprintln(w, m.SanitizedText)
	for _, r := range m.Redactions {
		fmt.Fprintf(w, "  %s: %d\n", r.Kind, r.Count)
	}
	return nil
}

// batchResult is one line of a batch run.
type batchResult struct {
	Line     int             `json:"line"`
	Decision *types.Decision `json:"decision,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func (r batchResult) RenderText(w io.Writer) error {
	if r.Error != "" {
		_, err := fmt.Fprintf(w, "%5d  error  %s\n", r.Line, r.Error)
		return err
	}
	d := r.Decision
	line := fmt.Sprintf("%5d  %-5s  %.3f  %s", r.Line, d.Action, d.Severity, d.Language)
	if len(d.Categories) > 0 {
		line += "  " + joinCategories(d.Categories)
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func renderVotes(w io.Writer, votes []types.EngineVerdict) {
	for _, v := range votes {
		status := "ok"
		switch {
		case v.Fallback:
			status = "fallback: " + string(v.FailureReason)
		case v.Errored:
			status = "failed: " + string(v.FailureReason)
		}
		fmt.Fprintf(w, "  %-16s %-9s %s", v.Engine, v.Kind, status)
		if scores := formatScores(v.Scores); scores != "" {
			fmt.Fprintf(w, "  %s", scores)
		}
		fmt.Fprintln(w)
	}
}

func formatScores(scores map[types.Category]float64) string {
	keys := make([]string, 0, len(scores))
	for c, s := range scores {
		if s > 0 {
			keys = append(keys, string(c))
		}
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%.2f", k, scores[types.Category(k)])
	}
	return strings.Join(parts, " ")
}

func joinCategories(cs []types.Category) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}
