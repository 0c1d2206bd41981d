// Package aggregate fuses engine verdicts and a cultural profile into a
// single allow/warn/block decision.
//
// For every category the fused severity is the highest score any engine gave
// it, multiplied by the profile's bias for that category and clamped to
// [0,1]. The overall severity is the highest fused severity. A category is
// reported when its fused severity reaches the warn threshold, or when it is
// culturally blocked and at least one engine flagged it. Cultural blocks
// override numeric severity.
package aggregate

import (
	"fmt"
	"math"
	"slices"

	"openserver-hq/guardrails/pkg/moderation/culture"
	"openserver-hq/guardrails/pkg/moderation/types"
)

// Thresholds are the severity cut-offs for warn and block.
type Thresholds struct {
	Warn  float64 `yaml:"warn" json:"warn"`
	Block float64 `yaml:"block" json:"block"`
}

// DefaultThresholds returns warn 0.3, block 0.7.
func DefaultThresholds() Thresholds {
	return Thresholds{Warn: 0.3, Block: 0.7}
}

// Validate checks 0 < warn <= block <= 1. A zero warn threshold would flag
// every request, clean text included.
func (t Thresholds) Validate() error {
	for _, v := range []float64{t.Warn, t.Block} {
		if math.IsNaN(v) || v <= 0 || v > 1 {
			return fmt.Errorf("thresholds must be within (0, 1], got warn=%v block=%v", t.Warn, t.Block)
		}
	}
	if t.Warn > t.Block {
		return fmt.Errorf("warn threshold %v exceeds block threshold %v", t.Warn, t.Block)
	}
	return nil
}

// Result is the fused outcome before request metadata is attached.
type Result struct {
	Severity         float64
	Action           types.Action
	Categories       []types.Category
	CategorySeverity map[types.Category]float64
	CulturalBlock    bool
}

// Aggregate fuses verdicts under profile and thresholds. It is pure and
// never fails; errored verdicts with empty bodies contribute nothing.
func Aggregate(verdicts []types.EngineVerdict, profile culture.Profile, th Thresholds) Result {
	raw := make(map[types.Category]float64)
	flagged := make(map[types.Category]bool)

	for _, v := range verdicts {
		for c, s := range v.Scores {
			if cur, ok := raw[c]; !ok || s > cur {
				raw[c] = s
			}
		}
		for _, c := range v.Flagged {
			flagged[c] = true
		}
	}

	fused := make(map[types.Category]float64, len(raw))
	overall := 0.0
	for c, s := range raw {
		f := types.Clamp01(s * profile.Bias(c))
		fused[c] = f
		overall = max(overall, f)
	}

	categories := make([]types.Category, 0, len(fused))
	for c, f := range fused {
		if f >= th.Warn {
			categories = append(categories, c)
		}
	}

	culturalBlock := false
	for c := range flagged {
		if profile.Blocks(c) {
			culturalBlock = true
			if !slices.Contains(categories, c) {
				categories = append(categories, c)
			}
		}
	}

	action := types.ActionAllow
	switch {
	case culturalBlock:
		action = types.ActionBlock
	case overall >= th.Block:
		action = types.ActionBlock
	case overall >= th.Warn:
		action = types.ActionWarn
	}

	return Result{
		Severity:         overall,
		Action:           action,
		Categories:       types.SortedCategories(categories),
		CategorySeverity: fused,
		CulturalBlock:    culturalBlock,
	}
}
