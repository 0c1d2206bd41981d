package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"openserver-hq/guardrails/pkg/moderation/types"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func newDefaultHeuristic(t *testing.T) *Heuristic {
	t.Helper()
	h, err := NewHeuristic("heuristic", HeuristicConfig{})
	if err != nil {
		t.Fatalf("NewHeuristic() error = %v", err)
	}
	return h
}

func TestHeuristic_DefaultRules(t *testing.T) {
	h := newDefaultHeuristic(t)

	tests := []struct {
		name      string
		text      string
		category  types.Category
		wantScore float64
	}{
		{"single keyword", "they plan to attack the station", types.CategoryViolence, 0.4},
		{"case insensitive", "ATTACK now", types.CategoryViolence, 0.4},
		{"two matches", "attack and kill", types.CategoryViolence, 1 - 0.6*0.6},
		{"repeated keyword", "kill kill", types.CategoryViolence, 1 - 0.6*0.6},
		{"multi-word keyword", "I want to end my life", types.CategorySelfHarm, 0.6},
		{"hyphenated keyword", "thoughts of self-harm", types.CategorySelfHarm, 0.4},
		{"two-word keyword", "my credit card number", types.CategoryPII, 0.5},
		{"pattern", "number 123-45-6789", types.CategoryPII, 0.5},
		{"substring does not match", "a skilled worker", types.CategoryViolence, 0},
		{"clean text", "hello there", types.CategoryHate, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := h.Evaluate(context.Background(), tt.text, Metadata{})
			if got := v.Score(tt.category); !almostEqual(got, tt.wantScore) {
				t.Errorf("Score(%s) = %v, want %v", tt.category, got, tt.wantScore)
			}
			if got := v.HasFlagged(tt.category); got != (tt.wantScore > 0) {
				t.Errorf("HasFlagged(%s) = %v", tt.category, got)
			}
			if v.Errored {
				t.Error("heuristic verdicts are never errored")
			}
		})
	}
}

func TestHeuristic_Monotonic(t *testing.T) {
	h := newDefaultHeuristic(t)

	texts := []string{
		"bomb",
		"bomb attack",
		"bomb attack kill",
		"bomb attack kill assassinate",
		"bomb attack kill assassinate bomb bomb bomb bomb",
	}
	prev := 0.0
	for _, text := range texts {
		s := h.Evaluate(context.Background(), text, Metadata{}).Score(types.CategoryViolence)
		if s < prev {
			t.Errorf("severity decreased for %q: %v < %v", text, s, prev)
		}
		if s > 1 {
			t.Errorf("severity above 1 for %q: %v", text, s)
		}
		prev = s
	}
}

func TestHeuristic_KeywordWeight(t *testing.T) {
	tests := []struct {
		words int
		want  float64
	}{
		{1, 0.4},
		{2, 0.5},
		{3, 0.6},
		{5, 0.8},
		{9, 0.8},
	}
	for _, tt := range tests {
		if got := keywordWeight(tt.words); !almostEqual(got, tt.want) {
			t.Errorf("keywordWeight(%d) = %v, want %v", tt.words, got, tt.want)
		}
	}
}

func TestHeuristic_CustomRulesNonLatin(t *testing.T) {
	h, err := NewHeuristic("h", HeuristicConfig{
		Categories: map[string]CategoryRules{
			"violence": {Keywords: []string{"اقتل"}},
			"hate":     {Keywords: []string{"haine"}},
		},
	})
	if err != nil {
		t.Fatalf("NewHeuristic() error = %v", err)
	}

	v := h.Evaluate(context.Background(), "سوف اقتل", Metadata{Language: "ar"})
	if !v.HasFlagged("violence") {
		t.Errorf("expected Arabic keyword to match, scores = %v", v.Scores)
	}
	if v.HasFlagged("hate") {
		t.Error("hate should not match")
	}
}

func TestHeuristic_AnchoredPatternsSeeWholeText(t *testing.T) {
	h, err := NewHeuristic("h", HeuristicConfig{
		Categories: map[string]CategoryRules{
			"spam": {Patterns: []PatternRule{
				{Pattern: `^a`, Weight: 0.5},
				{Pattern: `\bbuy\b`, Weight: 0.3},
			}},
			"violence": {Keywords: []string{"kill"}},
		},
	})
	if err != nil {
		t.Fatalf("NewHeuristic() error = %v", err)
	}

	tests := []struct {
		name      string
		text      string
		category  types.Category
		wantScore float64
	}{
		{"start anchor counts once", "aaaa", "spam", 0.5},
		{"start anchor mid-text", "ba", "spam", 0},
		{"word boundary inside word", "rebuying", "spam", 0},
		{"word boundary twice", "buy buy", "spam", 1 - 0.7*0.7},
		{"keyword after longer word", "skill kill", "violence", 0.4},
		{"keyword only inside words", "killkill", "violence", 0},
		{"keyword next to punctuation", "kill,kill!", "violence", 1 - 0.6*0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := h.Evaluate(context.Background(), tt.text, Metadata{})
			if got := v.Score(tt.category); !almostEqual(got, tt.wantScore) {
				t.Errorf("Score(%s) = %v, want %v", tt.category, got, tt.wantScore)
			}
		})
	}
}

func TestHeuristic_UnfamiliarLanguageBoost(t *testing.T) {
	h, err := NewHeuristic("h", HeuristicConfig{
		FamiliarLanguages:       []string{"en", "fr"},
		UnfamiliarLanguageBoost: 0.25,
	})
	if err != nil {
		t.Fatalf("NewHeuristic() error = %v", err)
	}

	familiar := h.Evaluate(context.Background(), "attack", Metadata{Language: "fr-CA"})
	unfamiliar := h.Evaluate(context.Background(), "attack", Metadata{Language: "sw"})

	if got := familiar.Score(types.CategoryViolence); !almostEqual(got, 0.4) {
		t.Errorf("familiar score = %v, want 0.4", got)
	}
	if got := unfamiliar.Score(types.CategoryViolence); !almostEqual(got, 0.65) {
		t.Errorf("unfamiliar score = %v, want 0.65", got)
	}
	if clean := h.Evaluate(context.Background(), "hello", Metadata{Language: "sw"}); len(clean.Scores) != 0 {
		t.Errorf("boost must not create scores for clean text: %v", clean.Scores)
	}
}

func TestHeuristic_Fallback(t *testing.T) {
	h := newDefaultHeuristic(t)

	v := h.Fallback("attack", Metadata{}, types.FailureTimeout, 0)
	if !v.Errored || !v.Fallback {
		t.Errorf("fallback verdict flags = errored:%v fallback:%v", v.Errored, v.Fallback)
	}
	if v.FailureReason != types.FailureTimeout {
		t.Errorf("FailureReason = %q", v.FailureReason)
	}
	if !almostEqual(v.Score(types.CategoryViolence), 0.4) {
		t.Errorf("fallback must carry heuristic scores, got %v", v.Scores)
	}
}

func TestNewHeuristic_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  HeuristicConfig
	}{
		{"bad regex", HeuristicConfig{Categories: map[string]CategoryRules{"x": {Patterns: []PatternRule{{Pattern: "(", Weight: 0.5}}}}}},
		{"zero weight", HeuristicConfig{Categories: map[string]CategoryRules{"x": {Patterns: []PatternRule{{Pattern: "a", Weight: 0}}}}}},
		{"weight above one", HeuristicConfig{Categories: map[string]CategoryRules{"x": {Patterns: []PatternRule{{Pattern: "a", Weight: 1.5}}}}}},
		{"empty keyword", HeuristicConfig{Categories: map[string]CategoryRules{"x": {Keywords: []string{"  "}}}}},
		{"empty category", HeuristicConfig{Categories: map[string]CategoryRules{"": {Keywords: []string{"a"}}}}},
		{"negative boost", HeuristicConfig{UnfamiliarLanguageBoost: -0.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHeuristic("h", tt.cfg)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("expected *ConfigError, got %v", err)
			}
		})
	}
}
