package engine

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"openserver-hq/guardrails/pkg/moderation/types"
)

const (
	// keywordBaseWeight is the contribution of a single-word keyword match.
	keywordBaseWeight = 0.4

	// keywordWordStep is added per extra word in a multi-word keyword.
	keywordWordStep = 0.1

	// keywordMaxWeight caps a single keyword match.
	keywordMaxWeight = 0.8
)

// PatternRule is a regular expression with its own match weight.
type PatternRule struct {
	Pattern string  `yaml:"pattern"`
	Weight  float64 `yaml:"weight"`
}

// CategoryRules are the keywords and patterns scored for one category.
type CategoryRules struct {
	Keywords []string      `yaml:"keywords"`
	Patterns []PatternRule `yaml:"patterns"`
}

// HeuristicConfig configures the heuristic scorer.
type HeuristicConfig struct {
	// Categories maps category name to its rules. Nil means DefaultRules.
	Categories map[string]CategoryRules `yaml:"categories"`

	// FamiliarLanguages lists languages the keyword lists were written for.
	// Empty disables UnfamiliarLanguageBoost.
	FamiliarLanguages []string `yaml:"familiar_languages"`

	// UnfamiliarLanguageBoost is added to every non-zero score when the
	// request language is not familiar, to stay on the safe side.
	UnfamiliarLanguageBoost float64 `yaml:"unfamiliar_language_boost"`
}

// DefaultRules returns the built-in keyword lists.
func DefaultRules() map[string]CategoryRules {
	return map[string]CategoryRules{
		string(types.CategoryViolence): {Keywords: []string{"attack", "kill", "bomb", "assassinate"}},
		string(types.CategorySelfHarm): {Keywords: []string{"suicide", "self-harm", "end my life"}},
		string(types.CategoryHate):     {Keywords: []string{"hate", "racist", "bigot"}},
		string(types.CategoryPII): {
			Keywords: []string{"passport", "ssn", "credit card"},
			Patterns: []PatternRule{{Pattern: `\b\d{3}-\d{2}-\d{4}\b`, Weight: 0.5}},
		},
	}
}

// matcher is one compiled keyword or pattern.
type matcher struct {
	re     *regexp.Regexp
	weight float64
	// keyword matches must stand alone as words; pattern matches count as
	// found.
	keyword bool
}

// Heuristic is the in-process keyword/pattern scorer. It never fails and
// holds no mutable state, so one instance is shared by every request.
type Heuristic struct {
	name     string
	rules    map[types.Category][]matcher
	familiar []string
	boost    float64
}

// NewHeuristic compiles cfg into a scorer.
func NewHeuristic(name string, cfg HeuristicConfig) (*Heuristic, error) {
	if name == "" {
		name = string(types.KindHeuristic)
	}
	categories := cfg.Categories
	if categories == nil {
		categories = DefaultRules()
	}
	if cfg.UnfamiliarLanguageBoost < 0 || cfg.UnfamiliarLanguageBoost > 1 {
		return nil, &ConfigError{Engine: name, Field: "unfamiliar_language_boost", Message: "must be between 0 and 1"}
	}

	h := &Heuristic{
		name:     name,
		rules:    make(map[types.Category][]matcher, len(categories)),
		familiar: make([]string, 0, len(cfg.FamiliarLanguages)),
		boost:    cfg.UnfamiliarLanguageBoost,
	}
	for _, lang := range cfg.FamiliarLanguages {
		h.familiar = append(h.familiar, strings.ToLower(strings.TrimSpace(lang)))
	}

	for cat, rules := range categories {
		if strings.TrimSpace(cat) == "" {
			return nil, &ConfigError{Engine: name, Field: "categories", Message: "empty category name"}
		}
		ms := make([]matcher, 0, len(rules.Keywords)+len(rules.Patterns))

		for _, kw := range rules.Keywords {
			words := strings.Fields(kw)
			if len(words) == 0 {
				return nil, &ConfigError{Engine: name, Field: "categories." + cat + ".keywords", Message: "empty keyword"}
			}
			ms = append(ms, matcher{re: keywordRegexp(words), weight: keywordWeight(len(words)), keyword: true})
		}

		for i, p := range rules.Patterns {
			field := fmt.Sprintf("categories.%s.patterns[%d]", cat, i)
			if p.Weight <= 0 || p.Weight > 1 {
				return nil, &ConfigError{Engine: name, Field: field, Message: "weight must be in (0, 1]"}
			}
			re, err := regexp.Compile(p.Pattern)
			if err != nil {
				return nil, &ConfigError{Engine: name, Field: field, Message: err.Error()}
			}
			ms = append(ms, matcher{re: re, weight: p.Weight})
		}

		h.rules[types.Category(cat)] = ms
	}

	return h, nil
}

// keywordWeight is base + step per extra word, capped.
func keywordWeight(words int) float64 {
	return min(keywordBaseWeight+keywordWordStep*float64(words-1), keywordMaxWeight)
}

// keywordRegexp matches the words case-insensitively, separated by any
// whitespace. Word boundaries are checked by countMatches since \b is
// ASCII-only in RE2.
func keywordRegexp(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)` + strings.Join(quoted, `\s+`))
}

// Name returns the engine name.
func (h *Heuristic) Name() string {
	return h.name
}

// Kind returns KindHeuristic.
func (h *Heuristic) Kind() types.EngineKind {
	return types.KindHeuristic
}

// Evaluate scores text. It does not block and ignores ctx.
func (h *Heuristic) Evaluate(_ context.Context, text string, md Metadata) types.EngineVerdict {
	start := time.Now()
	scores, flagged := h.Score(text, md.Language)
	return types.NewVerdict(h.name, types.KindHeuristic, scores, flagged, time.Since(start))
}

// Fallback scores text on behalf of a failed slot.
func (h *Heuristic) Fallback(text string, md Metadata, reason types.FailureReason, latency time.Duration) types.EngineVerdict {
	scores, flagged := h.Score(text, md.Language)
	return types.NewVerdict(h.name, types.KindHeuristic, scores, flagged, 0).
		AsFallback(h.name, types.KindHeuristic, reason, latency)
}

// Score returns per-category severities and the matched categories.
// Each match contributes its weight w and a category's severity is
// 1 - Π(1 - w) over all its matches.
func (h *Heuristic) Score(text, language string) (map[types.Category]float64, []types.Category) {
	scores := make(map[types.Category]float64)
	flagged := make([]types.Category, 0)

	for cat, ms := range h.rules {
		miss := 1.0
		hits := 0
		for _, m := range ms {
			for _, w := range countMatches(m, text) {
				miss *= 1 - w
				hits++
			}
		}
		if hits > 0 {
			scores[cat] = 1 - miss
			flagged = append(flagged, cat)
		}
	}

	if h.boost > 0 && len(h.familiar) > 0 && !h.isFamiliar(language) {
		for cat, s := range scores {
			scores[cat] = types.Clamp01(s + h.boost)
		}
	}

	return scores, flagged
}

func (h *Heuristic) isFamiliar(language string) bool {
	if language == "" {
		return true
	}
	lang := strings.ToLower(language)
	if i := strings.IndexByte(lang, '-'); i > 0 {
		lang = lang[:i]
	}
	return slices.Contains(h.familiar, lang)
}

// countMatches returns one weight per non-overlapping occurrence. Patterns
// run over the whole text so anchors and \b keep their meaning. Keywords
// carry no assertions, so they are searched from an offset and a candidate
// inside a longer word is skipped by one rune.
func countMatches(m matcher, text string) []float64 {
	if !m.keyword {
		return slices.Repeat([]float64{m.weight}, len(m.re.FindAllStringIndex(text, -1)))
	}

	var out []float64
	for pos := 0; pos < len(text); {
		loc := m.re.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if end > start && standsAlone(text, start, end) {
			out = append(out, m.weight)
			pos = end
			continue
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		pos = start + max(size, 1)
	}
	return out
}

// standsAlone reports whether text[start:end] is not part of a longer word.
func standsAlone(text string, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(text[:start]); isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		if r, _ := utf8.DecodeRuneInString(text[end:]); isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
