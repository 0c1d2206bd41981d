// Package mitigation plans redactions and rewrites for text that needs
// mitigation: PII masking followed by violent-verb rewriting.
//
// Plans are idempotent. Rules are applied until the text stops changing, and
// a Planner refuses a configuration whose placeholders or paraphrases would
// themselves match a rule, so planning a plan's output changes nothing.
package mitigation

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"openserver-hq/guardrails/pkg/moderation/types"
)

// PII kinds, in the order they are applied.
const (
	KindEmail = "email"
	KindCard  = "card"
	KindSSN   = "ssn"
	KindPhone = "phone"

	// KindViolentVerb is the redaction kind reported for verb rewrites.
	KindViolentVerb = "violent_verb"
)

// maxPasses bounds the fixpoint loop. Validated rule sets settle in one or
// two passes; reaching the bound means the closure check missed a rule
// interaction.
const maxPasses = 8

const (
	messageApplied = "Mitigation applied"
	messageNone    = "No mitigation necessary"
)

type piiRule struct {
	kind        string
	re          *regexp.Regexp
	placeholder string
}

var piiRules = []piiRule{
	{KindEmail, regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`), "[REDACTED_EMAIL]"},
	{KindCard, regexp.MustCompile(`\b\d{4}[ -]?\d{4}[ -]?\d{4}[ -]?\d{4}\b`), "[REDACTED_CARD]"},
	{KindSSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[REDACTED_SSN]"},
	{KindPhone, regexp.MustCompile(`\+?\d{1,3}[ -]?\(?\d{2,3}\)?[ -]?\d{3}[ -]?\d{4}\b`), "[REDACTED_PHONE]"},
}

// Config configures a Planner.
type Config struct {
	// PIIKinds lists the enabled PII kinds. Nil enables all of them.
	PIIKinds []string `yaml:"pii_kinds"`

	// VerbRewrites maps a violent verb to its neutral paraphrase. Nil uses
	// DefaultVerbRewrites; an empty map disables rewriting.
	VerbRewrites map[string]string `yaml:"verb_rewrites"`
}

// DefaultVerbRewrites returns the built-in verb paraphrases.
func DefaultVerbRewrites() map[string]string {
	return map[string]string{
		"kill":   "stop",
		"attack": "defuse",
		"bomb":   "secure",
	}
}

// ConfigError reports an invalid mitigation configuration.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("mitigation configuration error for field %q: %s", e.Field, e.Message)
}

type verbRule struct {
	verb       string
	paraphrase string
	re         *regexp.Regexp
}

// Planner applies the configured rules. It is immutable and safe for
// concurrent use.
type Planner struct {
	pii   []piiRule
	verbs []verbRule
}

// New validates cfg and builds a Planner.
func New(cfg Config) (*Planner, error) {
	p := &Planner{}

	if cfg.PIIKinds == nil {
		p.pii = slices.Clone(piiRules)
	} else {
		for _, kind := range cfg.PIIKinds {
			kind = strings.ToLower(strings.TrimSpace(kind))
			idx := slices.IndexFunc(piiRules, func(r piiRule) bool { return r.kind == kind })
			if idx < 0 {
				return nil, &ConfigError{Field: "pii_kinds", Message: fmt.Sprintf("unknown PII kind %q", kind)}
			}
			if !slices.ContainsFunc(p.pii, func(r piiRule) bool { return r.kind == kind }) {
				p.pii = append(p.pii, piiRules[idx])
			}
		}
		// Keep the fixed application order regardless of configuration order.
		sort.SliceStable(p.pii, func(i, j int) bool {
			return ruleIndex(p.pii[i].kind) < ruleIndex(p.pii[j].kind)
		})
	}

	rewrites := cfg.VerbRewrites
	if rewrites == nil {
		rewrites = DefaultVerbRewrites()
	}
	for verb, paraphrase := range rewrites {
		verb = strings.TrimSpace(verb)
		paraphrase = strings.TrimSpace(paraphrase)
		words := strings.Fields(verb)
		if len(words) == 0 {
			return nil, &ConfigError{Field: "verb_rewrites", Message: "empty verb"}
		}
		if paraphrase == "" {
			return nil, &ConfigError{Field: "verb_rewrites." + verb, Message: "empty paraphrase"}
		}
		quoted := make([]string, len(words))
		for i, w := range words {
			quoted[i] = regexp.QuoteMeta(w)
		}
		p.verbs = append(p.verbs, verbRule{
			verb:       strings.ToLower(verb),
			paraphrase: paraphrase,
			re:         regexp.MustCompile(`(?i)` + strings.Join(quoted, `\s+`)),
		})
	}
	// Longer verbs first so a phrase wins over a verb it contains; ties by
	// name for a deterministic order.
	sort.Slice(p.verbs, func(i, j int) bool {
		if len(p.verbs[i].verb) != len(p.verbs[j].verb) {
			return len(p.verbs[i].verb) > len(p.verbs[j].verb)
		}
		return p.verbs[i].verb < p.verbs[j].verb
	})

	if err := p.checkClosed(); err != nil {
		return nil, err
	}
	return p, nil
}

func ruleIndex(kind string) int {
	return slices.IndexFunc(piiRules, func(r piiRule) bool { return r.kind == kind })
}

// checkClosed rejects replacements that could be matched by a rule, alone or
// together with the text around them, which would make plans non-idempotent.
func (p *Planner) checkClosed() error {
	outputs := make([]string, 0, len(p.pii)+len(p.verbs))
	for _, r := range p.pii {
		outputs = append(outputs, r.placeholder)
	}
	for _, v := range p.verbs {
		if strings.ContainsFunc(v.paraphrase, func(r rune) bool { return unicode.IsDigit(r) || r == '@' }) {
			return &ConfigError{Field: "verb_rewrites." + v.verb, Message: fmt.Sprintf("paraphrase %q may form PII with surrounding text", v.paraphrase)}
		}
		outputs = append(outputs, v.paraphrase)
	}

	for _, out := range outputs {
		for _, r := range p.pii {
			if r.re.MatchString(out) {
				return &ConfigError{Field: "verb_rewrites", Message: fmt.Sprintf("replacement %q matches the %s pattern", out, r.kind)}
			}
		}
		outWords := wordsOf(out)
		for _, v := range p.verbs {
			if wordsOverlap(outWords, wordsOf(v.verb)) {
				return &ConfigError{Field: "verb_rewrites", Message: fmt.Sprintf("replacement %q can form the rewritten verb %q", out, v.verb)}
			}
		}
	}
	return nil
}

func wordsOf(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return !isWordRune(r) })
}

// wordsOverlap reports whether out and verb share words at some alignment:
// out contains verb, verb contains out, or one's tail is the other's head.
// Any of these lets a rewrite plus its neighbours spell verb again.
func wordsOverlap(out, verb []string) bool {
	for shift := -(len(verb) - 1); shift < len(out); shift++ {
		matched, overlap := true, 0
		for j, w := range verb {
			i := j + shift
			if i < 0 || i >= len(out) {
				continue
			}
			overlap++
			if out[i] != w {
				matched = false
				break
			}
		}
		if matched && overlap > 0 {
			return true
		}
	}
	return false
}

// Plan computes the mitigation plan for text. It is a pure function.
func (p *Planner) Plan(text string) types.MitigationPlan {
	counts := make(map[string]int)
	var rules []string
	applied := func(id string) {
		if !slices.Contains(rules, id) {
			rules = append(rules, id)
		}
	}

	out := text
	for pass := 0; ; pass++ {
		if pass == maxPasses {
			panic(fmt.Sprintf("mitigation: rules did not settle after %d passes", maxPasses))
		}
		changed := false

		for _, r := range p.pii {
			n := len(r.re.FindAllStringIndex(out, -1))
			if n == 0 {
				continue
			}
			out = r.re.ReplaceAllLiteralString(out, r.placeholder)
			counts[r.kind] += n
			applied("pii_" + r.kind)
			changed = true
		}

		for _, v := range p.verbs {
			var n int
			out, n = rewriteWords(v.re, out, v.paraphrase)
			if n == 0 {
				continue
			}
			counts[KindViolentVerb] += n
			applied("verb_" + v.verb)
			changed = true
		}

		if !changed {
			break
		}
	}

	plan := types.MitigationPlan{
		RewrittenText: out,
		Redactions:    make([]types.Redaction, 0, len(counts)),
		RulesApplied:  rules,
		Mitigated:     out != text,
		Message:       messageNone,
	}
	if plan.RulesApplied == nil {
		plan.RulesApplied = []string{}
	}
	for _, r := range p.pii {
		if n := counts[r.kind]; n > 0 {
			plan.Redactions = append(plan.Redactions, types.Redaction{Kind: r.kind, Replacement: r.placeholder, Count: n})
		}
	}
	if n := counts[KindViolentVerb]; n > 0 {
		plan.Redactions = append(plan.Redactions, types.Redaction{Kind: KindViolentVerb, Count: n})
	}
	if plan.Mitigated {
		plan.Message = messageApplied
	}
	return plan
}

// rewriteWords replaces whole-word matches of re, preserving the case shape
// of each match.
func rewriteWords(re *regexp.Regexp, text, paraphrase string) (string, int) {
	matches := wordMatches(re, text)
	if len(matches) == 0 {
		return text, 0
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		b.WriteString(matchCase(text[m[0]:m[1]], paraphrase))
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String(), len(matches)
}

// wordMatches returns the matches of re not embedded in a longer word.
func wordMatches(re *regexp.Regexp, text string) [][]int {
	var out [][]int
	for _, m := range re.FindAllStringIndex(text, -1) {
		if m[0] > 0 {
			if r, _ := utf8.DecodeLastRuneInString(text[:m[0]]); isWordRune(r) {
				continue
			}
		}
		if m[1] < len(text) {
			if r, _ := utf8.DecodeRuneInString(text[m[1]:]); isWordRune(r) {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// matchCase shapes replacement after original: ALL CAPS, Capitalized or as
// configured.
func matchCase(original, replacement string) string {
	hasLetter, allUpper := false, true
	for _, r := range original {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				allUpper = false
			}
		}
	}
	if hasLetter && allUpper && utf8.RuneCountInString(original) > 1 {
		return strings.ToUpper(replacement)
	}

	first, _ := utf8.DecodeRuneInString(original)
	if unicode.IsUpper(first) {
		r, size := utf8.DecodeRuneInString(replacement)
		return string(unicode.ToUpper(r)) + replacement[size:]
	}
	return replacement
}
