package logging

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// RedactPattern is a custom redaction rule.
type RedactPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// Redactor redacts PII and credentials from log attributes.
type Redactor struct {
	patterns []redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Common PII pattern names.
const (
	PatternAPIKey      = "api_key"
	PatternBearerToken = "bearer_token"
	PatternEmail       = "email"
	PatternCreditCard  = "credit_card"
	PatternSSN         = "ssn"
	PatternPhone       = "phone"
	PatternPassword    = "password"
)

// defaultPatterns are applied in order; bearer tokens before API keys so
// the "Bearer" prefix survives.
var defaultPatterns = []struct {
	name        string
	regex       string
	replacement string
}{
	{PatternBearerToken, `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***"},
	{PatternAPIKey, `(sk-[a-zA-Z0-9_-]+|api[-_]?key[-_:]\s*[a-zA-Z0-9]+)`, "sk-***"},
	{PatternEmail, `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, "***@***"},
	{PatternCreditCard, `\b(?:\d[ -]?){12,15}\d\b`, "****-****-****-****"},
	{PatternSSN, `\b\d{3}-\d{2}-\d{4}\b`, "***-**-****"},
	{PatternPhone, `\+?\d{1,3}[-.\s]\(?\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`, "***-***-****"},
	{PatternPassword, `(password|passwd|pwd)[:=]\s*[^\s]+`, "$1: ***"},
}

// sensitiveKeys mark attributes whose value is hidden regardless of content.
var sensitiveKeys = []string{
	"password", "passwd", "secret", "token", "api_key", "apikey",
	"authorization", "credential", "private_key",
}

// NewRedactor creates a Redactor with the default patterns plus custom ones.
// An invalid custom pattern is an error.
func NewRedactor(custom []RedactPattern) (*Redactor, error) {
	r := &Redactor{patterns: make([]redactPattern, 0, len(defaultPatterns)+len(custom))}

	for _, p := range defaultPatterns {
		r.patterns = append(r.patterns, redactPattern{
			name:        p.name,
			regex:       regexp.MustCompile(p.regex),
			replacement: p.replacement,
		})
	}

	for _, p := range custom {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid redact pattern %q: %w", p.Name, err)
		}
		r.patterns = append(r.patterns, redactPattern{name: p.Name, regex: regex, replacement: p.Replacement})
	}

	return r, nil
}

// RedactString redacts PII from a string value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// RedactAttr returns a with sensitive content masked. Groups are walked
// recursively.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, maskValue(a.Value))
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, r.RedactString(a.Value.String()))
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]any, len(attrs))
		for i, ga := range attrs {
			out[i] = r.RedactAttr(ga)
		}
		return slog.Group(a.Key, out...)
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
	}
	return a
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// maskValue keeps a short prefix of string values for debugging.
func maskValue(v slog.Value) string {
	if v.Kind() != slog.KindString {
		return "***"
	}
	s := v.String()
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "***"
}
