// Package language resolves the language of request text and prepares the
// text the engines score.
//
// Resolution order: a parseable caller-declared language wins; otherwise the
// text is classified with a trigram detector. Short, letter-free or
// low-confidence input resolves to the configured default language rather
// than failing. The scored text is NFKC-normalised and, when translation is
// enabled and the language differs from the pivot, replaced with a
// translation. Translation failures are never fatal.
package language

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/abadojack/whatlanggo"
	xlang "golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"openserver-hq/guardrails/pkg/telemetry/logging"
)

// Config configures a Resolver.
type Config struct {
	// DefaultLanguage is used when the language cannot be determined.
	DefaultLanguage string

	// PivotLanguage is the language engines expect. Text in other languages
	// is translated to it when translation is enabled.
	PivotLanguage string

	// MinDetectRunes is the minimum number of letters required before the
	// detector is consulted.
	MinDetectRunes int

	// MinConfidence is the detector confidence below which the default
	// language is used.
	MinConfidence float64

	// Translate enables translation to the pivot language.
	Translate bool

	// TranslateTimeout bounds a single translation call.
	TranslateTimeout time.Duration
}

// DefaultConfig returns English default and pivot, 12 letters, confidence
// 0.5, translation disabled.
func DefaultConfig() Config {
	return Config{
		DefaultLanguage:  "en",
		PivotLanguage:    "en",
		MinDetectRunes:   12,
		MinConfidence:    0.5,
		TranslateTimeout: 2 * time.Second,
	}
}

// Resolution is the outcome of resolving one text.
type Resolution struct {
	// Language is the canonical BCP-47 tag of the text.
	Language string

	// NormalizedText is the text engines should score.
	NormalizedText string

	// OriginalText is the caller's text, untouched. Mitigation operates on it.
	OriginalText string

	// Detected is true when Language came from the detector.
	Detected bool

	// Translated is true when NormalizedText is a translation.
	Translated bool

	// Confidence is the detector confidence, 1 for a declared language.
	Confidence float64

	// TranslationAttempted is true when a translation call was made.
	TranslationAttempted bool

	// TranslationErr holds the translation failure, if any.
	TranslationErr error
}

// Resolver resolves languages. It is safe for concurrent use.
type Resolver struct {
	config     Config
	translator Translator
	logger     *slog.Logger
}

// NewResolver creates a resolver. A nil translator disables translation.
func NewResolver(cfg Config, translator Translator, logger *slog.Logger) *Resolver {
	def := DefaultConfig()
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = def.DefaultLanguage
	}
	if cfg.PivotLanguage == "" {
		cfg.PivotLanguage = def.PivotLanguage
	}
	if cfg.MinDetectRunes <= 0 {
		cfg.MinDetectRunes = def.MinDetectRunes
	}
	if cfg.TranslateTimeout <= 0 {
		cfg.TranslateTimeout = def.TranslateTimeout
	}
	cfg.DefaultLanguage = Canonical(cfg.DefaultLanguage)
	cfg.PivotLanguage = Canonical(cfg.PivotLanguage)
	if translator == nil {
		translator = NopTranslator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{config: cfg, translator: translator, logger: logger}
}

// Resolve determines the language of text and prepares the scored text.
// It never fails.
func (r *Resolver) Resolve(ctx context.Context, text, declared string) Resolution {
	normalized := norm.NFKC.String(text)
	res := Resolution{
		Language:       r.config.DefaultLanguage,
		NormalizedText: normalized,
		OriginalText:   text,
	}

	if tag, ok := parseTag(declared); ok {
		res.Language = tag
		res.Confidence = 1
	} else {
		if declared != "" {
			logging.FromContext(ctx, r.logger).Debug("ignoring unparseable declared language", "declared", declared)
		}
		if lang, conf, ok := r.detect(normalized); ok {
			res.Language = lang
			res.Confidence = conf
			res.Detected = true
		}
	}

	if !r.config.Translate || sameBase(res.Language, r.config.PivotLanguage) {
		return res
	}
	if _, nop := r.translator.(NopTranslator); nop {
		return res
	}

	tctx, cancel := context.WithTimeout(ctx, r.config.TranslateTimeout)
	defer cancel()

	res.TranslationAttempted = true
	translated, err := r.translator.Translate(tctx, normalized, res.Language, r.config.PivotLanguage)
	if err != nil {
		res.TranslationErr = err
		logging.FromContext(ctx, r.logger).Warn("translation failed, scoring original text",
			"language", res.Language,
			"pivot", r.config.PivotLanguage,
			"error", err,
		)
		return res
	}
	res.NormalizedText = norm.NFKC.String(translated)
	res.Translated = true
	return res
}

// detect classifies text. It reports false when the text is too short, has
// no letters, or the detector is unsure.
func (r *Resolver) detect(text string) (string, float64, bool) {
	letters := 0
	for _, c := range text {
		if unicode.IsLetter(c) {
			letters++
		}
	}
	if letters < r.config.MinDetectRunes {
		return "", 0, false
	}

	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" || info.Confidence < r.config.MinConfidence {
		return "", info.Confidence, false
	}
	tag, ok := parseTag(code)
	if !ok {
		return "", info.Confidence, false
	}
	return tag, info.Confidence, true
}

// Canonical returns the canonical form of a BCP-47 tag, or the lower-cased
// input when it does not parse.
func Canonical(lang string) string {
	if tag, ok := parseTag(lang); ok {
		return tag
	}
	return strings.ToLower(strings.TrimSpace(lang))
}

func parseTag(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	tag, err := xlang.Parse(s)
	if err != nil || tag == xlang.Und {
		return "", false
	}
	return tag.String(), true
}

func sameBase(a, b string) bool {
	ta, errA := xlang.Parse(a)
	tb, errB := xlang.Parse(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	ba, _ := ta.Base()
	bb, _ := tb.Base()
	return ba == bb
}
