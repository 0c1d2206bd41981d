package types

import (
	"encoding/json"
	"maps"
	"slices"
	"time"
)

// Category is a policy category in the internal taxonomy (e.g. "violence").
// The set is open: configuration may introduce categories beyond the built-ins.
type Category string

// Built-in categories shared by the heuristic defaults and the native taxonomy mapping.
const (
	CategoryViolence   Category = "violence"
	CategorySelfHarm   Category = "self_harm"
	CategoryHate       Category = "hate"
	CategoryHarassment Category = "harassment"
	CategorySexual     Category = "sexual"
	CategoryIllicit    Category = "illicit"
	CategoryPII        Category = "pii"
)

// EngineKind identifies which engine variant produced a verdict.
type EngineKind string

const (
	// KindHeuristic is the in-process keyword/pattern scorer.
	KindHeuristic EngineKind = "heuristic"

	// KindExternal delegates to a remote HTTP policy service.
	KindExternal EngineKind = "external"

	// KindNative delegates to a remote general-purpose moderation classifier.
	KindNative EngineKind = "native"
)

// IsRemote reports whether engines of this kind make network calls.
func (k EngineKind) IsRemote() bool {
	return k == KindExternal || k == KindNative
}

// FailureReason classifies why a remote engine call did not yield scores.
type FailureReason string

const (
	FailureNone        FailureReason = ""
	FailureTransport   FailureReason = "transport"
	FailureTimeout     FailureReason = "timeout"
	FailureStatus      FailureReason = "status"
	FailureMalformed   FailureReason = "malformed"
	FailureBreakerOpen FailureReason = "breaker_open"
	FailureCancelled   FailureReason = "cancelled"
	FailureDeadline    FailureReason = "deadline"
	FailurePanic       FailureReason = "panic"
)

// EngineVerdict is one engine's scored output for one request.
// Verdicts are created through NewVerdict or ErroredVerdict and must not be
// mutated afterwards; accessors return copies.
type EngineVerdict struct {
	// Engine is the configured engine name (the chain slot).
	Engine string `json:"engine"`

	// Kind is the engine variant.
	Kind EngineKind `json:"kind"`

	// Scores maps category to severity in [0,1].
	Scores map[Category]float64 `json:"scores,omitempty"`

	// Flagged is the sorted set of categories the engine flagged.
	Flagged []Category `json:"categories"`

	// Errored is true when the engine's own evaluation failed. Fallback
	// verdicts keep Errored=true and carry the heuristic scores.
	Errored bool `json:"errored"`

	// Fallback is true when Scores came from the heuristic fallback.
	Fallback bool `json:"fallback,omitempty"`

	// FailureReason explains an errored verdict.
	FailureReason FailureReason `json:"failure_reason,omitempty"`

	// Latency is the wall time spent producing the verdict.
	Latency time.Duration `json:"latency_ns"`
}

// NewVerdict builds a successful verdict. Scores are clamped to [0,1] and the
// inputs are copied so later changes by the caller do not leak in.
func NewVerdict(engine string, kind EngineKind, scores map[Category]float64, flagged []Category, latency time.Duration) EngineVerdict {
	return EngineVerdict{
		Engine:  engine,
		Kind:    kind,
		Scores:  clampScores(scores),
		Flagged: SortedCategories(flagged),
		Latency: latency,
	}
}

// ErroredVerdict builds an errored verdict with an empty body.
func ErroredVerdict(engine string, kind EngineKind, reason FailureReason, latency time.Duration) EngineVerdict {
	return EngineVerdict{
		Engine:        engine,
		Kind:          kind,
		Scores:        map[Category]float64{},
		Flagged:       []Category{},
		Errored:       true,
		FailureReason: reason,
		Latency:       latency,
	}
}

// AsFallback re-labels a heuristic verdict as the fallback for a failed slot.
// The returned verdict keeps the slot's name and kind and is marked errored.
func (v EngineVerdict) AsFallback(engine string, kind EngineKind, reason FailureReason, latency time.Duration) EngineVerdict {
	return EngineVerdict{
		Engine:        engine,
		Kind:          kind,
		Scores:        clampScores(v.Scores),
		Flagged:       SortedCategories(v.Flagged),
		Errored:       true,
		Fallback:      true,
		FailureReason: reason,
		Latency:       latency,
	}
}

// Score returns the severity for a category (0 when absent).
func (v EngineVerdict) Score(c Category) float64 {
	return v.Scores[c]
}

// Severity returns the maximum severity across categories.
func (v EngineVerdict) Severity() float64 {
	top := 0.0
	for _, s := range v.Scores {
		if s > top {
			top = s
		}
	}
	return top
}

// MarshalJSON adds the derived overall severity to the encoded verdict.
func (v EngineVerdict) MarshalJSON() ([]byte, error) {
	type plain EngineVerdict
	return json.Marshal(struct {
		plain
		Severity float64 `json:"severity"`
	}{plain: plain(v), Severity: v.Severity()})
}

// HasFlagged reports whether the engine flagged category c.
func (v EngineVerdict) HasFlagged(c Category) bool {
	_, found := slices.BinarySearch(v.Flagged, c)
	return found
}

// Clone returns a deep copy of the verdict.
func (v EngineVerdict) Clone() EngineVerdict {
	out := v
	out.Scores = maps.Clone(v.Scores)
	out.Flagged = slices.Clone(v.Flagged)
	return out
}

// SortedCategories returns a sorted, de-duplicated copy of cs without empty entries.
func SortedCategories(cs []Category) []Category {
	out := make([]Category, 0, len(cs))
	for _, c := range cs {
		if c != "" {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func clampScores(in map[Category]float64) map[Category]float64 {
	out := make(map[Category]float64, len(in))
	for c, s := range in {
		out[c] = Clamp01(s)
	}
	return out
}

// Clamp01 clamps f to [0,1]; NaN maps to 0.
func Clamp01(f float64) float64 {
	switch {
	case f != f:
		return 0
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
