package types

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestAction_Ordering(t *testing.T) {
	if !ActionBlock.Dominates(ActionWarn) || !ActionWarn.Dominates(ActionAllow) {
		t.Error("block > warn > allow ordering broken")
	}
	if ActionAllow.Dominates(ActionWarn) {
		t.Error("allow must not dominate warn")
	}
	if got := MaxAction(ActionWarn, ActionAllow, ActionBlock, ActionWarn); got != ActionBlock {
		t.Errorf("MaxAction() = %v, want block", got)
	}
	if got := MaxAction(); got != ActionAllow {
		t.Errorf("MaxAction() with no args = %v, want allow", got)
	}
}

func TestAction_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Action Action `json:"action"`
	}{ActionWarn})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"action":"warn"}` {
		t.Errorf("Marshal() = %s", data)
	}

	var a Action
	if err := json.Unmarshal([]byte(`"BLOCK"`), &a); err != nil || a != ActionBlock {
		t.Errorf("Unmarshal() = %v, %v", a, err)
	}
	if err := json.Unmarshal([]byte(`"deny"`), &a); err == nil {
		t.Error("expected error for unknown action")
	}
}

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxRunes int
		wantErr  error
	}{
		{"ok", "hello", 10, nil},
		{"empty", "", 10, ErrEmptyText},
		{"whitespace", " \n\t ", 10, ErrEmptyText},
		{"too long", strings.Repeat("a", 11), 10, ErrTextTooLong},
		{"runes not bytes", strings.Repeat("é", 10), 10, nil},
		{"unlimited", strings.Repeat("a", 1000), 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRequest(tt.text, "r1", "").Validate(tt.maxRunes)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if !IsValidation(err) {
				t.Errorf("IsValidation(%v) = false", err)
			}
		})
	}
}

func TestNewRequest_GeneratesID(t *testing.T) {
	a := NewRequest("x", "", " fr ")
	b := NewRequest("x", "", "")
	if a.RequestID() == "" || a.RequestID() == b.RequestID() {
		t.Errorf("expected distinct generated IDs, got %q and %q", a.RequestID(), b.RequestID())
	}
	if a.DeclaredLanguage() != "fr" {
		t.Errorf("DeclaredLanguage() = %q, want fr", a.DeclaredLanguage())
	}
	if got := NewRequest("x", "abc", "").RequestID(); got != "abc" {
		t.Errorf("RequestID() = %q, want abc", got)
	}
}

func TestNewVerdict_ClampsAndCopies(t *testing.T) {
	scores := map[Category]float64{CategoryHate: 1.5, CategoryViolence: -0.2, CategorySexual: math.NaN()}
	flagged := []Category{CategoryViolence, CategoryHate, CategoryHate, ""}

	v := NewVerdict("e", KindExternal, scores, flagged, 0)
	scores[CategoryHate] = 0.1

	if v.Score(CategoryHate) != 1 || v.Score(CategoryViolence) != 0 || v.Score(CategorySexual) != 0 {
		t.Errorf("scores not clamped: %v", v.Scores)
	}
	if len(v.Flagged) != 2 || v.Flagged[0] != CategoryHate || v.Flagged[1] != CategoryViolence {
		t.Errorf("Flagged = %v, want sorted unique", v.Flagged)
	}
	if !v.HasFlagged(CategoryViolence) || v.HasFlagged(CategorySexual) {
		t.Error("HasFlagged mismatch")
	}
	if v.Severity() != 1 {
		t.Errorf("Severity() = %v, want 1", v.Severity())
	}
}

func TestEngineVerdict_FallbackAndJSON(t *testing.T) {
	h := NewVerdict("heuristic", KindHeuristic, map[Category]float64{CategorySelfHarm: 0.4}, []Category{CategorySelfHarm}, 0)
	fb := h.AsFallback("policy-api", KindExternal, FailureBreakerOpen, 0)

	if fb.Engine != "policy-api" || fb.Kind != KindExternal || !fb.Errored || !fb.Fallback {
		t.Errorf("fallback verdict = %+v", fb)
	}

	data, err := json.Marshal(fb)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["severity"] != 0.4 || decoded["failure_reason"] != "breaker_open" {
		t.Errorf("encoded verdict = %s", data)
	}

	errored := ErroredVerdict("x", KindNative, FailureTimeout, 0)
	if errored.Severity() != 0 || len(errored.Flagged) != 0 || errored.Fallback {
		t.Errorf("errored verdict = %+v", errored)
	}
}

func TestMitigationPlan_RedactionCount(t *testing.T) {
	p := &MitigationPlan{Redactions: []Redaction{{Kind: "email", Count: 2}, {Kind: "violent_verb", Count: 3}}}
	if got := p.RedactionCount(); got != 5 {
		t.Errorf("RedactionCount() = %d, want 5", got)
	}
}
