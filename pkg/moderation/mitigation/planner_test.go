package mitigation

import (
	"errors"
	"strings"
	"testing"

	"openserver-hq/guardrails/pkg/moderation/types"
)

func newPlanner(t *testing.T, cfg Config) *Planner {
	t.Helper()
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func redaction(plan types.MitigationPlan, kind string) (types.Redaction, bool) {
	for _, r := range plan.Redactions {
		if r.Kind == kind {
			return r, true
		}
	}
	return types.Redaction{}, false
}

func TestPlan_EmailAndVerb(t *testing.T) {
	p := newPlanner(t, Config{})

	plan := p.Plan("email me at bob@example.com or I'll kill the process")

	want := "email me at [REDACTED_EMAIL] or I'll stop the process"
	if plan.RewrittenText != want {
		t.Errorf("RewrittenText = %q, want %q", plan.RewrittenText, want)
	}
	if !plan.Mitigated || plan.Message != "Mitigation applied" {
		t.Errorf("Mitigated = %v, Message = %q", plan.Mitigated, plan.Message)
	}
	if r, ok := redaction(plan, KindEmail); !ok || r.Count != 1 {
		t.Errorf("email redaction = %+v, ok=%v", r, ok)
	}
	if r, ok := redaction(plan, KindViolentVerb); !ok || r.Count != 1 {
		t.Errorf("verb redaction = %+v, ok=%v", r, ok)
	}
	if len(plan.RulesApplied) != 2 || plan.RulesApplied[0] != "pii_email" || plan.RulesApplied[1] != "verb_kill" {
		t.Errorf("RulesApplied = %v", plan.RulesApplied)
	}
}

func TestPlan_NothingToDo(t *testing.T) {
	p := newPlanner(t, Config{})

	plan := p.Plan("The weather is lovely today.")
	if plan.Mitigated || plan.Message != "No mitigation necessary" {
		t.Errorf("unexpected plan %+v", plan)
	}
	if plan.RewrittenText != "The weather is lovely today." {
		t.Errorf("RewrittenText = %q", plan.RewrittenText)
	}
	if len(plan.Redactions) != 0 || len(plan.RulesApplied) != 0 {
		t.Errorf("expected no redactions, got %+v", plan)
	}
}

func TestPlan_PIIKinds(t *testing.T) {
	p := newPlanner(t, Config{})

	tests := []struct {
		name string
		text string
		kind string
		want string
	}{
		{"card spaced", "card 4111 1111 1111 1111 please", KindCard, "card [REDACTED_CARD] please"},
		{"card dashed", "4111-1111-1111-1111", KindCard, "[REDACTED_CARD]"},
		{"ssn", "my ssn is 123-45-6789.", KindSSN, "my ssn is [REDACTED_SSN]."},
		{"phone", "call +1 555 123 4567 now", KindPhone, "call [REDACTED_PHONE] now"},
		{"email", "write to a.b+c@mail.example.org", KindEmail, "write to [REDACTED_EMAIL]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := p.Plan(tt.text)
			if plan.RewrittenText != tt.want {
				t.Errorf("RewrittenText = %q, want %q", plan.RewrittenText, tt.want)
			}
			if _, ok := redaction(plan, tt.kind); !ok {
				t.Errorf("missing %s redaction in %+v", tt.kind, plan.Redactions)
			}
		})
	}
}

func TestPlan_VerbCaseAndWordBoundaries(t *testing.T) {
	p := newPlanner(t, Config{})

	tests := []struct {
		in   string
		want string
	}{
		{"Kill it", "Stop it"},
		{"KILL IT", "STOP IT"},
		{"they attack at dawn", "they defuse at dawn"},
		{"a skilled killer", "a skilled killer"},
		{"bombastic prose", "bombastic prose"},
		{"bomb, bomb; bomb", "secure, secure; secure"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := p.Plan(tt.in).RewrittenText; got != tt.want {
				t.Errorf("Plan(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPlan_Idempotent(t *testing.T) {
	p := newPlanner(t, Config{})

	inputs := []string{
		"email me at bob@example.com or I'll kill the process",
		"card 4111 1111 1111 1111, ssn 123-45-6789, phone 555-123-4567",
		"ATTACK the BOMB site and kill kill kill",
		"nothing here",
		"",
	}

	for _, in := range inputs {
		first := p.Plan(in)
		second := p.Plan(first.RewrittenText)
		if second.RewrittenText != first.RewrittenText {
			t.Errorf("second plan changed text: %q -> %q", first.RewrittenText, second.RewrittenText)
		}
		if len(second.Redactions) != 0 || second.Mitigated {
			t.Errorf("second plan for %q should be empty, got %+v", in, second)
		}
	}
}

func TestPlan_DisabledRules(t *testing.T) {
	p := newPlanner(t, Config{PIIKinds: []string{"ssn"}, VerbRewrites: map[string]string{}})

	text := "bob@example.com will kill 123-45-6789"
	plan := p.Plan(text)
	want := "bob@example.com will kill [REDACTED_SSN]"
	if plan.RewrittenText != want {
		t.Errorf("RewrittenText = %q, want %q", plan.RewrittenText, want)
	}
	if len(plan.Redactions) != 1 {
		t.Errorf("Redactions = %+v, want only ssn", plan.Redactions)
	}
}

func TestNew_RejectsUnstableConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"unknown kind", Config{PIIKinds: []string{"passport"}}},
		{"empty paraphrase", Config{VerbRewrites: map[string]string{"kill": " "}}},
		{"empty verb", Config{VerbRewrites: map[string]string{"": "stop"}}},
		{"paraphrase is a verb", Config{VerbRewrites: map[string]string{"kill": "attack", "attack": "defuse"}}},
		{"paraphrase contains itself", Config{VerbRewrites: map[string]string{"hit": "hit softly"}}},
		{"paraphrase looks like pii", Config{VerbRewrites: map[string]string{"kill": "mail x@example.com"}}},
		{"paraphrase starts another verb", Config{VerbRewrites: map[string]string{"shoot him": "stop", "stop him": "shoot"}}},
		{"paraphrase ends another verb", Config{VerbRewrites: map[string]string{"kill": "go blow", "blow up": "deflate"}}},
		{"paraphrase inside another verb", Config{VerbRewrites: map[string]string{"kill": "up", "blow up now": "calm"}}},
		{"paraphrase joins through punctuation", Config{VerbRewrites: map[string]string{"kill": "x-stop", "stop him": "calm"}}},
		{"paraphrase with digits", Config{VerbRewrites: map[string]string{"kill": "call 555"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("New() error = %v, want *ConfigError", err)
			}
			if !strings.Contains(cfgErr.Error(), "mitigation configuration error") {
				t.Errorf("unexpected message %q", cfgErr.Error())
			}
		})
	}
}

func TestPlan_MultiWordVerb(t *testing.T) {
	p := newPlanner(t, Config{VerbRewrites: map[string]string{"blow up": "deflate", "blow": "puff"}})

	got := p.Plan("Blow  up the balloon, then blow gently").RewrittenText
	want := "Deflate the balloon, then puff gently"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPlan_RepeatedMultiWordVerbSettles(t *testing.T) {
	p := newPlanner(t, Config{VerbRewrites: map[string]string{"shoot him": "calm him", "stab": "poke"}})

	in := "shoot" + strings.Repeat(" him", 20) + " then stab stab"
	first := p.Plan(in)
	if strings.Contains(strings.ToLower(first.RewrittenText), "shoot") {
		t.Fatalf("verb left in %q", first.RewrittenText)
	}
	second := p.Plan(first.RewrittenText)
	if second.Mitigated || len(second.Redactions) != 0 {
		t.Errorf("second plan should be empty, got %+v", second)
	}
}

func TestWordsOverlap(t *testing.T) {
	tests := []struct {
		out, verb string
		want      bool
	}{
		{"stop", "stop him", true},
		{"go blow", "blow up", true},
		{"up", "blow up now", true},
		{"hit softly", "hit", true},
		{"calm him", "shoot him", false},
		{"stop", "kill", false},
		{"[REDACTED_EMAIL]", "kill", false},
	}

	for _, tt := range tests {
		if got := wordsOverlap(wordsOf(tt.out), wordsOf(tt.verb)); got != tt.want {
			t.Errorf("wordsOverlap(%q, %q) = %v, want %v", tt.out, tt.verb, got, tt.want)
		}
	}
}
