package aggregate

import (
	"math/rand"
	"testing"

	"openserver-hq/guardrails/pkg/moderation/culture"
	"openserver-hq/guardrails/pkg/moderation/types"
)

func verdict(engine string, scores map[types.Category]float64, flagged ...types.Category) types.EngineVerdict {
	return types.NewVerdict(engine, types.KindHeuristic, scores, flagged, 0)
}

func profile(t *testing.T, cfg culture.ProfileConfig) culture.Profile {
	t.Helper()
	store, err := culture.NewStore(map[string]culture.ProfileConfig{"fr": cfg})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store.Lookup("fr")
}

func TestAggregate_SingleKeywordWarns(t *testing.T) {
	v := verdict("heuristic", map[types.Category]float64{types.CategoryViolence: 0.4}, types.CategoryViolence)

	res := Aggregate([]types.EngineVerdict{v}, culture.IdentityProfile(), DefaultThresholds())
	if res.Action != types.ActionWarn {
		t.Errorf("Action = %v, want warn", res.Action)
	}
	if len(res.Categories) != 1 || res.Categories[0] != types.CategoryViolence {
		t.Errorf("Categories = %v, want [violence]", res.Categories)
	}
	if res.Severity != 0.4 {
		t.Errorf("Severity = %v, want 0.4", res.Severity)
	}
}

func TestAggregate_CulturalBlock(t *testing.T) {
	v := verdict("heuristic", map[types.Category]float64{types.CategoryViolence: 0.4}, types.CategoryViolence)
	p := profile(t, culture.ProfileConfig{BlockedCategories: []string{"violence"}})

	res := Aggregate([]types.EngineVerdict{v}, p, DefaultThresholds())
	if res.Action != types.ActionBlock {
		t.Errorf("Action = %v, want block", res.Action)
	}
	if !res.CulturalBlock {
		t.Error("CulturalBlock should be set")
	}
}

func TestAggregate_CulturalBlockNeedsFlag(t *testing.T) {
	// Low violence score with no engine flagging it: the profile must not
	// manufacture a violation.
	v := verdict("native", map[types.Category]float64{types.CategoryViolence: 0.05})
	p := profile(t, culture.ProfileConfig{BlockedCategories: []string{"violence"}})

	res := Aggregate([]types.EngineVerdict{v}, p, DefaultThresholds())
	if res.Action != types.ActionAllow {
		t.Errorf("Action = %v, want allow", res.Action)
	}
	if len(res.Categories) != 0 {
		t.Errorf("Categories = %v, want none", res.Categories)
	}
}

func TestAggregate_CulturalBlockAddsCategoryBelowWarn(t *testing.T) {
	v := verdict("native", map[types.Category]float64{types.CategoryHate: 0.1}, types.CategoryHate)
	p := profile(t, culture.ProfileConfig{BlockedCategories: []string{"hate"}})

	res := Aggregate([]types.EngineVerdict{v}, p, DefaultThresholds())
	if res.Action != types.ActionBlock {
		t.Errorf("Action = %v, want block", res.Action)
	}
	if len(res.Categories) != 1 || res.Categories[0] != types.CategoryHate {
		t.Errorf("Categories = %v, want [hate]", res.Categories)
	}
}

func TestAggregate_Thresholds(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  types.Action
	}{
		{"below warn", 0.29, types.ActionAllow},
		{"at warn", 0.3, types.ActionWarn},
		{"between", 0.5, types.ActionWarn},
		{"at block", 0.7, types.ActionBlock},
		{"above block", 0.95, types.ActionBlock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := verdict("e", map[types.Category]float64{types.CategoryHate: tt.score})
			res := Aggregate([]types.EngineVerdict{v}, culture.IdentityProfile(), DefaultThresholds())
			if res.Action != tt.want {
				t.Errorf("Action = %v, want %v", res.Action, tt.want)
			}
		})
	}
}

func TestAggregate_BiasScalesAndClamps(t *testing.T) {
	p := profile(t, culture.ProfileConfig{CategoryBias: map[string]float64{"hate": 2.0, "violence": 0.5}})
	verdicts := []types.EngineVerdict{
		verdict("a", map[types.Category]float64{types.CategoryHate: 0.6, types.CategoryViolence: 0.8}),
	}

	res := Aggregate(verdicts, p, DefaultThresholds())
	if got := res.CategorySeverity[types.CategoryHate]; got != 1.0 {
		t.Errorf("fused hate = %v, want clamped 1.0", got)
	}
	if got := res.CategorySeverity[types.CategoryViolence]; got != 0.4 {
		t.Errorf("fused violence = %v, want 0.4", got)
	}
	if res.Action != types.ActionBlock {
		t.Errorf("Action = %v, want block", res.Action)
	}
}

func TestAggregate_MaxAcrossEngines(t *testing.T) {
	verdicts := []types.EngineVerdict{
		verdict("a", map[types.Category]float64{types.CategoryHate: 0.2}),
		verdict("b", map[types.Category]float64{types.CategoryHate: 0.5}),
		types.ErroredVerdict("c", types.KindExternal, types.FailureTimeout, 0),
	}

	res := Aggregate(verdicts, culture.IdentityProfile(), DefaultThresholds())
	if got := res.CategorySeverity[types.CategoryHate]; got != 0.5 {
		t.Errorf("fused hate = %v, want 0.5", got)
	}
}

func TestAggregate_EmptyAndErroredAllow(t *testing.T) {
	for _, verdicts := range [][]types.EngineVerdict{
		nil,
		{types.ErroredVerdict("x", types.KindExternal, types.FailureTransport, 0)},
	} {
		res := Aggregate(verdicts, culture.IdentityProfile(), DefaultThresholds())
		if res.Action != types.ActionAllow || res.Severity != 0 || len(res.Categories) != 0 {
			t.Errorf("expected clean allow, got %+v", res)
		}
	}
}

// Raising any single engine score never lowers the fused severity or the action.
func TestAggregate_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cats := []types.Category{types.CategoryHate, types.CategoryViolence, types.CategorySelfHarm}
	p := profile(t, culture.ProfileConfig{CategoryBias: map[string]float64{"hate": 1.3, "violence": 0.7}})

	for i := 0; i < 200; i++ {
		base := make([]types.EngineVerdict, 3)
		for e := range base {
			scores := map[types.Category]float64{}
			for _, c := range cats {
				scores[c] = rng.Float64()
			}
			base[e] = verdict(string(rune('a'+e)), scores)
		}
		before := Aggregate(base, p, DefaultThresholds())

		e := rng.Intn(len(base))
		c := cats[rng.Intn(len(cats))]
		raised := base[e].Clone()
		raised.Scores[c] = min(1, raised.Scores[c]+rng.Float64()*0.5)
		bumped := append([]types.EngineVerdict(nil), base...)
		bumped[e] = raised
		after := Aggregate(bumped, p, DefaultThresholds())

		if after.CategorySeverity[c] < before.CategorySeverity[c] {
			t.Fatalf("fused severity for %s decreased: %v -> %v", c, before.CategorySeverity[c], after.CategorySeverity[c])
		}
		if !after.Action.Dominates(before.Action) {
			t.Fatalf("action decreased: %v -> %v", before.Action, after.Action)
		}
	}
}

func TestThresholds_Validate(t *testing.T) {
	tests := []struct {
		name    string
		th      Thresholds
		wantErr bool
	}{
		{"defaults", DefaultThresholds(), false},
		{"equal", Thresholds{Warn: 0.5, Block: 0.5}, false},
		{"block of one", Thresholds{Warn: 0.2, Block: 1}, false},
		{"warn above block", Thresholds{Warn: 0.8, Block: 0.7}, true},
		{"zero warn", Thresholds{Warn: 0, Block: 0.7}, true},
		{"above one", Thresholds{Warn: 0.3, Block: 1.2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.th.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
