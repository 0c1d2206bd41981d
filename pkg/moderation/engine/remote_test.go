package engine

import (
	"context"
	"net/http"
	"testing"
	"time"

	"openserver-hq/guardrails/internal/testutil"
	"openserver-hq/guardrails/pkg/moderation/types"
	"openserver-hq/guardrails/pkg/remote"
)

func testClient(ms *testutil.MockServer, name string) *remote.Client {
	return remote.NewClientWithHTTP(remote.Config{Name: name, Backoff: time.Millisecond}, ms.Client(), nil)
}

func TestExternal_ScoreFormat(t *testing.T) {
	ms := testutil.NewMockServer()
	defer ms.Close()
	ms.SetResponse("/classify", testutil.MockResponse{
		Body: testutil.MockExternalResponse(map[string]float64{"self-harm": 0.9, "hate": 0.1}, "self-harm"),
	})

	ext := NewExternal("policy", ms.URL()+"/classify", "secret", testClient(ms, "policy"), nil)
	out := ext.Call(context.Background(), "text", Metadata{RequestID: "r1", Language: "fr"})
	if out.Failure != nil {
		t.Fatalf("unexpected failure: %v", out.Failure)
	}
	if got := out.Scores[types.CategorySelfHarm]; !almostEqual(got, 0.9) {
		t.Errorf("self_harm = %v, want 0.9", got)
	}
	if len(out.Flagged) != 1 || out.Flagged[0] != types.CategorySelfHarm {
		t.Errorf("Flagged = %v, want [self_harm]", out.Flagged)
	}

	reqs := ms.Requests("/classify")
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	if got := reqs[0].Header.Get("Authorization"); got != "Bearer secret" {
		t.Errorf("Authorization = %q", got)
	}
	var body map[string]string
	if err := reqs[0].Decode(&body); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if body["text"] != "text" || body["language"] != "fr" || body["request_id"] != "r1" {
		t.Errorf("request body = %v", body)
	}
}

func TestExternal_FlaggedDefaultsToPositiveScores(t *testing.T) {
	ms := testutil.NewMockServer()
	defer ms.Close()
	ms.SetResponse("/classify", testutil.MockResponse{
		Body: map[string]any{"scores": map[string]float64{"violence": 0.3, "hate": 0}},
	})

	ext := NewExternal("policy", ms.URL()+"/classify", "", testClient(ms, "policy"), nil)
	out := ext.Call(context.Background(), "text", Metadata{})
	if out.Failure != nil {
		t.Fatalf("unexpected failure: %v", out.Failure)
	}
	if len(out.Flagged) != 1 || out.Flagged[0] != types.CategoryViolence {
		t.Errorf("Flagged = %v, want [violence]", out.Flagged)
	}
	if h := ms.Requests("/classify")[0].Header.Get("Authorization"); h != "" {
		t.Errorf("no credential configured but Authorization = %q", h)
	}
}

func TestExternal_LegacyFormat(t *testing.T) {
	tests := []struct {
		name        string
		body        any
		wantScores  map[types.Category]float64
		wantFlagged int
	}{
		{
			name:        "details per category",
			body:        map[string]any{"severity": 3, "categories": []string{"violence"}, "details": map[string]int{"violence": 3, "hate": 1}},
			wantScores:  map[types.Category]float64{"violence": 0.75, "hate": 0.25},
			wantFlagged: 1,
		},
		{
			name:        "categories without details use overall severity",
			body:        map[string]any{"severity": 2, "categories": []string{"hate"}},
			wantScores:  map[types.Category]float64{"hate": 0.5},
			wantFlagged: 1,
		},
		{
			name:        "categories as map",
			body:        testutil.MockLegacyExternalResponse(4, map[string]int{"violence": 4, "hate": 0}),
			wantScores:  map[types.Category]float64{"violence": 1, "hate": 0},
			wantFlagged: 1,
		},
		{
			name:        "values above scale are capped",
			body:        map[string]any{"severity": 9, "categories": []string{"violence"}, "details": map[string]int{"violence": 9}},
			wantScores:  map[types.Category]float64{"violence": 1},
			wantFlagged: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := testutil.NewMockServer()
			defer ms.Close()
			ms.SetResponse("/classify", testutil.MockResponse{Body: tt.body})

			ext := NewExternal("policy", ms.URL()+"/classify", "", testClient(ms, "policy"), nil)
			out := ext.Call(context.Background(), "text", Metadata{})
			if out.Failure != nil {
				t.Fatalf("unexpected failure: %v", out.Failure)
			}
			for cat, want := range tt.wantScores {
				if got := out.Scores[cat]; !almostEqual(got, want) {
					t.Errorf("score[%s] = %v, want %v", cat, got, want)
				}
			}
			if len(out.Flagged) != tt.wantFlagged {
				t.Errorf("Flagged = %v, want %d entries", out.Flagged, tt.wantFlagged)
			}
		})
	}
}

func TestExternal_Failures(t *testing.T) {
	tests := []struct {
		name     string
		response testutil.MockResponse
		want     types.FailureReason
	}{
		{"server error", testutil.MockResponse{StatusCode: http.StatusInternalServerError, Body: "boom"}, types.FailureStatus},
		{"auth error", testutil.MockResponse{StatusCode: http.StatusUnauthorized}, types.FailureStatus},
		{"malformed json", testutil.MockResponse{Body: "not json"}, types.FailureMalformed},
		{"missing fields", testutil.MockResponse{Body: map[string]any{"ok": true}}, types.FailureMalformed},
		{"score out of range", testutil.MockResponse{Body: map[string]any{"scores": map[string]float64{"hate": 3}}}, types.FailureMalformed},
		{"categories wrong type", testutil.MockResponse{Body: map[string]any{"severity": 1, "categories": 7}}, types.FailureMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := testutil.NewMockServer()
			defer ms.Close()
			ms.SetResponse("/classify", tt.response)

			ext := NewExternal("policy", ms.URL()+"/classify", "", testClient(ms, "policy"), nil)
			out := ext.Call(context.Background(), "text", Metadata{})
			if out.Failure == nil {
				t.Fatal("expected failure")
			}
			if out.Failure.Reason != tt.want {
				t.Errorf("Reason = %q, want %q", out.Failure.Reason, tt.want)
			}
			if out.Failure.Engine != "policy" {
				t.Errorf("Engine = %q", out.Failure.Engine)
			}
		})
	}
}

func TestExternal_Timeout(t *testing.T) {
	ms := testutil.NewMockServer()
	defer ms.Close()
	ms.SetResponse("/classify", testutil.MockResponse{Body: "{}", Delay: time.Second})

	ext := NewExternal("policy", ms.URL()+"/classify", "", testClient(ms, "policy"), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	out := ext.Call(ctx, "text", Metadata{})
	if out.Failure == nil || out.Failure.Reason != types.FailureTimeout {
		t.Fatalf("expected timeout failure, got %+v", out.Failure)
	}
}

func TestNative_TaxonomyMapping(t *testing.T) {
	ms := testutil.NewMockServer()
	defer ms.Close()
	ms.SetResponse("/v1/moderations", testutil.MockResponse{
		Body: testutil.MockModerationResponse(
			map[string]bool{"self-harm/intent": true, "violence": false, "violence/graphic": false, "harassment/threatening": false},
			map[string]float64{"self-harm": 0.4, "self-harm/intent": 0.92, "violence": 0.1, "violence/graphic": 0.3, "harassment/threatening": 0.05},
		),
	})

	native := NewNative("moderation", ms.URL()+"/v1/moderations", "", "sk-test", testClient(ms, "moderation"), map[string]string{"harassment/threatening": "violence"})
	out := native.Call(context.Background(), "text", Metadata{})
	if out.Failure != nil {
		t.Fatalf("unexpected failure: %v", out.Failure)
	}

	want := map[types.Category]float64{
		types.CategorySelfHarm: 0.92,
		types.CategoryViolence: 0.3,
	}
	for cat, s := range want {
		if got := out.Scores[cat]; !almostEqual(got, s) {
			t.Errorf("score[%s] = %v, want %v", cat, got, s)
		}
	}
	if _, ok := out.Scores["harassment"]; ok {
		t.Error("mapped category should not appear under its default name")
	}
	if len(out.Flagged) != 1 || out.Flagged[0] != types.CategorySelfHarm {
		t.Errorf("Flagged = %v, want [self_harm]", out.Flagged)
	}

	var body map[string]string
	if err := ms.Requests("/v1/moderations")[0].Decode(&body); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if body["model"] != DefaultNativeModel || body["input"] != "text" {
		t.Errorf("request body = %v", body)
	}
}

func TestNative_EmptyResults(t *testing.T) {
	ms := testutil.NewMockServer()
	defer ms.Close()
	ms.SetResponse("/v1/moderations", testutil.MockResponse{Body: map[string]any{"results": []any{}}})

	native := NewNative("moderation", ms.URL()+"/v1/moderations", "", "sk-test", testClient(ms, "moderation"), nil)
	out := native.Call(context.Background(), "text", Metadata{})
	if out.Failure == nil || out.Failure.Reason != types.FailureMalformed {
		t.Fatalf("expected malformed failure, got %+v", out.Failure)
	}
}

func TestNormalizeCategory(t *testing.T) {
	tests := map[string]types.Category{
		"self-harm/intent":       types.CategorySelfHarm,
		"self-harm/instructions": types.CategorySelfHarm,
		"violence/graphic":       types.CategoryViolence,
		"hate/threatening":       types.CategoryHate,
		"sexual/minors":          types.CategorySexual,
		"illicit/violent":        types.CategoryIllicit,
		" Harassment ":           types.CategoryHarassment,
	}
	for in, want := range tests {
		if got := normalizeCategory(in); got != want {
			t.Errorf("normalizeCategory(%q) = %q, want %q", in, got, want)
		}
	}
}
