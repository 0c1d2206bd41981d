package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"openserver-hq/guardrails/pkg/moderation/types"
)

const traceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

func newRecordingTracer(t *testing.T) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tracer, err := New(Config{Enabled: true, Sampler: SamplerAlways}, WithSpanProcessor(rec))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })
	return tracer, rec
}

func TestNew_Disabled(t *testing.T) {
	tracer, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if tracer.Enabled() {
		t.Error("expected disabled tracer")
	}

	ctx, span := tracer.Start(context.Background(), "noop")
	span.End()
	if span.IsRecording() || TraceID(ctx) != "" {
		t.Error("disabled tracer must not record or invent trace ids")
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNew_InvalidSampler(t *testing.T) {
	if _, err := New(Config{Enabled: true, Sampler: "sometimes"}); err == nil {
		t.Error("expected error for unknown sampler")
	}
	if _, err := New(Config{Enabled: true, Sampler: SamplerRatio, SampleRatio: 1.5}); err == nil {
		t.Error("expected error for ratio above 1")
	}
}

func TestValidateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{"", 0, false},
		{SamplerAlways, 0, false},
		{SamplerNever, 0, false},
		{SamplerRatio, 0.25, false},
		{SamplerRatio, -0.1, true},
		{"random", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			err := ValidateSampler(tt.strategy, tt.ratio)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSampler(%q, %v) error = %v, wantErr %v", tt.strategy, tt.ratio, err, tt.wantErr)
			}
		})
	}
}

func TestTracer_RecordsDecision(t *testing.T) {
	tracer, rec := newRecordingTracer(t)

	ctx, span := tracer.Start(context.Background(), "moderation.process")
	if TraceID(ctx) == "" {
		t.Error("expected trace id for a recording span")
	}
	AddStageEvent(span, "chaining")
	AddVerdictEvent(span, types.ErroredVerdict("policy-api", types.KindExternal, types.FailureTimeout, 2*time.Millisecond))
	SetDecisionAttributes(span, &types.Decision{
		Language:       "fr",
		Action:         types.ActionWarn,
		Severity:       0.5,
		ProfileApplied: "profile_fr",
		Categories:     []types.Category{types.CategoryViolence},
		Mitigation:     &types.MitigationPlan{Mitigated: true, Redactions: []types.Redaction{{Kind: "email", Count: 2}}},
	})
	SetError(span, errors.New("boom"))
	span.End()

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	got := spans[0]
	if got.Name() != "moderation.process" {
		t.Errorf("span name = %q", got.Name())
	}
	if got.Status().Code != codes.Error {
		t.Errorf("status = %v, want error", got.Status().Code)
	}

	attrs := map[string]string{}
	for _, kv := range got.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[string(AttrAction)] != "warn" || attrs[string(AttrProfile)] != "profile_fr" || attrs[string(AttrRedactions)] != "2" {
		t.Errorf("attributes = %v", attrs)
	}

	var names []string
	for _, ev := range got.Events() {
		names = append(names, ev.Name)
	}
	if len(names) < 2 || names[0] != EventStage || names[1] != EventVerdict {
		t.Errorf("events = %v", names)
	}
}

func TestHTTPMiddleware_ContinuesIncomingTrace(t *testing.T) {
	tracer, rec := newRecordingTracer(t)

	var innerTraceID string
	handler := HTTPMiddleware(tracer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		innerTraceID = TraceID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/moderations", nil)
	req.Header.Set("traceparent", traceparent)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	const want = "4bf92f3577b34da6a3ce929d0e0e4736"
	if innerTraceID != want {
		t.Errorf("handler trace id = %q, want %q", innerTraceID, want)
	}
	if rr.Header().Get(TraceIDHeader) != want {
		t.Errorf("X-Trace-ID = %q", rr.Header().Get(TraceIDHeader))
	}
	if spans := rec.Ended(); len(spans) != 1 || spans[0].Name() != "POST /v1/moderations" {
		t.Errorf("unexpected spans %v", spans)
	}
}

func TestInjectExtract(t *testing.T) {
	if _, err := New(Config{}); err != nil {
		t.Fatal(err)
	}

	in := http.Header{}
	in.Set("traceparent", traceparent)
	ctx := Extract(context.Background(), in)

	out := http.Header{}
	Inject(ctx, out)
	if out.Get("traceparent") != traceparent {
		t.Errorf("traceparent = %q, want %q", out.Get("traceparent"), traceparent)
	}
}
