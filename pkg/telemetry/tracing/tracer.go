package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// InstrumentationName names the tracer that produces guardrails spans.
const InstrumentationName = "openserver-hq/guardrails"

// DefaultServiceName is reported as service.name when none is configured.
const DefaultServiceName = "guardrails"

// Config configures tracing.
type Config struct {
	// Enabled records spans. When false spans are no-ops but incoming trace
	// context is still propagated.
	Enabled bool

	// ServiceName is reported as the service.name resource attribute.
	ServiceName string

	// Sampler is "always", "never" or "ratio".
	Sampler string

	// SampleRatio is used by the "ratio" sampler.
	SampleRatio float64
}

// Option configures New.
type Option func(*options)

type options struct {
	processors []sdktrace.SpanProcessor
}

// WithSpanProcessor attaches a span processor, typically a batcher wrapping
// an exporter.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) {
		o.processors = append(o.processors, sp)
	}
}

// Tracer wraps the OpenTelemetry tracer used by the service.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	enabled  bool
}

// New creates a Tracer and installs the W3C trace context propagator
// globally. When enabled, the SDK provider also becomes the global provider.
//
// The tracer must be shut down when no longer needed:
//
//	defer tracer.Shutdown(context.Background())
func New(cfg Config, opts ...Option) (*Tracer, error) {
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	if !cfg.Enabled {
		return &Tracer{tracer: noop.NewTracerProvider().Tracer(InstrumentationName)}, nil
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sampler, err := createSampler(cfg.Sampler, cfg.SampleRatio)
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
		sdktrace.WithSampler(sampler),
	}
	for _, sp := range o.processors {
		providerOpts = append(providerOpts, sdktrace.WithSpanProcessor(sp))
	}

	provider := sdktrace.NewTracerProvider(providerOpts...)
	otel.SetTracerProvider(provider)

	return &Tracer{
		tracer:   provider.Tracer(InstrumentationName),
		provider: provider,
		enabled:  true,
	}, nil
}

// Noop returns a disabled tracer without touching global state.
func Noop() *Tracer {
	return &Tracer{tracer: noop.NewTracerProvider().Tracer(InstrumentationName)}
}

// Start creates a span that is a child of any span in ctx.
//
//	ctx, span := tracer.Start(ctx, "operation")
//	defer span.End()
func (t *Tracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// Shutdown flushes pending spans and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// Enabled reports whether spans are recorded.
func (t *Tracer) Enabled() bool {
	return t.enabled
}

// TraceID returns the trace id carried by ctx, or "" when there is none.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// SetError records err on span and marks it failed. A nil err sets the
// status to OK.
func SetError(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
