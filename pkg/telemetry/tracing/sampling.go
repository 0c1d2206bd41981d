package tracing

import (
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Sampling strategies.
const (
	// SamplerAlways samples all traces
	SamplerAlways = "always"

	// SamplerNever samples no traces
	SamplerNever = "never"

	// SamplerRatio samples a fraction of traces by trace id
	SamplerRatio = "ratio"
)

// createSampler builds a parent-based sampler. An empty strategy means
// always.
func createSampler(strategy string, ratio float64) (sdktrace.Sampler, error) {
	if err := ValidateSampler(strategy, ratio); err != nil {
		return nil, err
	}

	var base sdktrace.Sampler
	switch strategy {
	case SamplerNever:
		base = sdktrace.NeverSample()
	case SamplerRatio:
		// Ratio sampling hashes the trace id, so every service sharing a
		// trace reaches the same decision.
		base = sdktrace.TraceIDRatioBased(ratio)
	default:
		base = sdktrace.AlwaysSample()
	}

	return sdktrace.ParentBased(base), nil
}

// ValidateSampler checks a sampling strategy and ratio.
func ValidateSampler(strategy string, ratio float64) error {
	switch strategy {
	case "", SamplerAlways, SamplerNever:
		return nil
	case SamplerRatio:
		if ratio < 0.0 || ratio > 1.0 {
			return fmt.Errorf("sample ratio must be between 0.0 and 1.0, got %f", ratio)
		}
		return nil
	default:
		return fmt.Errorf("unknown sampler strategy: %s (valid: always, never, ratio)", strategy)
	}
}
