package config

import (
	"os"

	"openserver-hq/guardrails/pkg/moderation/aggregate"
	"openserver-hq/guardrails/pkg/moderation/breaker"
	"openserver-hq/guardrails/pkg/moderation/engine"
	"openserver-hq/guardrails/pkg/moderation/language"
	"openserver-hq/guardrails/pkg/moderation/mitigation"
	"openserver-hq/guardrails/pkg/moderation/types"
	"openserver-hq/guardrails/pkg/telemetry/logging"
	"openserver-hq/guardrails/pkg/telemetry/tracing"
)

// Thresholds returns the decision thresholds.
func (c *Config) Thresholds() aggregate.Thresholds {
	return aggregate.Thresholds{Warn: c.Moderation.WarnThreshold, Block: c.Moderation.BlockThreshold}
}

// EngineDescriptors returns the engine chain in configured order. API keys
// named by api_key_env are resolved from the environment here.
func (c *Config) EngineDescriptors() []engine.Descriptor {
	descs := make([]engine.Descriptor, 0, len(c.Engines))
	for _, e := range c.Engines {
		apiKey := e.APIKey
		if apiKey == "" && e.APIKeyEnv != "" {
			apiKey = os.Getenv(e.APIKeyEnv)
		}
		descs = append(descs, engine.Descriptor{
			Name:       e.Name,
			Kind:       types.EngineKind(e.Kind),
			Endpoint:   e.Endpoint,
			APIKey:     apiKey,
			Model:      e.Model,
			Timeout:    e.Timeout,
			MaxRetries: e.MaxRetries,
			Breaker: breaker.Settings{
				FailureThreshold: e.Breaker.FailureThreshold,
				Cooldown:         e.Breaker.Cooldown,
			},
			CategoryMap: e.CategoryMap,
		})
	}
	return descs
}

// HeuristicConfig returns the heuristic scorer configuration.
func (c *Config) HeuristicConfig() engine.HeuristicConfig {
	return engine.HeuristicConfig{
		Categories:              c.Heuristics.Categories,
		FamiliarLanguages:       c.Heuristics.FamiliarLanguages,
		UnfamiliarLanguageBoost: c.Heuristics.UnfamiliarLanguageBoost,
	}
}

// PlannerConfig returns the mitigation planner configuration.
func (c *Config) PlannerConfig() mitigation.Config {
	return c.Mitigation.plannerConfig()
}

func (m *MitigationConfig) plannerConfig() mitigation.Config {
	return mitigation.Config{PIIKinds: m.PIIKinds, VerbRewrites: m.VerbRewrites}
}

// MitigationMinAction returns the least strict action that triggers
// mitigation. Invalid values fall back to warn; Validate reports them.
func (c *Config) MitigationMinAction() types.Action {
	a, err := types.ParseAction(c.Mitigation.MinAction)
	if err != nil {
		return types.ActionWarn
	}
	return a
}

// ResolverConfig returns the language resolver configuration.
func (c *Config) ResolverConfig() language.Config {
	return language.Config{
		DefaultLanguage:  c.Locale.DefaultLanguage,
		PivotLanguage:    c.Locale.Translation.Pivot,
		MinDetectRunes:   c.Locale.MinDetectRunes,
		MinConfidence:    c.Locale.MinConfidence,
		Translate:        c.Locale.Translation.Enabled,
		TranslateTimeout: c.Locale.Translation.Timeout,
	}
}

// LoggingConfig returns the logger configuration.
func (c *Config) LoggingConfig() logging.Config {
	l := c.Telemetry.Logging
	return logging.Config{
		Level:          l.Level,
		Format:         l.Format,
		AddSource:      l.AddSource,
		RedactPII:      l.RedactPII == nil || *l.RedactPII,
		RedactPatterns: l.RedactPatterns,
	}
}

// MetricsEnabled reports whether the metrics endpoint is served.
func (c *Config) MetricsEnabled() bool {
	return c.Telemetry.Metrics.Enabled == nil || *c.Telemetry.Metrics.Enabled
}

// TracingConfig returns the tracer configuration.
func (c *Config) TracingConfig() tracing.Config {
	t := c.Telemetry.Tracing
	return tracing.Config{
		Enabled:     t.Enabled,
		ServiceName: t.ServiceName,
		Sampler:     t.Sampler,
		SampleRatio: t.SampleRatio,
	}
}
