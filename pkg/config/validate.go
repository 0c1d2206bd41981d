package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"

	"openserver-hq/guardrails/pkg/moderation/aggregate"
	"openserver-hq/guardrails/pkg/moderation/culture"
	"openserver-hq/guardrails/pkg/moderation/engine"
	"openserver-hq/guardrails/pkg/moderation/mitigation"
	"openserver-hq/guardrails/pkg/moderation/types"
	"openserver-hq/guardrails/pkg/telemetry/logging"
	"openserver-hq/guardrails/pkg/telemetry/tracing"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// HasField reports whether any error concerns field or one of its children.
func (e ValidationError) HasField(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field || strings.HasPrefix(fe.Field, field+".") || strings.HasPrefix(fe.Field, field+"[") {
			return true
		}
	}
	return false
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateModeration(&cfg.Moderation)...)
	errs = append(errs, validateEngines(cfg.Engines)...)
	errs = append(errs, validateEngineBudget(cfg)...)
	errs = append(errs, validateHeuristics(cfg)...)
	errs = append(errs, validateLocale(&cfg.Locale)...)
	errs = append(errs, validateProfiles(cfg.Profiles)...)
	errs = append(errs, validateMitigation(&cfg.Mitigation)...)
	errs = append(errs, validateReload(&cfg.Reload)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: "listen address is required"})
	}
	for field, d := range map[string]int64{
		"server.read_timeout":     int64(cfg.ReadTimeout),
		"server.write_timeout":    int64(cfg.WriteTimeout),
		"server.idle_timeout":     int64(cfg.IdleTimeout),
		"server.shutdown_timeout": int64(cfg.ShutdownTimeout),
	} {
		if d < 0 {
			errs = append(errs, FieldError{Field: field, Message: "must not be negative"})
		}
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_header_bytes", Message: "max header bytes must be non-negative"})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_body_bytes", Message: "max body bytes must be non-negative"})
	}
	if cfg.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, FieldError{Field: "server.rate_limit.requests_per_second", Message: "must not be negative"})
	}
	if cfg.RateLimit.Burst < 0 {
		errs = append(errs, FieldError{Field: "server.rate_limit.burst", Message: "must not be negative"})
	}

	return sortFieldErrors(errs)
}

func validateModeration(cfg *ModerationConfig) []FieldError {
	var errs []FieldError

	th := aggregate.Thresholds{Warn: cfg.WarnThreshold, Block: cfg.BlockThreshold}
	if err := th.Validate(); err != nil {
		errs = append(errs, FieldError{Field: "moderation.thresholds", Message: err.Error()})
	}
	if cfg.RequestTimeout < 0 {
		errs = append(errs, FieldError{Field: "moderation.request_timeout", Message: "must not be negative"})
	}
	if cfg.MaxTextRunes < 0 {
		errs = append(errs, FieldError{Field: "moderation.max_text_runes", Message: "must not be negative"})
	}
	if cfg.ChainConcurrency < 0 {
		errs = append(errs, FieldError{Field: "moderation.chain_concurrency", Message: "must not be negative"})
	}

	return errs
}

func validateEngines(engines []EngineConfig) []FieldError {
	var errs []FieldError
	seen := make(map[string]bool, len(engines))

	for i, e := range engines {
		prefix := fmt.Sprintf("engines[%d]", i)

		name := strings.TrimSpace(e.Name)
		if name == "" {
			errs = append(errs, FieldError{Field: prefix + ".name", Message: "engine name is required"})
		} else if seen[name] {
			errs = append(errs, FieldError{Field: prefix + ".name", Message: fmt.Sprintf("duplicate engine name %q", name)})
		}
		seen[name] = true

		switch types.EngineKind(e.Kind) {
		case types.KindHeuristic:
			continue
		case types.KindExternal:
			if e.Endpoint == "" {
				errs = append(errs, FieldError{Field: prefix + ".endpoint", Message: "endpoint is required for external engines"})
			}
		case types.KindNative:
		default:
			errs = append(errs, FieldError{Field: prefix + ".kind", Message: fmt.Sprintf("unknown engine kind %q (expected heuristic, external or native)", e.Kind)})
			continue
		}

		if e.Endpoint != "" && !isHTTPURL(e.Endpoint) {
			errs = append(errs, FieldError{Field: prefix + ".endpoint", Message: "endpoint must be an http(s) URL"})
		}
		if e.Timeout < 0 {
			errs = append(errs, FieldError{Field: prefix + ".timeout", Message: "must not be negative"})
		}
		if e.MaxRetries < 0 {
			errs = append(errs, FieldError{Field: prefix + ".max_retries", Message: "must not be negative"})
		}
		if e.Breaker.FailureThreshold < 1 {
			errs = append(errs, FieldError{Field: prefix + ".breaker.failure_threshold", Message: "must be at least 1"})
		}
		if e.Breaker.Cooldown < 0 {
			errs = append(errs, FieldError{Field: prefix + ".breaker.cooldown", Message: "must not be negative"})
		}
	}

	return errs
}

// validateEngineBudget requires every remote engine to time out before the
// request deadline can, after translation has taken its share. Otherwise a
// hanging service only ever hits the request deadline and never trips its
// breaker.
func validateEngineBudget(cfg *Config) []FieldError {
	budget := cfg.Moderation.RequestTimeout
	if budget <= 0 {
		return nil
	}
	if cfg.Locale.Translation.Enabled {
		budget -= cfg.Locale.Translation.Timeout
	}

	var errs []FieldError
	for i, e := range cfg.Engines {
		if types.EngineKind(e.Kind) == types.KindHeuristic || e.Timeout < 0 {
			continue
		}
		if e.Timeout == 0 || e.Timeout >= budget {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("engines[%d].timeout", i),
				Message: fmt.Sprintf("must be shorter than the %s left of moderation.request_timeout after translation", budget),
			})
		}
	}
	return errs
}

func validateHeuristics(cfg *Config) []FieldError {
	if _, err := engine.NewHeuristic("", cfg.HeuristicConfig()); err != nil {
		return []FieldError{{Field: "heuristics", Message: err.Error()}}
	}
	return nil
}

func validateLocale(cfg *LocaleConfig) []FieldError {
	var errs []FieldError

	if cfg.MinDetectRunes < 0 {
		errs = append(errs, FieldError{Field: "locale.min_detect_runes", Message: "must not be negative"})
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		errs = append(errs, FieldError{Field: "locale.min_confidence", Message: "must be between 0 and 1"})
	}

	t := cfg.Translation
	if t.Enabled {
		if t.Endpoint == "" {
			errs = append(errs, FieldError{Field: "locale.translation.endpoint", Message: "endpoint is required when translation is enabled"})
		} else if !isHTTPURL(t.Endpoint) {
			errs = append(errs, FieldError{Field: "locale.translation.endpoint", Message: "endpoint must be an http(s) URL"})
		}
	}
	if t.Timeout < 0 {
		errs = append(errs, FieldError{Field: "locale.translation.timeout", Message: "must not be negative"})
	}

	switch t.Cache.Backend {
	case "memory", "none":
	case "redis":
		if t.Cache.Redis.Address == "" {
			errs = append(errs, FieldError{Field: "locale.translation.cache.redis.address", Message: "address is required for the redis backend"})
		}
	default:
		errs = append(errs, FieldError{Field: "locale.translation.cache.backend", Message: fmt.Sprintf("unknown cache backend %q (expected memory, redis or none)", t.Cache.Backend)})
	}
	if t.Cache.MaxEntries < 0 {
		errs = append(errs, FieldError{Field: "locale.translation.cache.max_entries", Message: "must not be negative"})
	}

	return errs
}

func validateProfiles(profiles map[string]culture.ProfileConfig) []FieldError {
	if _, err := culture.NewStore(profiles); err != nil {
		return []FieldError{{Field: "profiles", Message: err.Error()}}
	}
	return nil
}

func validateMitigation(cfg *MitigationConfig) []FieldError {
	var errs []FieldError

	if _, err := types.ParseAction(cfg.MinAction); err != nil {
		errs = append(errs, FieldError{Field: "mitigation.min_action", Message: err.Error()})
	}
	if _, err := mitigation.New(cfg.plannerConfig()); err != nil {
		errs = append(errs, FieldError{Field: "mitigation", Message: err.Error()})
	}

	return errs
}

func validateReload(cfg *ReloadConfig) []FieldError {
	var errs []FieldError

	if cfg.Debounce < 0 {
		errs = append(errs, FieldError{Field: "reload.debounce", Message: "must not be negative"})
	}
	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			errs = append(errs, FieldError{Field: "reload.schedule", Message: fmt.Sprintf("invalid cron expression: %v", err)})
		}
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, FieldError{Field: "telemetry.logging.level", Message: "log level must be one of: debug, info, warn, error"})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{Field: "telemetry.logging.format", Message: "log format must be one of: json, text, console"})
	}
	if _, err := logging.NewRedactor(cfg.Logging.RedactPatterns); err != nil {
		errs = append(errs, FieldError{Field: "telemetry.logging.redact_patterns", Message: err.Error()})
	}
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "metrics path must start with /"})
	}
	if err := tracing.ValidateSampler(cfg.Tracing.Sampler, cfg.Tracing.SampleRatio); err != nil {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sampler", Message: err.Error()})
	}

	return errs
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// sortFieldErrors orders errors by field so map iteration does not make
// messages flap.
func sortFieldErrors(errs []FieldError) []FieldError {
	slices.SortFunc(errs, func(a, b FieldError) int {
		return strings.Compare(a.Field, b.Field)
	})
	return errs
}
