package config

import (
	"strings"
	"time"

	"openserver-hq/guardrails/pkg/moderation/engine"
	"openserver-hq/guardrails/pkg/moderation/types"
	"openserver-hq/guardrails/pkg/telemetry/tracing"
)

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20
	DefaultMaxBodyBytes    = int64(1 << 20)

	// Moderation defaults
	DefaultWarnThreshold  = 0.3
	DefaultBlockThreshold = 0.7
	DefaultRequestTimeout = 5 * time.Second
	DefaultMaxTextRunes   = 32768

	// Engine defaults
	DefaultEngineTimeout           = 2 * time.Second
	DefaultBreakerFailureThreshold = 3
	DefaultBreakerCooldown         = 30 * time.Second
	DefaultNativeAPIKeyEnv         = "OPENAI_API_KEY"

	// Locale defaults
	DefaultLanguage           = "en"
	DefaultMinDetectRunes     = 12
	DefaultMinConfidence      = 0.5
	DefaultPivotLanguage      = "en"
	DefaultTranslationTimeout = 2 * time.Second
	DefaultCacheBackend       = "memory"
	DefaultCacheTTL           = time.Hour
	DefaultCacheMaxEntries    = 10000
	DefaultRedisAddress       = "localhost:6379"
	DefaultRedisKeyPrefix     = "guardrails:translation:"

	// Mitigation defaults
	DefaultMitigationMinAction = "warn"

	// Reload defaults
	DefaultReloadDebounce = 500 * time.Millisecond

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "guardrails"
	DefaultTracingSampler   = "always"
)

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyModerationDefaults(&cfg.Moderation)
	for i := range cfg.Engines {
		applyEngineDefaults(&cfg.Engines[i])
	}
	applyLocaleDefaults(&cfg.Locale)

	if cfg.Mitigation.MinAction == "" {
		cfg.Mitigation.MinAction = DefaultMitigationMinAction
	}
	if cfg.Reload.Debounce == 0 {
		cfg.Reload.Debounce = DefaultReloadDebounce
	}

	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
}

func applyModerationDefaults(cfg *ModerationConfig) {
	if cfg.WarnThreshold == 0 {
		cfg.WarnThreshold = DefaultWarnThreshold
	}
	if cfg.BlockThreshold == 0 {
		cfg.BlockThreshold = DefaultBlockThreshold
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.MaxTextRunes == 0 {
		cfg.MaxTextRunes = DefaultMaxTextRunes
	}
}

func applyEngineDefaults(cfg *EngineConfig) {
	cfg.Kind = strings.ToLower(strings.TrimSpace(cfg.Kind))
	if cfg.Kind == "" {
		cfg.Kind = string(types.KindHeuristic)
	}
	if cfg.Kind == string(types.KindHeuristic) {
		return
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultEngineTimeout
	}
	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = DefaultBreakerFailureThreshold
	}
	if cfg.Breaker.Cooldown == 0 {
		cfg.Breaker.Cooldown = DefaultBreakerCooldown
	}

	if cfg.Kind == string(types.KindNative) {
		if cfg.Endpoint == "" {
			cfg.Endpoint = engine.DefaultNativeEndpoint
		}
		if cfg.Model == "" {
			cfg.Model = engine.DefaultNativeModel
		}
		if cfg.APIKey == "" && cfg.APIKeyEnv == "" {
			cfg.APIKeyEnv = DefaultNativeAPIKeyEnv
		}
	}
}

func applyLocaleDefaults(cfg *LocaleConfig) {
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = DefaultLanguage
	}
	if cfg.MinDetectRunes == 0 {
		cfg.MinDetectRunes = DefaultMinDetectRunes
	}
	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = DefaultMinConfidence
	}

	t := &cfg.Translation
	if t.Pivot == "" {
		t.Pivot = DefaultPivotLanguage
	}
	if t.Timeout == 0 {
		t.Timeout = DefaultTranslationTimeout
	}
	if t.Cache.Backend == "" {
		t.Cache.Backend = DefaultCacheBackend
	}
	if t.Cache.TTL == 0 {
		t.Cache.TTL = DefaultCacheTTL
	}
	if t.Cache.MaxEntries == 0 {
		t.Cache.MaxEntries = DefaultCacheMaxEntries
	}
	if t.Cache.Redis.Address == "" {
		t.Cache.Redis.Address = DefaultRedisAddress
	}
	if t.Cache.Redis.KeyPrefix == "" {
		t.Cache.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Logging.RedactPII == nil {
		cfg.Logging.RedactPII = boolPtr(true)
	}
	if cfg.Metrics.Enabled == nil {
		cfg.Metrics.Enabled = boolPtr(true)
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = tracing.DefaultServiceName
	}
	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
	}
}

func boolPtr(b bool) *bool {
	return &b
}
