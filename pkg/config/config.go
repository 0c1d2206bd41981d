package config

import (
	"time"

	"openserver-hq/guardrails/pkg/moderation/culture"
	"openserver-hq/guardrails/pkg/moderation/engine"
	"openserver-hq/guardrails/pkg/telemetry/logging"
)

// Config is the root configuration structure for the guardrails service.
type Config struct {
	// Server contains HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Moderation contains decision thresholds and request limits.
	Moderation ModerationConfig `yaml:"moderation"`

	// Engines is the ordered engine chain. Empty means a single heuristic
	// engine.
	Engines []EngineConfig `yaml:"engines"`

	// Heuristics configures the keyword/pattern scorer used directly and as
	// every remote engine's fallback.
	Heuristics HeuristicsConfig `yaml:"heuristics"`

	// Locale contains language detection and translation settings.
	Locale LocaleConfig `yaml:"locale"`

	// Profiles maps a BCP-47 language tag (or "default") to its cultural
	// profile.
	Profiles map[string]culture.ProfileConfig `yaml:"profiles"`

	// Mitigation configures PII masking and verb rewriting.
	Mitigation MitigationConfig `yaml:"mitigation"`

	// Reload configures policy hot reload.
	Reload ReloadConfig `yaml:"reload"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 15s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 15s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits request body size.
	// Default: 1048576 (1MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// RateLimit throttles the API routes per client IP.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig configures per-client rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per client. 0 disables
	// limiting.
	// Default: 0
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the number of requests a client may send at once.
	// Default: ceil(requests_per_second)
	Burst int `yaml:"burst"`
}

// ModerationConfig contains decision settings.
type ModerationConfig struct {
	// WarnThreshold is the fused severity at which a request warns.
	// Default: 0.3
	WarnThreshold float64 `yaml:"warn_threshold"`

	// BlockThreshold is the fused severity at which a request blocks.
	// Default: 0.7
	BlockThreshold float64 `yaml:"block_threshold"`

	// RequestTimeout is the deadline shared by every stage of a request.
	// Default: 5s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxTextRunes rejects longer texts. 0 disables the check.
	// Default: 32768
	MaxTextRunes int `yaml:"max_text_runes"`

	// ChainConcurrency bounds how many engines run at once. 0 runs all
	// engines concurrently, 1 runs them sequentially.
	// Default: 0
	ChainConcurrency int `yaml:"chain_concurrency"`
}

// EngineConfig is one entry of the engine chain.
type EngineConfig struct {
	// Name identifies the engine in verdicts, breakers and metrics.
	Name string `yaml:"name"`

	// Kind is "heuristic", "external" or "native".
	Kind string `yaml:"kind"`

	// Endpoint is the remote URL. Required for external engines; native
	// engines default to the public moderation endpoint.
	Endpoint string `yaml:"endpoint"`

	// APIKey is the credential sent to the remote service.
	APIKey string `yaml:"api_key"`

	// APIKeyEnv names an environment variable holding the credential. Used
	// when APIKey is empty.
	APIKeyEnv string `yaml:"api_key_env"`

	// Model selects the native moderation model.
	Model string `yaml:"model"`

	// Timeout bounds a single call.
	// Default: 2s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of transport-level retries.
	// Default: 0
	MaxRetries int `yaml:"max_retries"`

	// Breaker configures the engine's circuit breaker.
	Breaker BreakerConfig `yaml:"breaker"`

	// CategoryMap renames remote categories to internal ones.
	CategoryMap map[string]string `yaml:"category_map"`
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker.
	// Default: 3
	FailureThreshold int `yaml:"failure_threshold"`

	// Cooldown is how long the breaker stays open before a probe.
	// Default: 30s
	Cooldown time.Duration `yaml:"cooldown"`
}

// HeuristicsConfig configures the heuristic scorer.
type HeuristicsConfig struct {
	// Categories maps a category to its keywords and patterns. Empty uses the
	// built-in rules.
	Categories map[string]engine.CategoryRules `yaml:"categories"`

	// FamiliarLanguages lists the languages the rules were written for.
	FamiliarLanguages []string `yaml:"familiar_languages"`

	// UnfamiliarLanguageBoost is added to scores for other languages.
	UnfamiliarLanguageBoost float64 `yaml:"unfamiliar_language_boost"`
}

// LocaleConfig contains language settings.
type LocaleConfig struct {
	// DefaultLanguage is used when the language cannot be determined.
	// Default: "en"
	DefaultLanguage string `yaml:"default_language"`

	// MinDetectRunes is the letter count below which detection is skipped.
	// Default: 12
	MinDetectRunes int `yaml:"min_detect_runes"`

	// MinConfidence is the detector confidence below which the default
	// language is used.
	// Default: 0.5
	MinConfidence float64 `yaml:"min_confidence"`

	// Translation configures translation to the pivot language.
	Translation TranslationConfig `yaml:"translation"`
}

// TranslationConfig configures the translation service.
type TranslationConfig struct {
	// Enabled turns translation on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Pivot is the language engines score in.
	// Default: "en"
	Pivot string `yaml:"pivot"`

	// Endpoint is the LibreTranslate-compatible /translate URL.
	Endpoint string `yaml:"endpoint"`

	// APIKey is sent with every translation request.
	APIKey string `yaml:"api_key"`

	// Timeout bounds a single translation.
	// Default: 2s
	Timeout time.Duration `yaml:"timeout"`

	// Cache configures translation caching.
	Cache CacheConfig `yaml:"cache"`
}

// CacheConfig configures the translation cache.
type CacheConfig struct {
	// Backend is "memory", "redis" or "none".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// TTL is the entry lifetime.
	// Default: 1h
	TTL time.Duration `yaml:"ttl"`

	// MaxEntries bounds the memory backend.
	// Default: 10000
	MaxEntries int `yaml:"max_entries"`

	// Redis configures the redis backend.
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	// Address is host:port.
	// Default: "localhost:6379"
	Address string `yaml:"address"`

	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// KeyPrefix namespaces cache keys.
	// Default: "guardrails:translation:"
	KeyPrefix string `yaml:"key_prefix"`
}

// MitigationConfig configures the mitigation planner.
type MitigationConfig struct {
	// PIIKinds lists the masked PII kinds. Empty masks every kind.
	PIIKinds []string `yaml:"pii_kinds"`

	// VerbRewrites maps violent verbs to paraphrases. Unset uses the
	// built-in rewrites; an empty map disables rewriting.
	VerbRewrites map[string]string `yaml:"verb_rewrites"`

	// MinAction is the least strict action that triggers mitigation.
	// Default: "warn"
	MinAction string `yaml:"min_action"`
}

// ReloadConfig configures policy hot reload.
type ReloadConfig struct {
	// Watch reloads when the configuration file changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// Debounce delays a reload until file events settle.
	// Default: 500ms
	Debounce time.Duration `yaml:"debounce"`

	// Schedule is a cron expression for periodic reloads. Empty disables
	// scheduled reloads.
	Schedule string `yaml:"schedule"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	AddSource bool `yaml:"add_source"`

	// RedactPII masks PII in logged string attributes.
	// Default: true
	RedactPII *bool `yaml:"redact_pii"`

	// RedactPatterns adds custom redaction patterns.
	RedactPatterns []logging.RedactPattern `yaml:"redact_patterns"`
}

// MetricsConfig contains metrics configuration.
type MetricsConfig struct {
	// Enabled exposes Prometheus metrics.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path of the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes metric names.
	// Default: "guardrails"
	Namespace string `yaml:"namespace"`
}

// TracingConfig contains tracing configuration. Spans are recorded and
// propagated; exporting them is up to the embedding application.
type TracingConfig struct {
	// Enabled records spans.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// ServiceName is reported as service.name.
	// Default: "guardrails"
	ServiceName string `yaml:"service_name"`

	// Sampler is "always", "never" or "ratio".
	// Default: "always"
	Sampler string `yaml:"sampler"`

	// SampleRatio is used by the ratio sampler.
	SampleRatio float64 `yaml:"sample_ratio"`
}
