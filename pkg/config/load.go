package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GUARDRAILS_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML without applying defaults. Unknown fields are rejected
// so typos do not silently fall back to defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention GUARDRAILS_SECTION_FIELD (e.g., GUARDRAILS_SERVER_LISTEN_ADDRESS)
// and always take precedence over the file.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadForReload loads path for a policy reload. It applies the same defaults,
// overrides and validation as startup, so a reload can never install a
// configuration the service would have refused to start with.
func LoadForReload(path string) (*Config, error) {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, fmt.Errorf("failed to reload configuration: %w", err)
	}
	return cfg, nil
}

// Default returns a validated configuration built purely from defaults and
// environment overrides. Used when no configuration file exists.
func Default() (*Config, error) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	setString(&cfg.Server.ListenAddress, "SERVER_LISTEN_ADDRESS")
	setDuration(&cfg.Server.ReadTimeout, "SERVER_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "SERVER_SHUTDOWN_TIMEOUT")
	setFloat(&cfg.Server.RateLimit.RequestsPerSecond, "SERVER_RATE_LIMIT_REQUESTS_PER_SECOND")
	setInt(&cfg.Server.RateLimit.Burst, "SERVER_RATE_LIMIT_BURST")

	// Moderation overrides
	setFloat(&cfg.Moderation.WarnThreshold, "MODERATION_WARN_THRESHOLD")
	setFloat(&cfg.Moderation.BlockThreshold, "MODERATION_BLOCK_THRESHOLD")
	setDuration(&cfg.Moderation.RequestTimeout, "MODERATION_REQUEST_TIMEOUT")
	setInt(&cfg.Moderation.MaxTextRunes, "MODERATION_MAX_TEXT_RUNES")
	setInt(&cfg.Moderation.ChainConcurrency, "MODERATION_CHAIN_CONCURRENCY")

	// Engine overrides are keyed by engine name.
	for i := range cfg.Engines {
		applyEngineEnvOverrides(&cfg.Engines[i])
	}

	// Locale overrides
	setString(&cfg.Locale.DefaultLanguage, "LOCALE_DEFAULT_LANGUAGE")
	setBool(&cfg.Locale.Translation.Enabled, "LOCALE_TRANSLATION_ENABLED")
	setString(&cfg.Locale.Translation.Endpoint, "LOCALE_TRANSLATION_ENDPOINT")
	setString(&cfg.Locale.Translation.APIKey, "LOCALE_TRANSLATION_API_KEY")
	setString(&cfg.Locale.Translation.Cache.Backend, "LOCALE_TRANSLATION_CACHE_BACKEND")
	setString(&cfg.Locale.Translation.Cache.Redis.Address, "LOCALE_TRANSLATION_CACHE_REDIS_ADDRESS")
	setString(&cfg.Locale.Translation.Cache.Redis.Password, "LOCALE_TRANSLATION_CACHE_REDIS_PASSWORD")

	// Mitigation overrides
	setString(&cfg.Mitigation.MinAction, "MITIGATION_MIN_ACTION")

	// Reload overrides
	setBool(&cfg.Reload.Watch, "RELOAD_WATCH")
	setString(&cfg.Reload.Schedule, "RELOAD_SCHEDULE")

	// Telemetry overrides
	setString(&cfg.Telemetry.Logging.Level, "TELEMETRY_LOGGING_LEVEL")
	setString(&cfg.Telemetry.Logging.Format, "TELEMETRY_LOGGING_FORMAT")
	if val, ok := lookupEnv("TELEMETRY_METRICS_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = &b
		}
	}
	setString(&cfg.Telemetry.Metrics.Path, "TELEMETRY_METRICS_PATH")
	setBool(&cfg.Telemetry.Tracing.Enabled, "TELEMETRY_TRACING_ENABLED")
	setString(&cfg.Telemetry.Tracing.Sampler, "TELEMETRY_TRACING_SAMPLER")
	setFloat(&cfg.Telemetry.Tracing.SampleRatio, "TELEMETRY_TRACING_SAMPLE_RATIO")
}

// applyEngineEnvOverrides applies GUARDRAILS_ENGINES_<NAME>_<FIELD>, where
// NAME is the upper-cased engine name with dashes replaced by underscores.
func applyEngineEnvOverrides(e *EngineConfig) {
	prefix := "ENGINES_" + envName(e.Name) + "_"
	setString(&e.Endpoint, prefix+"ENDPOINT")
	setString(&e.APIKey, prefix+"API_KEY")
	setDuration(&e.Timeout, prefix+"TIMEOUT")
	setInt(&e.MaxRetries, prefix+"MAX_RETRIES")
}

func envName(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(name))
}

func lookupEnv(key string) (string, bool) {
	val := os.Getenv(EnvPrefix + key)
	return val, val != ""
}

func setString(dst *string, key string) {
	if val, ok := lookupEnv(key); ok {
		*dst = val
	}
}

func setBool(dst *bool, key string) {
	if val, ok := lookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func setInt(dst *int, key string) {
	if val, ok := lookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func setFloat(dst *float64, key string) {
	if val, ok := lookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if val, ok := lookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
