package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"openserver-hq/guardrails/pkg/moderation/culture"
	"openserver-hq/guardrails/pkg/moderation/engine"
)

func validConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"empty listen address", func(c *Config) { c.Server.ListenAddress = "" }, "server.listen_address"},
		{"negative read timeout", func(c *Config) { c.Server.ReadTimeout = -1 }, "server.read_timeout"},
		{"negative body limit", func(c *Config) { c.Server.MaxBodyBytes = -1 }, "server.max_body_bytes"},
		{"warn above block", func(c *Config) { c.Moderation.WarnThreshold = 0.8; c.Moderation.BlockThreshold = 0.5 }, "moderation.thresholds"},
		{"block above one", func(c *Config) { c.Moderation.BlockThreshold = 1.5 }, "moderation.thresholds"},
		{"negative concurrency", func(c *Config) { c.Moderation.ChainConcurrency = -2 }, "moderation.chain_concurrency"},
		{"engine without name", func(c *Config) {
			c.Engines = []EngineConfig{{Kind: "heuristic"}}
		}, "engines[0].name"},
		{"duplicate engine", func(c *Config) {
			c.Engines = []EngineConfig{{Name: "h", Kind: "heuristic"}, {Name: "h", Kind: "heuristic"}}
		}, "engines[1].name"},
		{"unknown kind", func(c *Config) {
			c.Engines = []EngineConfig{{Name: "x", Kind: "oracle"}}
		}, "engines[0].kind"},
		{"external without endpoint", func(c *Config) {
			c.Engines = []EngineConfig{{Name: "x", Kind: "external", Breaker: BreakerConfig{FailureThreshold: 1}}}
		}, "engines[0].endpoint"},
		{"external with bad endpoint", func(c *Config) {
			c.Engines = []EngineConfig{{Name: "x", Kind: "external", Endpoint: "ftp://host", Breaker: BreakerConfig{FailureThreshold: 1}}}
		}, "engines[0].endpoint"},
		{"zero breaker threshold", func(c *Config) {
			c.Engines = []EngineConfig{{Name: "x", Kind: "native", Endpoint: "https://api.example.com"}}
		}, "engines[0].breaker.failure_threshold"},
		{"engine timeout not inside request deadline", func(c *Config) {
			c.Engines = []EngineConfig{{Name: "x", Kind: "external", Endpoint: "http://localhost:9000"}}
			ApplyDefaults(c)
			c.Engines[0].Timeout = c.Moderation.RequestTimeout
		}, "engines[0].timeout"},
		{"translation leaves no engine budget", func(c *Config) {
			c.Engines = []EngineConfig{{Name: "x", Kind: "external", Endpoint: "http://localhost:9000"}}
			c.Moderation.RequestTimeout = 3 * time.Second
			c.Locale.Translation.Enabled = true
			c.Locale.Translation.Endpoint = "http://localhost:5000/translate"
			ApplyDefaults(c)
		}, "engines[0].timeout"},
		{"bad heuristic pattern", func(c *Config) {
			c.Heuristics.Categories = map[string]engine.CategoryRules{
				"violence": {Patterns: []engine.PatternRule{{Pattern: "(", Weight: 0.5}}},
			}
		}, "heuristics"},
		{"heuristic boost out of range", func(c *Config) { c.Heuristics.UnfamiliarLanguageBoost = 2 }, "heuristics"},
		{"confidence out of range", func(c *Config) { c.Locale.MinConfidence = 1.2 }, "locale.min_confidence"},
		{"translation without endpoint", func(c *Config) { c.Locale.Translation.Enabled = true }, "locale.translation.endpoint"},
		{"unknown cache backend", func(c *Config) { c.Locale.Translation.Cache.Backend = "disk" }, "locale.translation.cache.backend"},
		{"redis without address", func(c *Config) {
			c.Locale.Translation.Cache.Backend = "redis"
			c.Locale.Translation.Cache.Redis.Address = ""
		}, "locale.translation.cache.redis.address"},
		{"bad profile tag", func(c *Config) {
			c.Profiles = map[string]culture.ProfileConfig{"not a tag!": {}}
		}, "profiles"},
		{"negative bias", func(c *Config) {
			c.Profiles = map[string]culture.ProfileConfig{"de": {CategoryBias: map[string]float64{"hate": -1}}}
		}, "profiles"},
		{"unknown mitigation action", func(c *Config) { c.Mitigation.MinAction = "scold" }, "mitigation.min_action"},
		{"unknown pii kind", func(c *Config) { c.Mitigation.PIIKinds = []string{"iban"} }, "mitigation"},
		{"bad cron", func(c *Config) { c.Reload.Schedule = "every day" }, "reload.schedule"},
		{"bad log level", func(c *Config) { c.Telemetry.Logging.Level = "verbose" }, "telemetry.logging.level"},
		{"bad log format", func(c *Config) { c.Telemetry.Logging.Format = "xml" }, "telemetry.logging.format"},
		{"relative metrics path", func(c *Config) { c.Telemetry.Metrics.Path = "metrics" }, "telemetry.metrics.path"},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit.RequestsPerSecond = -1 }, "server.rate_limit.requests_per_second"},
		{"bad sample ratio", func(c *Config) {
			c.Telemetry.Tracing.Sampler = "ratio"
			c.Telemetry.Tracing.SampleRatio = 2
		}, "telemetry.tracing.sampler"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if !verr.HasField(tt.field) {
				t.Errorf("expected error on %q, got %v", tt.field, err)
			}
		})
	}
}

func TestValidate_ValidConfigs(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"defaults", func(*Config) {}},
		{"full chain", func(c *Config) {
			c.Engines = []EngineConfig{
				{Name: "heuristic"},
				{Name: "policy-api", Kind: "external", Endpoint: "http://localhost:9000/classify"},
				{Name: "openai", Kind: "native"},
			}
			ApplyDefaults(c)
		}},
		{"redis cache", func(c *Config) { c.Locale.Translation.Cache.Backend = "redis" }},
		{"translation", func(c *Config) {
			c.Locale.Translation.Enabled = true
			c.Locale.Translation.Endpoint = "http://localhost:5000/translate"
		}},
		{"scheduled reload", func(c *Config) { c.Reload.Schedule = "*/5 * * * *" }},
		{"profiles", func(c *Config) {
			c.Profiles = map[string]culture.ProfileConfig{
				"default": {CategoryBias: map[string]float64{"violence": 1.2}},
				"fr":      {BlockedCategories: []string{"violence"}},
			}
		}},
		{"block-only mitigation", func(c *Config) { c.Mitigation.MinAction = "block" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			if err := Validate(cfg); err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.ListenAddress = ""
	cfg.Telemetry.Logging.Level = "loud"
	cfg.Reload.Debounce = -1

	err := Validate(cfg)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Errors) != 3 {
		t.Errorf("expected 3 errors, got %d: %v", len(verr.Errors), err)
	}
	if !strings.Contains(err.Error(), "with 3 errors") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestValidationError_Format(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "server.listen_address", Message: "listen address is required"}}}
	want := "configuration validation failed: server.listen_address: listen address is required"
	if single.Error() != want {
		t.Errorf("Error() = %q, want %q", single.Error(), want)
	}
	if (ValidationError{}).Error() != "configuration validation failed" {
		t.Error("empty ValidationError message changed")
	}
}
