// Package config provides configuration management for the guardrails
// service.
//
// Configuration is read from YAML, completed with defaults, overridden from
// the environment and validated before use:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention GUARDRAILS_SECTION_FIELD:
//
//   - GUARDRAILS_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - GUARDRAILS_MODERATION_BLOCK_THRESHOLD overrides moderation.block_threshold
//   - GUARDRAILS_ENGINES_POLICY_API_ENDPOINT overrides the endpoint of the
//     engine named "policy-api"
//
// Environment variables always take precedence over the file.
//
// # Validation
//
// Validate collects every problem rather than stopping at the first one:
//
//	configuration validation failed with 2 errors:
//	  - moderation.thresholds: warn threshold 0.8 exceeds block threshold 0.5
//	  - engines[1].endpoint: endpoint is required for external engines
//
// Sections owned by other packages (heuristic rules, cultural profiles,
// mitigation rules) are validated by compiling them with those packages, so
// a configuration that validates will also build.
//
// # Example Configuration
//
//	server:
//	  listen_address: "127.0.0.1:8080"
//
//	moderation:
//	  warn_threshold: 0.3
//	  block_threshold: 0.7
//
//	engines:
//	  - name: heuristic
//	  - name: policy-api
//	    kind: external
//	    endpoint: "https://policy.internal/classify"
//
//	profiles:
//	  fr:
//	    blocked_categories: [violence]
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
package config
