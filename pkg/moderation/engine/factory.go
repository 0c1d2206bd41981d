package engine

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"openserver-hq/guardrails/pkg/moderation/breaker"
	"openserver-hq/guardrails/pkg/moderation/types"
	"openserver-hq/guardrails/pkg/remote"
)

// Descriptor is the configured form of one chain entry.
type Descriptor struct {
	Name        string
	Kind        types.EngineKind
	Endpoint    string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxRetries  int
	Breaker     breaker.Settings
	CategoryMap map[string]string
}

// Deps are the collaborators shared by all built engines.
type Deps struct {
	// Heuristic configures the heuristic engines and every remote fallback.
	Heuristic HeuristicConfig

	// Breakers holds the per-engine breakers. Required when the chain has
	// remote engines.
	Breakers *breaker.Registry

	// HTTPClient overrides the pooled client used for remote engines.
	HTTPClient *http.Client

	// Logger receives build and runtime logs.
	Logger *slog.Logger
}

// Build turns descriptors into the ordered engine list. An empty list yields
// a single heuristic engine. Native engines without a credential are skipped.
func Build(descs []Descriptor, deps Deps) ([]Engine, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fallback, err := NewHeuristic("", deps.Heuristic)
	if err != nil {
		return nil, err
	}
	if len(descs) == 0 {
		return []Engine{fallback}, nil
	}

	seen := make(map[string]bool, len(descs))
	engines := make([]Engine, 0, len(descs))

	for i, d := range descs {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, &ConfigError{Engine: fmt.Sprintf("#%d", i), Field: "name", Message: "required"}
		}
		if seen[name] {
			return nil, &ConfigError{Engine: name, Field: "name", Message: "duplicate engine name"}
		}
		seen[name] = true

		switch d.Kind {
		case types.KindHeuristic:
			h, err := NewHeuristic(name, deps.Heuristic)
			if err != nil {
				return nil, err
			}
			engines = append(engines, h)

		case types.KindExternal:
			if err := validateEndpoint(name, d.Endpoint, true); err != nil {
				return nil, err
			}
			if deps.Breakers == nil {
				return nil, &ConfigError{Engine: name, Field: "breaker", Message: "no breaker registry"}
			}
			client := newRemoteClient(name, d, deps, logger)
			ext := NewExternal(name, d.Endpoint, d.APIKey, client, d.CategoryMap)
			engines = append(engines, NewGuarded(ext, deps.Breakers.Get(name, d.Breaker), fallback, d.Timeout, logger))

		case types.KindNative:
			if d.APIKey == "" {
				logger.Warn("native moderation engine has no credential, skipping", "engine", name)
				continue
			}
			if err := validateEndpoint(name, d.Endpoint, false); err != nil {
				return nil, err
			}
			if deps.Breakers == nil {
				return nil, &ConfigError{Engine: name, Field: "breaker", Message: "no breaker registry"}
			}
			client := newRemoteClient(name, d, deps, logger)
			native := NewNative(name, d.Endpoint, d.Model, d.APIKey, client, d.CategoryMap)
			engines = append(engines, NewGuarded(native, deps.Breakers.Get(name, d.Breaker), fallback, d.Timeout, logger))

		default:
			return nil, &ConfigError{Engine: name, Field: "kind", Message: fmt.Sprintf("unknown engine kind %q", d.Kind)}
		}
	}

	if len(engines) == 0 {
		logger.Warn("no engine could be built, using heuristic only")
		return []Engine{fallback}, nil
	}
	return engines, nil
}

func newRemoteClient(name string, d Descriptor, deps Deps, logger *slog.Logger) *remote.Client {
	// The guard applies the per-call timeout; the client only bounds retries
	// through the context it is given.
	cfg := remote.Config{Name: name, MaxRetries: d.MaxRetries}
	if deps.HTTPClient != nil {
		return remote.NewClientWithHTTP(cfg, deps.HTTPClient, logger)
	}
	return remote.NewClient(cfg, logger)
}

func validateEndpoint(name, endpoint string, required bool) error {
	if endpoint == "" {
		if required {
			return &ConfigError{Engine: name, Field: "endpoint", Message: "required for external engines"}
		}
		return nil
	}
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ConfigError{Engine: name, Field: "endpoint", Message: fmt.Sprintf("invalid URL %q", endpoint)}
	}
	return nil
}
