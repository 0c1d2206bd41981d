package culture

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/language"

	"openserver-hq/guardrails/pkg/moderation/types"
)

// ProfileConfig is the configured form of a cultural profile.
type ProfileConfig struct {
	// Name overrides the generated profile name ("profile_<lang>").
	Name string `yaml:"name"`

	// CategoryBias maps category to severity multiplier (>= 0).
	CategoryBias map[string]float64 `yaml:"category_bias"`

	// BlockedCategories lists culturally forbidden categories.
	BlockedCategories []string `yaml:"blocked_categories"`
}

// ConfigError reports an invalid profile configuration. It is fatal at
// startup and rejects a reload.
type ConfigError struct {
	Language string
	Field    string
	Message  string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("cultural profile %q: %s: %s", e.Language, e.Field, e.Message)
}

// Store resolves cultural profiles by language. It is immutable; a reload
// builds a new Store and installs it with the rest of the policy.
type Store struct {
	profiles map[string]Profile
	fallback Profile
}

// NewStore validates the configured profiles and returns a store. An empty
// or nil map yields a store that only serves the identity profile.
func NewStore(cfg map[string]ProfileConfig) (*Store, error) {
	return compile(cfg)
}

// Lookup returns the profile for lang. It tries the canonical tag, then the
// base language, then the default profile. It never fails.
func (s *Store) Lookup(lang string) Profile {
	for _, key := range candidateKeys(lang) {
		if p, ok := s.profiles[key]; ok {
			return p.clone()
		}
	}
	return s.fallback.clone()
}

// Languages returns the configured language keys, sorted.
func (s *Store) Languages() []string {
	out := make([]string, 0, len(s.profiles))
	for k := range s.profiles {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func compile(cfg map[string]ProfileConfig) (*Store, error) {
	snap := &Store{
		profiles: make(map[string]Profile, len(cfg)),
		fallback: IdentityProfile(),
	}

	for rawKey, pc := range cfg {
		key := strings.TrimSpace(rawKey)
		if !strings.EqualFold(key, DefaultKey) {
			tag, err := language.Parse(key)
			if err != nil {
				return nil, &ConfigError{Language: rawKey, Field: "language", Message: fmt.Sprintf("invalid language tag: %v", err)}
			}
			key = tag.String()
		} else {
			key = DefaultKey
		}

		p, err := buildProfile(key, pc)
		if err != nil {
			return nil, err
		}

		if key == DefaultKey {
			snap.fallback = p
			continue
		}
		if _, dup := snap.profiles[key]; dup {
			return nil, &ConfigError{Language: rawKey, Field: "language", Message: "duplicate profile after canonicalisation"}
		}
		snap.profiles[key] = p
	}

	return snap, nil
}

func buildProfile(key string, pc ProfileConfig) (Profile, error) {
	p := Profile{
		Language:     key,
		Name:         pc.Name,
		CategoryBias: make(map[types.Category]float64, len(pc.CategoryBias)),
	}
	if p.Name == "" {
		if key == DefaultKey {
			p.Name = DefaultKey
		} else {
			p.Name = "profile_" + key
		}
	}

	for cat, bias := range pc.CategoryBias {
		if strings.TrimSpace(cat) == "" {
			return Profile{}, &ConfigError{Language: key, Field: "category_bias", Message: "empty category name"}
		}
		if math.IsNaN(bias) || math.IsInf(bias, 0) || bias < 0 {
			return Profile{}, &ConfigError{Language: key, Field: "category_bias." + cat, Message: fmt.Sprintf("bias must be a finite value >= 0, got %v", bias)}
		}
		p.CategoryBias[types.Category(cat)] = bias
	}

	blocked := make([]types.Category, 0, len(pc.BlockedCategories))
	for _, cat := range pc.BlockedCategories {
		if strings.TrimSpace(cat) == "" {
			return Profile{}, &ConfigError{Language: key, Field: "blocked_categories", Message: "empty category name"}
		}
		blocked = append(blocked, types.Category(cat))
	}
	p.BlockedCategories = types.SortedCategories(blocked)

	return p, nil
}

// candidateKeys returns lookup keys from most to least specific.
func candidateKeys(lang string) []string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return nil
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return []string{lang}
	}
	keys := []string{tag.String()}
	if base, conf := tag.Base(); conf != language.No {
		if b := base.String(); b != keys[0] {
			keys = append(keys, b)
		}
	}
	return keys
}
