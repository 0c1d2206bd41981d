package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action is the graduated outcome of a moderation decision.
// Actions are totally ordered: block dominates warn dominates allow.
type Action int

const (
	ActionAllow Action = iota
	ActionWarn
	ActionBlock
)

// String returns the wire name of the action.
func (a Action) String() string {
	switch a {
	case ActionAllow:
		return "allow"
	case ActionWarn:
		return "warn"
	case ActionBlock:
		return "block"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Dominates reports whether a is at least as strict as other.
func (a Action) Dominates(other Action) bool {
	return a >= other
}

// MaxAction returns the strictest of the given actions.
func MaxAction(actions ...Action) Action {
	out := ActionAllow
	for _, a := range actions {
		if a > out {
			out = a
		}
	}
	return out
}

// ParseAction parses an action name.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "allow":
		return ActionAllow, nil
	case "warn":
		return ActionWarn, nil
	case "block":
		return ActionBlock, nil
	default:
		return ActionAllow, fmt.Errorf("unknown action %q", s)
	}
}

// MarshalJSON encodes the action by name.
func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes an action by name.
func (a *Action) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAction(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Decision is the aggregated moderation outcome returned to callers.
type Decision struct {
	// RequestID echoes the request identifier.
	RequestID string `json:"request_id"`

	// Language is the resolved language of the request text.
	Language string `json:"language"`

	// ProfileApplied names the cultural profile used for bias.
	ProfileApplied string `json:"profile_applied"`

	// Translated is true when engines scored a translation of the text.
	Translated bool `json:"translated"`

	// Severity is the maximum fused category severity in [0,1].
	Severity float64 `json:"severity"`

	// Action is the resolved action.
	Action Action `json:"action"`

	// Categories is the sorted set of categories that crossed the warn
	// threshold or are culturally blocked and flagged.
	Categories []Category `json:"categories"`

	// CategorySeverity holds the fused severity per category.
	CategorySeverity map[Category]float64 `json:"category_severity,omitempty"`

	// EngineVotes lists every engine verdict in chain configuration order.
	EngineVotes []EngineVerdict `json:"engine_votes"`

	// Mitigation is present when the action required a mitigation plan.
	Mitigation *MitigationPlan `json:"mitigation,omitempty"`
}

// Allowed reports whether downstream generation may proceed.
func (d *Decision) Allowed() bool {
	return d.Action != ActionBlock
}

// HasCategory reports whether the decision lists category c.
func (d *Decision) HasCategory(c Category) bool {
	for _, got := range d.Categories {
		if got == c {
			return true
		}
	}
	return false
}
