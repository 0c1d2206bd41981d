package types

// Redaction summarises the replacements of one rule kind.
type Redaction struct {
	// Kind is the matched pattern kind (email, card, ssn, phone, violent_verb).
	Kind string `json:"kind"`

	// Replacement is the placeholder or paraphrase token used. Violent-verb
	// rewrites use per-verb paraphrases, so this is empty for that kind.
	Replacement string `json:"replacement,omitempty"`

	// Count is the number of replacements applied.
	Count int `json:"count"`
}

// MitigationPlan is the ordered set of redactions and rewrites applied to a text.
type MitigationPlan struct {
	// RewrittenText is the text after all rules were applied.
	RewrittenText string `json:"rewritten_text"`

	// Redactions lists per-kind replacement counts in rule order.
	Redactions []Redaction `json:"redactions"`

	// RulesApplied lists the ids of the rules that changed the text, in order.
	RulesApplied []string `json:"rules_applied"`

	// Mitigated is true when any rule changed the text.
	Mitigated bool `json:"mitigated"`

	// Message is a short human-readable summary.
	Message string `json:"message"`
}

// RedactionCount returns the total number of replacements.
func (p *MitigationPlan) RedactionCount() int {
	total := 0
	for _, r := range p.Redactions {
		total += r.Count
	}
	return total
}
