package culture

import (
	"maps"
	"slices"

	"openserver-hq/guardrails/pkg/moderation/types"
)

// DefaultKey is the profile map key of the fallback profile.
const DefaultKey = "default"

// Profile is a language-scoped policy adjustment. Profiles are read-only once
// loaded into a Store.
type Profile struct {
	// Language is the language tag the profile is keyed by ("default" for the fallback).
	Language string

	// Name identifies the profile in decisions (e.g. "profile_fr").
	Name string

	// CategoryBias multiplies fused severities per category. Missing
	// categories use 1.0.
	CategoryBias map[types.Category]float64

	// BlockedCategories are culturally forbidden categories. They block a
	// request whenever at least one engine flags them.
	BlockedCategories []types.Category
}

// IdentityProfile returns the profile used when nothing is configured:
// bias 1.0 for every category and nothing blocked.
func IdentityProfile() Profile {
	return Profile{
		Language:          DefaultKey,
		Name:              DefaultKey,
		CategoryBias:      map[types.Category]float64{},
		BlockedCategories: []types.Category{},
	}
}

// Bias returns the multiplier for category c.
func (p Profile) Bias(c types.Category) float64 {
	if b, ok := p.CategoryBias[c]; ok {
		return b
	}
	return 1.0
}

// Blocks reports whether category c is culturally blocked.
func (p Profile) Blocks(c types.Category) bool {
	_, found := slices.BinarySearch(p.BlockedCategories, c)
	return found
}

func (p Profile) clone() Profile {
	p.CategoryBias = maps.Clone(p.CategoryBias)
	p.BlockedCategories = slices.Clone(p.BlockedCategories)
	return p
}
