package model

import (
	"github.com/rotisserie/eris"
)

// Pillar is an aggregated output dimension of the country_year table.
type Pillar string

const (
	PillarInterpersonal Pillar = "interpersonal"
	PillarInstitutional Pillar = "institutional"
	PillarMedia         Pillar = "media"
	PillarGovernance    Pillar = "governance"
)

// AggregatedPillars lists the pillars this engine computes, in run order.
// Governance is populated by a separate pathway.
var AggregatedPillars = []Pillar{PillarInterpersonal, PillarInstitutional, PillarMedia}

// PillarColumns names the country_year columns owned by a pillar.
type PillarColumns struct {
	Score   string
	Tier    string
	CILower string
	CIUpper string
}

// pillarColumns is the fixed pillar-to-column mapping. SQL is only ever
// built from these identifiers.
var pillarColumns = map[Pillar]PillarColumns{
	PillarInterpersonal: {"interpersonal", "interpersonal_confidence_tier", "interpersonal_ci_lower", "interpersonal_ci_upper"},
	PillarInstitutional: {"institutional", "institutional_confidence_tier", "institutional_ci_lower", "institutional_ci_upper"},
	PillarMedia:         {"media", "media_confidence_tier", "media_ci_lower", "media_ci_upper"},
	PillarGovernance:    {"governance", "governance_confidence_tier", "governance_ci_lower", "governance_ci_upper"},
}

// ParsePillar converts a CLI or config value into an aggregated pillar.
func ParsePillar(s string) (Pillar, error) {
	p := Pillar(s)
	switch p {
	case PillarInterpersonal, PillarInstitutional, PillarMedia:
		return p, nil
	default:
		return "", eris.Errorf("unknown pillar: %q (valid: interpersonal, institutional, media, all)", s)
	}
}

// ParsePillars expands "all" into every aggregated pillar.
func ParsePillars(s string) ([]Pillar, error) {
	if s == "all" || s == "" {
		out := make([]Pillar, len(AggregatedPillars))
		copy(out, AggregatedPillars)
		return out, nil
	}
	p, err := ParsePillar(s)
	if err != nil {
		return nil, err
	}
	return []Pillar{p}, nil
}

// Columns returns the fixed column mapping for the pillar.
func (p Pillar) Columns() PillarColumns {
	return pillarColumns[p]
}

// TrustType is the observation trust_type feeding the pillar.
func (p Pillar) TrustType() TrustType {
	return TrustType(p)
}

// IsSurvey reports whether the pillar is resolved by source priority.
func (p Pillar) IsSurvey() bool {
	return p == PillarInterpersonal || p == PillarInstitutional
}

// Tier is a coarse confidence class.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// Tiers lists tiers from most to least confident.
var Tiers = []Tier{TierA, TierB, TierC}

// Rank orders tiers; a lower rank is more confident.
func (t Tier) Rank() int {
	switch t {
	case TierA:
		return 0
	case TierB:
		return 1
	default:
		return 2
	}
}
