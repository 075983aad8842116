package aggregate

import (
	"math"

	"github.com/trust-atlas/atlas-cli/internal/methodology"
	"github.com/trust-atlas/atlas-cli/internal/model"
)

// SurveyTier classifies a survey pillar winner by the authority class of its
// source and the age of the data.
func SurveyTier(priority, age int, rules methodology.TierRules) model.Tier {
	switch {
	case priority <= rules.GoldMaxRank:
		switch {
		case age <= rules.GoldTierAMaxAge:
			return model.TierA
		case age <= rules.GoldTierBMaxAge:
			return model.TierB
		default:
			return model.TierC
		}
	case priority <= rules.BarometerMaxRank:
		if age <= rules.BarometerTierBMaxAge {
			return model.TierB
		}
		return model.TierC
	default:
		return model.TierC
	}
}

// MediaTier classifies a media blend by which kinds of sources contributed
// and the age of the data.
func MediaTier(sources []string, age int, tables methodology.Tables) model.Tier {
	rules := tables.Tiers
	var hasAnnual, hasPeriodic bool
	for _, src := range sources {
		if tables.IsAnnualMediaSource(src) {
			hasAnnual = true
		}
		if tables.IsPeriodicMediaSource(src) {
			hasPeriodic = true
		}
	}

	switch {
	case hasAnnual && age <= rules.MediaAnnualTierAMaxAge:
		return model.TierA
	case hasAnnual && age <= rules.MediaAnnualTierBMaxAge,
		hasPeriodic && age <= rules.MediaPeriodicTierBMaxAge:
		return model.TierB
	default:
		return model.TierC
	}
}

// Interval returns the symmetric band around score for a tier, clamped to
// [0, 100].
func Interval(score float64, tier model.Tier, margins methodology.Margins) (lower, upper float64) {
	m := margins.For(tier)
	return math.Max(0, score-m), math.Min(100, score+m)
}

// round1 rounds to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
