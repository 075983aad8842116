package aggregate

import (
	"github.com/trust-atlas/atlas-cli/internal/methodology"
	"github.com/trust-atlas/atlas-cli/internal/model"
)

// Compute resolves one pillar's observations into scored, tiered results,
// one per country-year, sorted by iso3 then year. Ages are measured against
// referenceYear; a data year after the reference year counts as age zero.
func Compute(pillar model.Pillar, obs []model.Observation, tables methodology.Tables, referenceYear int) []model.PillarResult {
	if pillar.IsSurvey() {
		return computeSurvey(pillar, obs, tables, referenceYear)
	}
	return computeMedia(pillar, obs, tables, referenceYear)
}

func computeSurvey(pillar model.Pillar, obs []model.Observation, tables methodology.Tables, referenceYear int) []model.PillarResult {
	winners := ResolveSurvey(obs, tables)
	out := make([]model.PillarResult, 0, len(winners))
	for _, w := range winners {
		tier := SurveyTier(w.Priority, age(referenceYear, w.Year), tables.Tiers)
		out = append(out, result(pillar, w.ISO3, w.Year, w.Score, tier, []string{w.Source}, tables.Margins))
	}
	return out
}

func computeMedia(pillar model.Pillar, obs []model.Observation, tables methodology.Tables, referenceYear int) []model.PillarResult {
	blends := BlendMedia(obs, tables)
	out := make([]model.PillarResult, 0, len(blends))
	for _, b := range blends {
		tier := MediaTier(b.Sources, age(referenceYear, b.Year), tables)
		out = append(out, result(pillar, b.ISO3, b.Year, b.Score, tier, b.Sources, tables.Margins))
	}
	return out
}

// result rounds the score and derives the interval from the rounded value,
// so the stored bounds always contain the stored score.
func result(pillar model.Pillar, iso3 string, year int, score float64, tier model.Tier, sources []string, margins methodology.Margins) model.PillarResult {
	s := round1(score)
	lower, upper := Interval(s, tier, margins)
	return model.PillarResult{
		ISO3:    iso3,
		Year:    year,
		Pillar:  pillar,
		Score:   s,
		Tier:    tier,
		CILower: round1(lower),
		CIUpper: round1(upper),
		Sources: sources,
	}
}

func age(referenceYear, year int) int {
	if a := referenceYear - year; a > 0 {
		return a
	}
	return 0
}
