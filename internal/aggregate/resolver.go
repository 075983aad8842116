// Package aggregate resolves observations into one tiered, interval-scored
// value per country, year and pillar.
package aggregate

import (
	"sort"

	"github.com/trust-atlas/atlas-cli/internal/methodology"
	"github.com/trust-atlas/atlas-cli/internal/model"
)

// SurveyWinner is the observation chosen for a survey pillar country-year.
type SurveyWinner struct {
	ISO3     string
	Year     int
	Source   string
	Score    float64
	Priority int
}

// ResolveSurvey selects the most authoritative observation per country-year.
// Observations from excluded-scale sources are ignored; a country-year with
// only excluded sources yields no winner. Rank ties go to the source that
// sorts first, so the result does not depend on input order. The output is
// sorted by iso3, then year.
func ResolveSurvey(obs []model.Observation, tables methodology.Tables) []SurveyWinner {
	best := make(map[model.CountryYear]SurveyWinner)

	for _, o := range obs {
		if tables.IsExcludedSurveySource(o.Source) {
			continue
		}
		key := model.CountryYear{ISO3: o.ISO3, Year: o.Year}
		cand := SurveyWinner{
			ISO3:     o.ISO3,
			Year:     o.Year,
			Source:   o.Source,
			Score:    o.Score,
			Priority: tables.Priority(o.Source),
		}
		cur, ok := best[key]
		if !ok || beats(cand, cur) {
			best[key] = cand
		}
	}

	out := make([]SurveyWinner, 0, len(best))
	for _, w := range best {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ISO3 != out[j].ISO3 {
			return out[i].ISO3 < out[j].ISO3
		}
		return out[i].Year < out[j].Year
	})
	return out
}

// beats reports whether a should replace b as the country-year winner.
func beats(a, b SurveyWinner) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	// The same source twice violates corpus uniqueness; the first one
	// encountered is kept. Stores return observations ordered by id.
	return a.Source < b.Source
}
