package model

import "time"

// PillarResult is the resolved value of one pillar for one country-year.
type PillarResult struct {
	ISO3    string   `json:"iso3"`
	Year    int      `json:"year"`
	Pillar  Pillar   `json:"pillar"`
	Score   float64  `json:"score"`
	Tier    Tier     `json:"tier"`
	CILower float64  `json:"ci_lower"`
	CIUpper float64  `json:"ci_upper"`
	Sources []string `json:"sources"`
}

// CountryYearKey returns the output row the result belongs to.
func (r PillarResult) CountryYearKey() CountryYear {
	return CountryYear{ISO3: r.ISO3, Year: r.Year}
}

// PillarValue holds a pillar's fields as stored in country_year.
type PillarValue struct {
	Score   float64 `json:"score"`
	Tier    Tier    `json:"tier"`
	CILower float64 `json:"ci_lower"`
	CIUpper float64 `json:"ci_upper"`
}

// CountryYearRow is one row of country_year.
type CountryYearRow struct {
	ISO3        string                 `json:"iso3"`
	Year        int                    `json:"year"`
	Pillars     map[Pillar]PillarValue `json:"pillars"`
	SourcesUsed map[Pillar][]string    `json:"sources_used"`
	ComputedAt  time.Time              `json:"computed_at"`
}
