package aggregate

import (
	"github.com/montanaflynn/stats"

	"github.com/trust-atlas/atlas-cli/internal/model"
)

// PillarStats summarises one pillar run.
type PillarStats struct {
	RunID         string             `json:"run_id,omitempty"`
	Pillar        model.Pillar       `json:"pillar"`
	DryRun        bool               `json:"dry_run"`
	ReferenceYear int                `json:"reference_year"`
	Observations  int                `json:"observations"`
	Countries     int                `json:"countries"`
	CountryYears  int                `json:"country_years"`
	Written       int64              `json:"written"`
	Cleared       int64              `json:"cleared"`
	ByTier        map[model.Tier]int `json:"by_tier"`
	BySource      map[string]int     `json:"by_source"`
	Scores        Distribution       `json:"scores"`
}

// Distribution describes the spread of resolved scores.
type Distribution struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
}

func newPillarStats(pillar model.Pillar, opts RunOptions, obs []model.Observation, results []model.PillarResult) *PillarStats {
	s := &PillarStats{
		Pillar:        pillar,
		DryRun:        opts.DryRun,
		ReferenceYear: opts.ReferenceYear,
		Observations:  len(obs),
		CountryYears:  len(results),
		ByTier:        make(map[model.Tier]int, len(model.Tiers)),
		BySource:      make(map[string]int),
	}

	countries := make(map[string]bool)
	scores := make(stats.Float64Data, 0, len(results))
	for _, r := range results {
		countries[r.ISO3] = true
		s.ByTier[r.Tier]++
		for _, src := range r.Sources {
			s.BySource[src]++
		}
		scores = append(scores, r.Score)
	}
	s.Countries = len(countries)
	s.Scores = distribution(scores)
	return s
}

func distribution(data stats.Float64Data) Distribution {
	if data.Len() == 0 {
		return Distribution{}
	}
	var d Distribution
	d.Min, _ = data.Min()
	d.Max, _ = data.Max()
	d.Mean, _ = data.Mean()
	d.Median, _ = data.Median()
	d.StdDev, _ = data.StandardDeviation()
	d.Mean = round1(d.Mean)
	d.Median = round1(d.Median)
	d.StdDev = round1(d.StdDev)
	return d
}

// Map renders the stats for the run log.
func (s *PillarStats) Map() map[string]any {
	byTier := make(map[string]int, len(s.ByTier))
	for t, n := range s.ByTier {
		byTier[string(t)] = n
	}
	return map[string]any{
		"pillar":         string(s.Pillar),
		"reference_year": s.ReferenceYear,
		"observations":   s.Observations,
		"countries":      s.Countries,
		"country_years":  s.CountryYears,
		"written":        s.Written,
		"cleared":        s.Cleared,
		"by_tier":        byTier,
		"by_source":      s.BySource,
		"scores":         s.Scores,
	}
}
