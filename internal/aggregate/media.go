package aggregate

import (
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/trust-atlas/atlas-cli/internal/methodology"
	"github.com/trust-atlas/atlas-cli/internal/model"
)

// MediaBlend is the weighted media score of one country-year.
type MediaBlend struct {
	ISO3    string
	Year    int
	Score   float64
	Sources []string
	Weights map[string]float64
}

// EffectiveWeights redistributes nominal weights over the sources present so
// they sum to 1, proportionally to each source's own nominal share. Sources
// without a nominal weight are left out. It returns nil when the available
// weight is zero.
func EffectiveWeights(present []string, tables methodology.Tables) map[string]float64 {
	var available float64
	for _, src := range present {
		if w, ok := tables.MediaWeight(src); ok {
			available += w
		}
	}
	if available <= 0 {
		return nil
	}

	out := make(map[string]float64, len(present))
	for _, src := range present {
		w, ok := tables.MediaWeight(src)
		if !ok || w <= 0 {
			continue
		}
		out[src] = w / available
	}
	return out
}

// BlendMedia computes one weighted score per country-year. Multiple
// observations from the same source are averaged first. Country-years whose
// sources carry no weight are skipped. The output is sorted by iso3, then
// year.
func BlendMedia(obs []model.Observation, tables methodology.Tables) []MediaBlend {
	grouped := make(map[model.CountryYear]map[string][]float64)
	for _, o := range obs {
		key := model.CountryYear{ISO3: o.ISO3, Year: o.Year}
		if grouped[key] == nil {
			grouped[key] = make(map[string][]float64)
		}
		grouped[key][o.Source] = append(grouped[key][o.Source], o.Score)
	}

	out := make([]MediaBlend, 0, len(grouped))
	for key, bySource := range grouped {
		sources := make([]string, 0, len(bySource))
		for src := range bySource {
			sources = append(sources, src)
		}
		sort.Strings(sources)

		weights := EffectiveWeights(sources, tables)
		if weights == nil {
			continue
		}

		var score float64
		contributing := make([]string, 0, len(weights))
		for _, src := range sources {
			w, ok := weights[src]
			if !ok {
				continue
			}
			mean, err := stats.Mean(bySource[src])
			if err != nil {
				continue
			}
			score += w * mean
			contributing = append(contributing, src)
		}

		out = append(out, MediaBlend{
			ISO3:    key.ISO3,
			Year:    key.Year,
			Score:   score,
			Sources: contributing,
			Weights: weights,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ISO3 != out[j].ISO3 {
			return out[i].ISO3 < out[j].ISO3
		}
		return out[i].Year < out[j].Year
	})
	return out
}
