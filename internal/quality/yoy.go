package quality

import (
	"fmt"
	"math"
	"sort"

	"github.com/trust-atlas/atlas-cli/internal/methodology"
	"github.com/trust-atlas/atlas-cli/internal/model"
)

// yoyCheck flags large jumps between consecutive observations of one series.
type yoyCheck struct {
	rules methodology.YoYRules
}

type seriesKey struct {
	ISO3      string
	Source    string
	TrustType model.TrustType
}

type yoyHit struct {
	obs, prev model.Observation
	change    float64
}

func (c *yoyCheck) Name() string { return "yoy_anomalies" }
func (c *yoyCheck) Description() string {
	return fmt.Sprintf("Year-over-year changes >%g points", c.rules.WarnDelta)
}

func (c *yoyCheck) Run(snap *Snapshot) ([]model.Flag, error) {
	series := make(map[seriesKey][]model.Observation)
	for _, o := range snap.Observations {
		k := seriesKey{ISO3: o.ISO3, Source: o.Source, TrustType: o.TrustType}
		series[k] = append(series[k], o)
	}

	var hits []yoyHit
	for _, obs := range series {
		sort.SliceStable(obs, func(i, j int) bool {
			if obs[i].Year != obs[j].Year {
				return obs[i].Year < obs[j].Year
			}
			return obs[i].ID < obs[j].ID
		})
		// Each observation is compared with its predecessor only.
		for i := 1; i < len(obs); i++ {
			prev, cur := obs[i-1], obs[i]
			if cur.Year-prev.Year > c.rules.MaxGapYears {
				continue
			}
			change := cur.Score - prev.Score
			if math.Abs(change) <= c.rules.WarnDelta {
				continue
			}
			hits = append(hits, yoyHit{obs: cur, prev: prev, change: change})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		ai, aj := math.Abs(hits[i].change), math.Abs(hits[j].change)
		if ai != aj {
			return ai > aj
		}
		return hits[i].obs.ID < hits[j].obs.ID
	})

	flags := make([]model.Flag, 0, len(hits))
	for _, h := range hits {
		d := observationDetails(h.obs)
		d["prev_year"] = h.prev.Year
		d["prev_score"] = h.prev.Score
		d["change"] = h.change
		d["prev_observation_id"] = h.prev.ID
		d["reason"] = fmt.Sprintf("Score changed %+.1f points from %d to %d", h.change, h.prev.Year, h.obs.Year)
		flags = append(flags, newFlag(h.obs, model.FlagYoYAnomaly, severityAbove(math.Abs(h.change), c.rules.ErrorDelta), d))
	}
	return flags, nil
}
