package quality

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/trust-atlas/atlas-cli/internal/methodology"
	"github.com/trust-atlas/atlas-cli/internal/model"
)

// crossSourceCheck flags observations that disagree strongly with another
// source for the same country, year and trust type.
type crossSourceCheck struct {
	rules methodology.CrossSourceRules
}

type groupKey struct {
	ISO3      string
	Year      int
	TrustType model.TrustType
}

// sourcePair holds a disagreeing pair with a.Source < b.Source.
type sourcePair struct {
	a, b model.Observation
	diff float64
}

func (c *crossSourceCheck) Name() string { return "cross_source" }
func (c *crossSourceCheck) Description() string {
	return fmt.Sprintf("Sources differing >%g points (>%g for media)", c.rules.Threshold, c.rules.MediaThreshold)
}

func (c *crossSourceCheck) Run(snap *Snapshot) ([]model.Flag, error) {
	groups := make(map[groupKey][]model.Observation)
	for _, o := range snap.Observations {
		if slices.Contains(c.rules.ExcludedTrustTypes, o.TrustType) {
			continue
		}
		k := groupKey{ISO3: o.ISO3, Year: o.Year, TrustType: o.TrustType}
		groups[k] = append(groups[k], o)
	}

	var pairs []sourcePair
	for k, obs := range groups {
		threshold := c.rules.ThresholdFor(k.TrustType)
		for i := range obs {
			for j := range obs {
				a, b := obs[i], obs[j]
				if a.Source >= b.Source {
					continue
				}
				diff := math.Abs(a.Score - b.Score)
				if diff > threshold {
					pairs = append(pairs, sourcePair{a: a, b: b, diff: diff})
				}
			}
		}
	}
	sortPairs(pairs)

	var flags []model.Flag
	flagged := make(map[int64]bool)
	for _, p := range pairs {
		for _, o := range c.sides(p) {
			if flagged[o.ID] {
				continue
			}
			flagged[o.ID] = true
			flags = append(flags, newFlag(o, model.FlagCrossSource, severityAbove(p.diff, c.rules.ErrorDelta), pairDetails(o, p)))
		}
	}
	return flags, nil
}

// sides returns the observations of a pair the policy flags.
func (c *crossSourceCheck) sides(p sourcePair) []model.Observation {
	high, low := p.a, p.b
	if p.b.Score > p.a.Score {
		high, low = p.b, p.a
	}
	switch c.rules.Policy {
	case methodology.FlagLower:
		return []model.Observation{low}
	case methodology.FlagBoth:
		return []model.Observation{high, low}
	default:
		return []model.Observation{high}
	}
}

// sortPairs orders pairs by descending difference with a stable tiebreak.
func sortPairs(pairs []sourcePair) {
	sort.Slice(pairs, func(i, j int) bool {
		pi, pj := pairs[i], pairs[j]
		if pi.diff != pj.diff {
			return pi.diff > pj.diff
		}
		if pi.a.ISO3 != pj.a.ISO3 {
			return pi.a.ISO3 < pj.a.ISO3
		}
		if pi.a.Year != pj.a.Year {
			return pi.a.Year < pj.a.Year
		}
		if pi.a.TrustType != pj.a.TrustType {
			return pi.a.TrustType < pj.a.TrustType
		}
		if pi.a.Source != pj.a.Source {
			return pi.a.Source < pj.a.Source
		}
		return pi.b.Source < pj.b.Source
	})
}

func pairDetails(flagged model.Observation, p sourcePair) map[string]any {
	d := observationDetails(flagged)
	d["source_a"] = p.a.Source
	d["score_a"] = p.a.Score
	d["methodology_a"] = string(p.a.Methodology)
	d["observation_id_a"] = p.a.ID
	d["source_b"] = p.b.Source
	d["score_b"] = p.b.Score
	d["methodology_b"] = string(p.b.Methodology)
	d["observation_id_b"] = p.b.ID
	d["difference"] = p.diff
	d["reason"] = fmt.Sprintf("%s (%.1f) vs %s (%.1f) differ by %.1f points",
		p.a.Source, p.a.Score, p.b.Source, p.b.Score, p.diff)
	return d
}
