package quality

import (
	"fmt"

	"github.com/trust-atlas/atlas-cli/internal/methodology"
	"github.com/trust-atlas/atlas-cli/internal/model"
)

// outlierCheck flags scores outside the expected band of their trust type.
type outlierCheck struct {
	ranges []methodology.ExpectedRange
}

func (c *outlierCheck) Name() string        { return "statistical_outliers" }
func (c *outlierCheck) Description() string { return "Scores outside expected ranges" }

func (c *outlierCheck) Run(snap *Snapshot) ([]model.Flag, error) {
	var flags []model.Flag
	for _, r := range c.ranges {
		var hits []model.Observation
		for _, o := range snap.Observations {
			if r.Matches(o) && (o.Score < r.Min || o.Score > r.Max) {
				hits = append(hits, o)
			}
		}
		byScoreDesc(hits)

		for _, o := range hits {
			sev := model.SeverityWarning
			if o.Score < r.HardMin || o.Score > r.HardMax {
				sev = model.SeverityError
			}
			d := observationDetails(o)
			d["expected_range"] = []float64{r.Min, r.Max}
			d["reason"] = fmt.Sprintf("%s (%.1f, expected %g-%g)", r.Reason, o.Score, r.Min, r.Max)
			flags = append(flags, newFlag(o, model.FlagStatisticalOutlier, sev, d))
		}
	}
	return flags, nil
}

// methodologyCheck flags scores above the plausible ceiling of their
// declared response scale.
type methodologyCheck struct {
	ceilings []methodology.MethodologyLimit
}

func (c *methodologyCheck) Name() string        { return "methodology_mismatch" }
func (c *methodologyCheck) Description() string { return "Scores unexpected for methodology type" }

func (c *methodologyCheck) Run(snap *Snapshot) ([]model.Flag, error) {
	var flags []model.Flag
	for _, l := range c.ceilings {
		var hits []model.Observation
		for _, o := range snap.Observations {
			if o.TrustType == l.TrustType && o.Methodology == l.Methodology && o.Score > l.Max {
				hits = append(hits, o)
			}
		}
		byScoreDesc(hits)

		for _, o := range hits {
			d := observationDetails(o)
			d["expected_max"] = l.Max
			d["reason"] = fmt.Sprintf("%s %s trust of %.1f%% exceeds typical max of %g%%",
				l.Methodology, l.TrustType, o.Score, l.Max)
			flags = append(flags, newFlag(o, model.FlagMethodologyMismatch, model.SeverityWarning, d))
		}
	}
	return flags, nil
}
