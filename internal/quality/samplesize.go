package quality

import (
	"slices"
	"sort"

	"github.com/trust-atlas/atlas-cli/internal/methodology"
	"github.com/trust-atlas/atlas-cli/internal/model"
)

// sampleSizeCheck flags survey observations with small, implausibly large or
// missing sample sizes.
type sampleSizeCheck struct {
	rules methodology.SampleSizeRules
}

func (c *sampleSizeCheck) Name() string        { return "sample_size" }
func (c *sampleSizeCheck) Description() string { return "Sample size issues (too small/large/missing)" }

func (c *sampleSizeCheck) Run(snap *Snapshot) ([]model.Flag, error) {
	var small, large, missing []model.Observation
	for _, o := range snap.Observations {
		switch {
		case o.SampleN == nil:
			if o.TrustType.IsSurvey() && !slices.Contains(c.rules.ExemptMissing, o.Source) {
				missing = append(missing, o)
			}
		case *o.SampleN < c.rules.WarnBelow:
			if o.TrustType.IsSurvey() {
				small = append(small, o)
			}
		case *o.SampleN > c.rules.WarnAbove:
			large = append(large, o)
		}
	}

	sort.SliceStable(small, func(i, j int) bool { return *small[i].SampleN < *small[j].SampleN })
	sort.SliceStable(large, func(i, j int) bool { return *large[i].SampleN > *large[j].SampleN })
	sort.SliceStable(missing, func(i, j int) bool {
		if missing[i].Source != missing[j].Source {
			return missing[i].Source < missing[j].Source
		}
		if missing[i].Year != missing[j].Year {
			return missing[i].Year < missing[j].Year
		}
		return missing[i].ID < missing[j].ID
	})
	if c.rules.MissingLimit > 0 && len(missing) > c.rules.MissingLimit {
		missing = missing[:c.rules.MissingLimit]
	}

	flags := make([]model.Flag, 0, len(small)+len(large)+len(missing))
	for _, o := range small {
		sev := model.SeverityWarning
		if *o.SampleN < c.rules.ErrorBelow {
			sev = model.SeverityError
		}
		d := observationDetails(o)
		d["sample_n"] = *o.SampleN
		d["reason"] = printer.Sprintf("Sample size of %d is below minimum threshold of %d", *o.SampleN, c.rules.WarnBelow)
		flags = append(flags, newFlag(o, model.FlagSampleSize, sev, d))
	}
	for _, o := range large {
		d := observationDetails(o)
		d["sample_n"] = *o.SampleN
		d["reason"] = printer.Sprintf("Sample size of %d is unusually large - possible aggregation error", *o.SampleN)
		flags = append(flags, newFlag(o, model.FlagSampleSize, model.SeverityWarning, d))
	}
	for _, o := range missing {
		d := observationDetails(o)
		d["sample_n"] = nil
		d["reason"] = "Survey data missing sample size"
		flags = append(flags, newFlag(o, model.FlagSampleSize, model.SeverityWarning, d))
	}
	return flags, nil
}
