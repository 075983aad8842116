// Package methodology holds the tunable tables that drive aggregation and
// quality checks: source priorities, media weights, tier thresholds,
// interval margins and check thresholds.
package methodology

import (
	"os"
	"slices"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/trust-atlas/atlas-cli/internal/model"
)

// Tables is the full methodology configuration. The zero value is not
// usable; start from Default.
type Tables struct {
	// SourcePriority ranks survey sources; lower is more authoritative.
	SourcePriority map[string]int `yaml:"source_priority"`
	// UnrankedPriority applies to sources missing from SourcePriority.
	UnrankedPriority int `yaml:"unranked_priority"`
	// ExcludedSurveySources use scales incompatible with the rest of the
	// survey pillars and never win a country-year.
	ExcludedSurveySources []string `yaml:"excluded_survey_sources"`

	// MediaWeights are nominal weights over the complete media source set.
	MediaWeights map[string]float64 `yaml:"media_weights"`
	// AnnualMediaSources publish every year.
	AnnualMediaSources []string `yaml:"annual_media_sources"`
	// PeriodicMediaSources publish in multi-year waves.
	PeriodicMediaSources []string `yaml:"periodic_media_sources"`

	Tiers   TierRules    `yaml:"tiers"`
	Margins Margins      `yaml:"margins"`
	Quality QualityRules `yaml:"quality"`
}

// TierRules are the age and rank thresholds of the tier classifier.
type TierRules struct {
	GoldMaxRank              int `yaml:"gold_max_rank"`
	GoldTierAMaxAge          int `yaml:"gold_tier_a_max_age"`
	GoldTierBMaxAge          int `yaml:"gold_tier_b_max_age"`
	BarometerMaxRank         int `yaml:"barometer_max_rank"`
	BarometerTierBMaxAge     int `yaml:"barometer_tier_b_max_age"`
	MediaAnnualTierAMaxAge   int `yaml:"media_annual_tier_a_max_age"`
	MediaAnnualTierBMaxAge   int `yaml:"media_annual_tier_b_max_age"`
	MediaPeriodicTierBMaxAge int `yaml:"media_periodic_tier_b_max_age"`
}

// Margins are the symmetric interval half-widths per tier.
type Margins struct {
	A float64 `yaml:"a"`
	B float64 `yaml:"b"`
	C float64 `yaml:"c"`
}

// For returns the margin of a tier. Unknown tiers get the widest margin.
func (m Margins) For(t model.Tier) float64 {
	switch t {
	case model.TierA:
		return m.A
	case model.TierB:
		return m.B
	default:
		return m.C
	}
}

// Default returns the published methodology.
func Default() Tables {
	return Tables{
		SourcePriority: map[string]int{
			"WVS":               1,
			"EVS":               2,
			"GSS":               3,
			"ANES":              3,
			"CES":               3,
			"Afrobarometer":     4,
			"Arab Barometer":    4,
			"Asian Barometer":   4,
			"Latinobarometro":   4,
			"CaucasusBarometer": 5,
			"LAPOP":             5,
			"LiTS":              5,
			"ESS":               6,
			"OECD":              6,
			"EU-SILC":           6,
		},
		UnrankedPriority:      10,
		ExcludedSurveySources: []string{"ESS", "OECD", "EU-SILC"},

		MediaWeights: map[string]float64{
			"Reuters_DNR":   0.4,
			"Eurobarometer": 0.4,
			"WVS":           0.2,
		},
		AnnualMediaSources:   []string{"Reuters_DNR", "Eurobarometer"},
		PeriodicMediaSources: []string{"WVS"},

		Tiers: TierRules{
			GoldMaxRank:              3,
			GoldTierAMaxAge:          3,
			GoldTierBMaxAge:          5,
			BarometerMaxRank:         5,
			BarometerTierBMaxAge:     3,
			MediaAnnualTierAMaxAge:   1,
			MediaAnnualTierBMaxAge:   2,
			MediaPeriodicTierBMaxAge: 3,
		},
		Margins: Margins{A: 5, B: 10, C: 15},
		Quality: DefaultQuality(),
	}
}

// Load reads a YAML file over the defaults. Map entries are merged into the
// default maps; lists and scalars present in the file replace the default.
func Load(path string) (Tables, error) {
	t := Default()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, eris.Wrapf(err, "methodology: read %s", path)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tables{}, eris.Wrapf(err, "methodology: parse %s", path)
	}
	if err := Validate(t); err != nil {
		return Tables{}, eris.Wrapf(err, "methodology: %s", path)
	}
	return t, nil
}

// Priority returns the rank of a survey source.
func (t Tables) Priority(source string) int {
	if p, ok := t.SourcePriority[source]; ok {
		return p
	}
	return t.UnrankedPriority
}

// IsExcludedSurveySource reports whether source is left out of the survey
// pillars.
func (t Tables) IsExcludedSurveySource(source string) bool {
	return slices.Contains(t.ExcludedSurveySources, source)
}

// MediaWeight returns the nominal weight of a media source.
func (t Tables) MediaWeight(source string) (float64, bool) {
	w, ok := t.MediaWeights[source]
	return w, ok
}

// IsAnnualMediaSource reports whether source publishes yearly.
func (t Tables) IsAnnualMediaSource(source string) bool {
	return slices.Contains(t.AnnualMediaSources, source)
}

// IsPeriodicMediaSource reports whether source publishes in waves.
func (t Tables) IsPeriodicMediaSource(source string) bool {
	return slices.Contains(t.PeriodicMediaSources, source)
}
