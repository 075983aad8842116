package methodology

import "github.com/trust-atlas/atlas-cli/internal/model"

// CrossSourcePolicy selects which side of a disagreeing pair is flagged.
type CrossSourcePolicy string

const (
	// FlagHigher flags the higher-scoring observation of the pair.
	FlagHigher CrossSourcePolicy = "higher"
	// FlagLower flags the lower-scoring observation of the pair.
	FlagLower CrossSourcePolicy = "lower"
	// FlagBoth flags both observations.
	FlagBoth CrossSourcePolicy = "both"
)

// QualityRules holds the thresholds of every quality check.
type QualityRules struct {
	ExpectedRanges      []ExpectedRange    `yaml:"expected_ranges"`
	YoY                 YoYRules           `yaml:"yoy"`
	CrossSource         CrossSourceRules   `yaml:"cross_source"`
	MethodologyCeilings []MethodologyLimit `yaml:"methodology_ceilings"`
	SampleSize          SampleSizeRules    `yaml:"sample_size"`
	Coverage            CoverageRules      `yaml:"coverage"`
}

// ExpectedRange is the plausible band of a trust type, optionally narrowed to
// one methodology. Scores strictly outside [Min, Max] are warnings; strictly
// outside [HardMin, HardMax] they are errors. HardMin 0 and HardMax 100
// disable the error band.
type ExpectedRange struct {
	TrustType   model.TrustType   `yaml:"trust_type"`
	Methodology model.Methodology `yaml:"methodology"`
	Min         float64           `yaml:"min"`
	Max         float64           `yaml:"max"`
	HardMin     float64           `yaml:"hard_min"`
	HardMax     float64           `yaml:"hard_max"`
	Reason      string            `yaml:"reason"`
}

// Matches reports whether the range applies to an observation.
func (r ExpectedRange) Matches(o model.Observation) bool {
	if o.TrustType != r.TrustType {
		return false
	}
	return r.Methodology == model.MethodologyNone || r.Methodology == o.Methodology
}

// YoYRules configures the year-over-year check.
type YoYRules struct {
	MaxGapYears int     `yaml:"max_gap_years"`
	WarnDelta   float64 `yaml:"warn_delta"`
	ErrorDelta  float64 `yaml:"error_delta"`
}

// CrossSourceRules configures the cross-source check.
type CrossSourceRules struct {
	Threshold          float64           `yaml:"threshold"`
	MediaThreshold     float64           `yaml:"media_threshold"`
	ErrorDelta         float64           `yaml:"error_delta"`
	ExcludedTrustTypes []model.TrustType `yaml:"excluded_trust_types"`
	Policy             CrossSourcePolicy `yaml:"policy"`
}

// ThresholdFor returns the disagreement threshold of a trust type.
func (r CrossSourceRules) ThresholdFor(t model.TrustType) float64 {
	if t == model.TrustMedia {
		return r.MediaThreshold
	}
	return r.Threshold
}

// MethodologyLimit is the plausible ceiling of a score on a given scale.
type MethodologyLimit struct {
	TrustType   model.TrustType   `yaml:"trust_type"`
	Methodology model.Methodology `yaml:"methodology"`
	Max         float64           `yaml:"max"`
}

// SampleSizeRules configures the sample size check.
type SampleSizeRules struct {
	WarnBelow  int `yaml:"warn_below"`
	ErrorBelow int `yaml:"error_below"`
	WarnAbove  int `yaml:"warn_above"`
	// ExemptMissing lists sources that never report sample sizes.
	ExemptMissing []string `yaml:"exempt_missing"`
	// MissingLimit caps missing-sample findings; 0 disables the cap.
	MissingLimit int `yaml:"missing_limit"`
}

// CoverageRules configures the coverage gap check.
type CoverageRules struct {
	MinCountries int               `yaml:"min_countries"`
	TrustTypes   []model.TrustType `yaml:"trust_types"`
	// SingleObservationLimit caps single-observation country findings; 0
	// disables the cap.
	SingleObservationLimit int `yaml:"single_observation_limit"`
}

// DefaultQuality returns the default check thresholds.
func DefaultQuality() QualityRules {
	return QualityRules{
		ExpectedRanges: []ExpectedRange{
			{TrustType: model.TrustInterpersonal, Methodology: model.MethodologyBinary, Min: 10, Max: 60, HardMin: 5, HardMax: 70,
				Reason: "Binary interpersonal trust outside expected range"},
			{TrustType: model.TrustInterpersonal, Methodology: model.MethodologyFour, Min: 0, Max: 80, HardMin: 0, HardMax: 100,
				Reason: "4-point scale interpersonal unusually high"},
			{TrustType: model.TrustInstitutional, Min: 5, Max: 95, HardMin: 3, HardMax: 98,
				Reason: "Institutional trust outside expected range"},
			{TrustType: model.TrustGovernance, Min: 0, Max: 95, HardMin: 0, HardMax: 100,
				Reason: "Governance score suspiciously high"},
			{TrustType: model.TrustMedia, Min: 15, Max: 75, HardMin: 10, HardMax: 85,
				Reason: "Media trust outside typical range"},
		},
		YoY: YoYRules{MaxGapYears: 5, WarnDelta: 25, ErrorDelta: 40},
		CrossSource: CrossSourceRules{
			Threshold:          30,
			MediaThreshold:     35,
			ErrorDelta:         40,
			ExcludedTrustTypes: []model.TrustType{model.TrustGovernance},
			Policy:             FlagHigher,
		},
		MethodologyCeilings: []MethodologyLimit{
			{TrustType: model.TrustInterpersonal, Methodology: model.MethodologyBinary, Max: 55},
			{TrustType: model.TrustInterpersonal, Methodology: model.MethodologyZeroTen, Max: 70},
		},
		SampleSize: SampleSizeRules{
			WarnBelow:     100,
			ErrorBelow:    50,
			WarnAbove:     100_000,
			ExemptMissing: []string{"OECD", "Eurobarometer"},
			MissingLimit:  100,
		},
		Coverage: CoverageRules{
			MinCountries:           5,
			TrustTypes:             []model.TrustType{model.TrustInterpersonal, model.TrustInstitutional},
			SingleObservationLimit: 50,
		},
	}
}
