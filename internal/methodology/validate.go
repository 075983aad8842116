package methodology

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// weightTolerance allows for decimal weights that do not sum exactly.
const weightTolerance = 1e-6

// WeightSum returns the sum of all nominal media weights.
func WeightSum(t Tables) float64 {
	var sum float64
	for _, w := range t.MediaWeights {
		sum += w
	}
	return sum
}

// Validate checks that the tables are internally consistent.
func Validate(t Tables) error {
	var errs []string

	if len(t.SourcePriority) == 0 {
		errs = append(errs, "source_priority must not be empty")
	}
	for _, src := range sortedKeys(t.SourcePriority) {
		if t.SourcePriority[src] < 1 {
			errs = append(errs, fmt.Sprintf("source_priority[%s] must be >= 1", src))
		}
	}
	if t.UnrankedPriority < 1 {
		errs = append(errs, "unranked_priority must be >= 1")
	}

	if len(t.MediaWeights) == 0 {
		errs = append(errs, "media_weights must not be empty")
	}
	for _, src := range sortedKeys(t.MediaWeights) {
		if t.MediaWeights[src] < 0 {
			errs = append(errs, fmt.Sprintf("media_weights[%s] must be >= 0", src))
		}
	}
	if sum := WeightSum(t); len(t.MediaWeights) > 0 && math.Abs(sum-1) > weightTolerance {
		errs = append(errs, fmt.Sprintf("media_weights should sum to 1, got %.4f", sum))
	}

	r := t.Tiers
	if r.GoldMaxRank < 1 || r.BarometerMaxRank < r.GoldMaxRank {
		errs = append(errs, "tiers: need 1 <= gold_max_rank <= barometer_max_rank")
	}
	if r.GoldTierAMaxAge < 0 || r.GoldTierBMaxAge < r.GoldTierAMaxAge {
		errs = append(errs, "tiers: need 0 <= gold_tier_a_max_age <= gold_tier_b_max_age")
	}
	if r.BarometerTierBMaxAge < 0 {
		errs = append(errs, "tiers: barometer_tier_b_max_age must be >= 0")
	}
	if r.MediaAnnualTierAMaxAge < 0 || r.MediaAnnualTierBMaxAge < r.MediaAnnualTierAMaxAge {
		errs = append(errs, "tiers: need 0 <= media_annual_tier_a_max_age <= media_annual_tier_b_max_age")
	}
	if r.MediaPeriodicTierBMaxAge < 0 {
		errs = append(errs, "tiers: media_periodic_tier_b_max_age must be >= 0")
	}

	m := t.Margins
	if m.A < 0 || m.B < m.A || m.C < m.B {
		errs = append(errs, "margins: need 0 <= a <= b <= c")
	}

	errs = append(errs, validateQuality(t.Quality)...)

	if len(errs) > 0 {
		return eris.Errorf("methodology: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateQuality(q QualityRules) []string {
	var errs []string

	for i, r := range q.ExpectedRanges {
		if !r.TrustType.Valid() {
			errs = append(errs, fmt.Sprintf("quality.expected_ranges[%d]: unknown trust_type %q", i, r.TrustType))
		}
		if r.Min > r.Max || r.HardMin > r.Min || r.HardMax < r.Max {
			errs = append(errs, fmt.Sprintf("quality.expected_ranges[%d]: need hard_min <= min <= max <= hard_max", i))
		}
	}
	if q.YoY.MaxGapYears < 1 || q.YoY.WarnDelta <= 0 || q.YoY.ErrorDelta < q.YoY.WarnDelta {
		errs = append(errs, "quality.yoy: need max_gap_years >= 1 and 0 < warn_delta <= error_delta")
	}
	switch q.CrossSource.Policy {
	case FlagHigher, FlagLower, FlagBoth:
	default:
		errs = append(errs, fmt.Sprintf("quality.cross_source.policy %q must be higher, lower or both", q.CrossSource.Policy))
	}
	if q.CrossSource.Threshold <= 0 || q.CrossSource.MediaThreshold <= 0 {
		errs = append(errs, "quality.cross_source: thresholds must be > 0")
	}
	if q.SampleSize.ErrorBelow > q.SampleSize.WarnBelow || q.SampleSize.WarnAbove < q.SampleSize.WarnBelow {
		errs = append(errs, "quality.sample_size: need error_below <= warn_below <= warn_above")
	}
	if q.SampleSize.MissingLimit < 0 || q.Coverage.SingleObservationLimit < 0 {
		errs = append(errs, "quality: limits must be >= 0")
	}
	if q.Coverage.MinCountries < 0 {
		errs = append(errs, "quality.coverage.min_countries must be >= 0")
	}
	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
