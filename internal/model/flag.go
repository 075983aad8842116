package model

// Severity of a quality flag.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// CoverageObservationID is the sentinel identity of corpus-level findings.
const CoverageObservationID int64 = 0

// Flag types written to data_quality_flags.flag_type.
const (
	FlagStatisticalOutlier  = "statistical_outlier"
	FlagYoYAnomaly          = "yoy_anomaly"
	FlagCrossSource         = "cross_source"
	FlagMethodologyMismatch = "methodology_mismatch"
	FlagSampleSize          = "sample_size"
	FlagCoverageGap         = "coverage_gap"
)

// Flag is one quality finding.
type Flag struct {
	ObservationID int64          `json:"observation_id"`
	FlagType      string         `json:"flag_type"`
	Severity      Severity       `json:"severity"`
	Details       map[string]any `json:"details"`
}

// IsCoverage reports whether the flag is a corpus-level finding without an
// observation identity.
func (f Flag) IsCoverage() bool {
	return f.ObservationID == CoverageObservationID
}

// Reason returns the human readable reason from the details, if any.
func (f Flag) Reason() string {
	s, _ := f.Details["reason"].(string)
	return s
}

// FlagKey is the persisted identity of a flag.
type FlagKey struct {
	ObservationID int64
	FlagType      string
}

// Key returns the persisted identity of the flag.
func (f Flag) Key() FlagKey {
	return FlagKey{ObservationID: f.ObservationID, FlagType: f.FlagType}
}
