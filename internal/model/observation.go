// Package model defines the core types shared by the aggregation engine,
// the quality sweep and the stores.
package model

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvalidObservation is returned (wrapped) when an observation fails validation.
var ErrInvalidObservation = errors.New("invalid observation")

// TrustType is the measured concept of an observation (trust_type column).
type TrustType string

const (
	TrustInterpersonal TrustType = "interpersonal"
	TrustInstitutional TrustType = "institutional"
	TrustMedia         TrustType = "media"
	TrustGovernance    TrustType = "governance"
	TrustPartisan      TrustType = "partisan"
	TrustCPI           TrustType = "cpi"
	TrustWGI           TrustType = "wgi"
	TrustOECD          TrustType = "oecd"
	TrustDerived       TrustType = "derived"
	TrustFreedom       TrustType = "freedom"
)

var validTrustTypes = map[TrustType]bool{
	TrustInterpersonal: true,
	TrustInstitutional: true,
	TrustMedia:         true,
	TrustGovernance:    true,
	TrustPartisan:      true,
	TrustCPI:           true,
	TrustWGI:           true,
	TrustOECD:          true,
	TrustDerived:       true,
	TrustFreedom:       true,
}

// Valid reports whether t is a known trust type.
func (t TrustType) Valid() bool { return validTrustTypes[t] }

// IsSurvey reports whether t is measured by population surveys, where a
// sample size is expected.
func (t TrustType) IsSurvey() bool {
	return t == TrustInterpersonal || t == TrustInstitutional || t == TrustMedia
}

// Methodology tags the response scale a score was derived from.
type Methodology string

const (
	MethodologyNone    Methodology = ""
	MethodologyBinary  Methodology = "binary"
	MethodologyFour    Methodology = "4point"
	MethodologyZeroTen Methodology = "0-10scale"
)

// Observation is one measurement from one source.
type Observation struct {
	ID          int64       `json:"id,omitempty"`
	ISO3        string      `json:"iso3"`
	Year        int         `json:"year"`
	Source      string      `json:"source"`
	TrustType   TrustType   `json:"trust_type"`
	RawValue    *float64    `json:"raw_value,omitempty"`
	RawUnit     string      `json:"raw_unit,omitempty"`
	Score       float64     `json:"score_0_100"`
	SampleN     *int        `json:"sample_n,omitempty"`
	MethodNotes string      `json:"method_notes,omitempty"`
	SourceURL   string      `json:"source_url,omitempty"`
	Methodology Methodology `json:"methodology,omitempty"`
}

// Key identifies an observation in the corpus. Re-ingesting the same key
// overwrites the previous values.
type Key struct {
	ISO3      string
	Year      int
	Source    string
	TrustType TrustType
}

// Key returns the identity key of the observation.
func (o Observation) Key() Key {
	return Key{ISO3: o.ISO3, Year: o.Year, Source: o.Source, TrustType: o.TrustType}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%s/%s", k.ISO3, k.Year, k.Source, k.TrustType)
}

// CountryYear identifies one output row.
type CountryYear struct {
	ISO3 string
	Year int
}

// Validate checks the ingestion invariants. Scores outside [0,100] are
// rejected, never clamped.
func (o Observation) Validate() error {
	var errs []string

	if len(o.ISO3) != 3 || strings.ToUpper(o.ISO3) != o.ISO3 {
		errs = append(errs, fmt.Sprintf("iso3 %q must be three upper-case letters", o.ISO3))
	}
	if o.Year <= 0 {
		errs = append(errs, fmt.Sprintf("year %d must be positive", o.Year))
	}
	if strings.TrimSpace(o.Source) == "" {
		errs = append(errs, "source is required")
	}
	if !o.TrustType.Valid() {
		errs = append(errs, fmt.Sprintf("trust_type %q is not recognised", o.TrustType))
	}
	if math.IsNaN(o.Score) || o.Score < 0 || o.Score > 100 {
		errs = append(errs, fmt.Sprintf("score %.2f is outside [0, 100]", o.Score))
	}
	if o.SampleN != nil && *o.SampleN < 0 {
		errs = append(errs, fmt.Sprintf("sample_n %d must be >= 0", *o.SampleN))
	}

	if len(errs) > 0 {
		return eris.Wrapf(ErrInvalidObservation, "%s: %s", o.Key(), strings.Join(errs, "; "))
	}
	return nil
}

// Dedupe keeps the last observation for each identity key, preserving the
// order in which keys were first seen.
func Dedupe(obs []Observation) []Observation {
	idx := make(map[Key]int, len(obs))
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		k := o.Key()
		if i, ok := idx[k]; ok {
			out[i] = o
			continue
		}
		idx[k] = len(out)
		out = append(out, o)
	}
	return out
}
