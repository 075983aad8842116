package model

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrInt(v int) *int { return &v }

func validObservation() Observation {
	return Observation{
		ISO3:        "SWE",
		Year:        2022,
		Source:      "WVS",
		TrustType:   TrustInterpersonal,
		Score:       62.5,
		SampleN:     ptrInt(1200),
		Methodology: MethodologyBinary,
	}
}

func TestObservation_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(o *Observation)
		wantErr string
	}{
		{"valid", func(o *Observation) {}, ""},
		{"score zero", func(o *Observation) { o.Score = 0 }, ""},
		{"score hundred", func(o *Observation) { o.Score = 100 }, ""},
		{"score above range", func(o *Observation) { o.Score = 100.1 }, "outside [0, 100]"},
		{"score below range", func(o *Observation) { o.Score = -0.5 }, "outside [0, 100]"},
		{"score NaN", func(o *Observation) { o.Score = math.NaN() }, "outside [0, 100]"},
		{"score infinite", func(o *Observation) { o.Score = math.Inf(1) }, "outside [0, 100]"},
		{"lowercase iso3", func(o *Observation) { o.ISO3 = "swe" }, "iso3"},
		{"short iso3", func(o *Observation) { o.ISO3 = "SE" }, "iso3"},
		{"missing source", func(o *Observation) { o.Source = " " }, "source is required"},
		{"unknown trust type", func(o *Observation) { o.TrustType = "vibes" }, "trust_type"},
		{"negative sample", func(o *Observation) { o.SampleN = ptrInt(-1) }, "sample_n"},
		{"nil sample", func(o *Observation) { o.SampleN = nil }, ""},
		{"zero year", func(o *Observation) { o.Year = 0 }, "year"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			o := validObservation()
			tt.mutate(&o)
			err := o.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidObservation))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestObservation_ValidateDoesNotClamp(t *testing.T) {
	t.Parallel()
	o := validObservation()
	o.Score = 140
	require.Error(t, o.Validate())
	assert.Equal(t, 140.0, o.Score)
}

func TestDedupe_LastWins(t *testing.T) {
	t.Parallel()

	a := validObservation()
	b := validObservation()
	b.Score = 40
	c := validObservation()
	c.Source = "EVS"

	out := Dedupe([]Observation{a, c, b})
	require.Len(t, out, 2)
	assert.Equal(t, "WVS", out[0].Source)
	assert.Equal(t, 40.0, out[0].Score)
	assert.Equal(t, "EVS", out[1].Source)
}

func TestKey_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "SWE/2022/WVS/interpersonal", validObservation().Key().String())
}

func TestTrustType_IsSurvey(t *testing.T) {
	t.Parallel()
	assert.True(t, TrustInterpersonal.IsSurvey())
	assert.True(t, TrustInstitutional.IsSurvey())
	assert.True(t, TrustMedia.IsSurvey())
	assert.False(t, TrustGovernance.IsSurvey())
	assert.False(t, TrustCPI.IsSurvey())
}
