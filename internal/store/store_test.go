package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trust-atlas/atlas-cli/internal/model"
)

func TestPersistableFlags(t *testing.T) {
	flags := []model.Flag{
		{ObservationID: 1, FlagType: model.FlagYoYAnomaly, Severity: model.SeverityWarning},
		{ObservationID: 2, FlagType: model.FlagYoYAnomaly, Severity: model.SeverityWarning},
		{ObservationID: 1, FlagType: model.FlagYoYAnomaly, Severity: model.SeverityError},
		{ObservationID: 1, FlagType: model.FlagSampleSize, Severity: model.SeverityWarning},
		{ObservationID: 0, FlagType: model.FlagCoverageGap, Severity: model.SeverityWarning},
	}
	got := persistableFlags(flags)
	assert.Len(t, got, 3)
	assert.Equal(t, model.SeverityError, got[0].Severity, "last duplicate wins in first position")
	assert.Equal(t, int64(2), got[1].ObservationID)
	assert.Equal(t, model.FlagSampleSize, got[2].FlagType)
}

func TestPillarDifference(t *testing.T) {
	stored := []model.CountryYear{{ISO3: "DEU", Year: 2019}, {ISO3: "FRA", Year: 2019}}
	results := []model.PillarResult{{ISO3: "DEU", Year: 2019}, {ISO3: "ITA", Year: 2020}}
	assert.Equal(t, []model.CountryYear{{ISO3: "FRA", Year: 2019}}, pillarDifference(stored, results))
	assert.Empty(t, pillarDifference(nil, results))
}

func TestObservationWhere(t *testing.T) {
	where, args := observationWhere(ObservationFilter{
		TrustTypes: []model.TrustType{model.TrustMedia, model.TrustInterpersonal},
		Sources:    []string{"WVS"},
	}, pgPlaceholder)
	assert.Equal(t, " WHERE trust_type IN ($1, $2) AND source IN ($3)", where)
	assert.Equal(t, []any{"media", "interpersonal", "WVS"}, args)

	where, args = observationWhere(ObservationFilter{}, sqlitePlaceholder)
	assert.Empty(t, where)
	assert.Nil(t, args)
}

func TestLockName(t *testing.T) {
	assert.Equal(t, "aggregate:institutional", lockName(model.PillarInstitutional))
}
