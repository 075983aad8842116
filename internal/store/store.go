// Package store persists the observation corpus, the country_year output
// table, data quality flags and the run log in PostgreSQL or SQLite.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/trust-atlas/atlas-cli/internal/model"
)

// ErrRunLocked is returned by BeginPillarRun when another run of the same
// pillar holds the lock.
var ErrRunLocked = eris.New("store: pillar run already in progress")

// ObservationFilter narrows a corpus read. Empty fields match everything.
type ObservationFilter struct {
	TrustTypes []model.TrustType
	Sources    []string
}

// RunFilter specifies criteria for listing logged runs.
type RunFilter struct {
	Kind   model.RunKind   `json:"kind,omitempty"`
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// WriteResult reports the effect of a pillar write.
type WriteResult struct {
	// Written is the number of country-years upserted.
	Written int64 `json:"written"`
	// Cleared is the number of country-years whose stale pillar values were
	// reset because they are no longer produced.
	Cleared int64 `json:"cleared"`
}

// PillarRun is one locked, transactional read-compute-write of a pillar.
// Every read sees the same snapshot. Nothing is visible to other readers
// until Commit. Rollback after Commit is a no-op.
type PillarRun interface {
	Observations(ctx context.Context, trustType model.TrustType) ([]model.Observation, error)
	WritePillar(ctx context.Context, pillar model.Pillar, results []model.PillarResult, computedAt time.Time) (WriteResult, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store defines the persistence interface for the engine.
type Store interface {
	// Corpus
	Observations(ctx context.Context, filter ObservationFilter) ([]model.Observation, error)
	UpsertObservations(ctx context.Context, obs []model.Observation) (int64, error)
	UpsertCountries(ctx context.Context, names map[string]string) (int64, error)
	CountryNames(ctx context.Context) (map[string]string, error)

	// Output
	BeginPillarRun(ctx context.Context, pillar model.Pillar) (PillarRun, error)
	CountryYears(ctx context.Context, iso3 string) ([]model.CountryYearRow, error)

	// Flags
	UpsertFlags(ctx context.Context, flags []model.Flag) (int64, error)

	// Run log
	StartRun(ctx context.Context, kind model.RunKind, target string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, stats map[string]any) error
	FailRun(ctx context.Context, runID string, runErr error) error
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// lockName is the advisory lock held by a pillar run.
func lockName(pillar model.Pillar) string {
	return "aggregate:" + string(pillar)
}

// persistableFlags drops coverage findings and keeps the last flag for each
// (observation_id, flag_type), preserving first-seen order.
func persistableFlags(flags []model.Flag) []model.Flag {
	idx := make(map[model.FlagKey]int, len(flags))
	out := make([]model.Flag, 0, len(flags))
	for _, f := range flags {
		if f.IsCoverage() {
			continue
		}
		k := f.Key()
		if i, ok := idx[k]; ok {
			out[i] = f
			continue
		}
		idx[k] = len(out)
		out = append(out, f)
	}
	return out
}

// validObservations validates and dedupes an import batch. Invalid rows are
// returned separately.
func validObservations(obs []model.Observation) ([]model.Observation, []error) {
	var valid []model.Observation
	var errs []error
	for _, o := range obs {
		if err := o.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		valid = append(valid, o)
	}
	return model.Dedupe(valid), errs
}

// pillarDifference returns the keys of stored country-years that a pillar
// result set no longer covers.
func pillarDifference(stored []model.CountryYear, results []model.PillarResult) []model.CountryYear {
	have := make(map[model.CountryYear]bool, len(results))
	for _, r := range results {
		have[r.CountryYearKey()] = true
	}
	var stale []model.CountryYear
	for _, k := range stored {
		if !have[k] {
			stale = append(stale, k)
		}
	}
	return stale
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
