package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trust-atlas/atlas-cli/internal/model"
)

type scannable interface {
	Scan(dest ...any) error
}

// observationColumns is shared by both dialects. Nullable text columns are
// coalesced to empty strings.
const observationColumns = `id, iso3, year, source, trust_type, raw_value,
	COALESCE(raw_unit, ''), score_0_100, sample_n, COALESCE(method_notes, ''),
	COALESCE(source_url, ''), COALESCE(methodology, '')`

func scanObservation(row scannable) (model.Observation, error) {
	var (
		o        model.Observation
		rawValue sql.NullFloat64
		sampleN  sql.NullInt64
	)
	err := row.Scan(&o.ID, &o.ISO3, &o.Year, &o.Source, &o.TrustType, &rawValue,
		&o.RawUnit, &o.Score, &sampleN, &o.MethodNotes, &o.SourceURL, &o.Methodology)
	if err != nil {
		return o, err
	}
	o.ISO3 = strings.TrimSpace(o.ISO3)
	if rawValue.Valid {
		v := rawValue.Float64
		o.RawValue = &v
	}
	if sampleN.Valid {
		n := int(sampleN.Int64)
		o.SampleN = &n
	}
	return o, nil
}

// collectObservations scans every row, skipping rows that fail to scan or
// violate the corpus invariants.
func collectObservations(next func() bool, row scannable, component string) []model.Observation {
	log := zap.L().With(zap.String("component", component))
	var out []model.Observation
	for next() {
		o, err := scanObservation(row)
		if err != nil {
			log.Warn("skipping unreadable observation row", zap.Error(err))
			continue
		}
		if err := o.Validate(); err != nil {
			log.Warn("skipping malformed observation", zap.Int64("id", o.ID), zap.Error(err))
			continue
		}
		out = append(out, o)
	}
	return out
}

// observationWhere builds the WHERE clause of a filtered corpus read with
// placeholders produced by ph.
func observationWhere(filter ObservationFilter, ph func(int) string) (string, []any) {
	var clauses []string
	var args []any
	in := func(col string, vals []string) {
		if len(vals) == 0 {
			return
		}
		marks := make([]string, len(vals))
		for i, v := range vals {
			args = append(args, v)
			marks[i] = ph(len(args))
		}
		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", col, strings.Join(marks, ", ")))
	}

	types := make([]string, len(filter.TrustTypes))
	for i, t := range filter.TrustTypes {
		types[i] = string(t)
	}
	in("trust_type", types)
	in("source", filter.Sources)

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func pgPlaceholder(i int) string { return fmt.Sprintf("$%d", i) }

func sqlitePlaceholder(int) string { return "?" }

// countryYearColumns lists country_year columns in scan order: iso3, year,
// then score/tier/ci_lower/ci_upper for each pillar, sources_used and
// computed_at.
func countryYearColumns() []string {
	cols := []string{"iso3", "year"}
	for _, p := range allPillars {
		c := p.Columns()
		cols = append(cols, c.Score, c.Tier, c.CILower, c.CIUpper)
	}
	return append(cols, "sources_used", "computed_at")
}

// allPillars are the pillars with country_year columns, including the
// externally written governance pillar.
var allPillars = []model.Pillar{
	model.PillarInterpersonal,
	model.PillarInstitutional,
	model.PillarMedia,
	model.PillarGovernance,
}

type pillarScan struct {
	score, lower, upper sql.NullFloat64
	tier                sql.NullString
}

// countryYearDest returns scan destinations for countryYearColumns and a
// function that assembles the row once scanned.
func countryYearDest() ([]any, func() (model.CountryYearRow, error)) {
	var row model.CountryYearRow
	var computedAt sql.NullTime
	var sourcesUsed []byte
	scans := make([]pillarScan, len(allPillars))

	dest := []any{&row.ISO3, &row.Year}
	for i := range scans {
		dest = append(dest, &scans[i].score, &scans[i].tier, &scans[i].lower, &scans[i].upper)
	}

	finish := func() (model.CountryYearRow, error) {
		row.ISO3 = strings.TrimSpace(row.ISO3)
		row.Pillars = make(map[model.Pillar]model.PillarValue)
		for i, p := range allPillars {
			if !scans[i].score.Valid {
				continue
			}
			row.Pillars[p] = model.PillarValue{
				Score:   scans[i].score.Float64,
				Tier:    model.Tier(scans[i].tier.String),
				CILower: scans[i].lower.Float64,
				CIUpper: scans[i].upper.Float64,
			}
		}
		row.SourcesUsed = make(map[model.Pillar][]string)
		if len(sourcesUsed) > 0 {
			if err := json.Unmarshal(sourcesUsed, &row.SourcesUsed); err != nil {
				return row, eris.Wrapf(err, "store: decode sources_used for %s/%d", row.ISO3, row.Year)
			}
		}
		if computedAt.Valid {
			row.ComputedAt = computedAt.Time
		}
		return row, nil
	}
	return append(dest, &sourcesUsed, &computedAt), finish
}

func scanRun(row scannable) (*model.Run, error) {
	var (
		r           model.Run
		completedAt sql.NullTime
		stats       []byte
	)
	if err := row.Scan(&r.ID, &r.Kind, &r.Target, &r.Status, &r.StartedAt, &completedAt, &stats, &r.Error); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &r.Stats); err != nil {
			return nil, eris.Wrapf(err, "store: decode stats of run %s", r.ID)
		}
	}
	return &r, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
