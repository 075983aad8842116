package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/trust-atlas/atlas-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. Every connection enforces foreign keys and waits on a busy database;
// transactions take the write lock when they begin.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// sqliteDSN appends the per-connection options unless the caller set them.
func sqliteDSN(dsn string) string {
	params := []string{}
	if !strings.Contains(dsn, "_txlock=") {
		params = append(params, "_txlock=immediate")
	}
	if !strings.Contains(dsn, "busy_timeout") {
		params = append(params, "_pragma=busy_timeout(5000)")
	}
	if !strings.Contains(dsn, "foreign_keys") {
		params = append(params, "_pragma=foreign_keys(1)")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Observations(ctx context.Context, filter ObservationFilter) ([]model.Observation, error) {
	where, args := observationWhere(filter, sqlitePlaceholder)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+observationColumns+" FROM observations"+where+" ORDER BY iso3, year, source, id",
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query observations")
	}
	defer rows.Close()

	out := collectObservations(rows.Next, rows, "store.sqlite")
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate observations")
	}
	return out, nil
}

func (s *SQLiteStore) UpsertObservations(ctx context.Context, obs []model.Observation) (int64, error) {
	valid, errs := validObservations(obs)
	if len(errs) > 0 {
		return 0, eris.Wrapf(errs[0], "sqlite: upsert observations: %d invalid rows", len(errs))
	}
	if len(valid) == 0 {
		return 0, nil
	}

	var n int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO observations
			(iso3, year, source, trust_type, raw_value, raw_unit, score_0_100, sample_n, method_notes, source_url, methodology)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (iso3, year, source, trust_type) DO UPDATE SET
				raw_value = excluded.raw_value, raw_unit = excluded.raw_unit,
				score_0_100 = excluded.score_0_100, sample_n = excluded.sample_n,
				method_notes = excluded.method_notes, source_url = excluded.source_url,
				methodology = excluded.methodology`)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare observation upsert")
		}
		defer stmt.Close()

		for _, o := range valid {
			res, err := stmt.ExecContext(ctx,
				o.ISO3, o.Year, o.Source, string(o.TrustType), o.RawValue, nullString(o.RawUnit),
				o.Score, o.SampleN, nullString(o.MethodNotes), nullString(o.SourceURL), nullString(string(o.Methodology)),
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: upsert observation %s", o.Key())
			}
			affected, _ := res.RowsAffected()
			n += affected
		}
		return nil
	})
	return n, err
}

func (s *SQLiteStore) UpsertCountries(ctx context.Context, names map[string]string) (int64, error) {
	var n int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, iso3 := range sortedKeys(names) {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO countries (iso3, name) VALUES (?, ?) ON CONFLICT (iso3) DO UPDATE SET name = excluded.name`,
				iso3, names[iso3],
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: upsert country %s", iso3)
			}
			affected, _ := res.RowsAffected()
			n += affected
		}
		return nil
	})
	return n, err
}

func (s *SQLiteStore) CountryNames(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT iso3, name FROM countries")
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query countries")
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var iso3, name string
		if err := rows.Scan(&iso3, &name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan country")
		}
		names[iso3] = name
	}
	return names, eris.Wrap(rows.Err(), "sqlite: iterate countries")
}

func (s *SQLiteStore) CountryYears(ctx context.Context, iso3 string) ([]model.CountryYearRow, error) {
	query := "SELECT " + strings.Join(countryYearColumns(), ", ") + " FROM country_year"
	var args []any
	if iso3 != "" {
		query += " WHERE iso3 = ?"
		args = append(args, iso3)
	}
	query += " ORDER BY iso3, year"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query country_year")
	}
	defer rows.Close()

	var out []model.CountryYearRow
	for rows.Next() {
		dest, finish := countryYearDest()
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan country_year")
		}
		row, err := finish()
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate country_year")
}

func (s *SQLiteStore) UpsertFlags(ctx context.Context, flags []model.Flag) (int64, error) {
	flags = persistableFlags(flags)
	if len(flags) == 0 {
		return 0, nil
	}

	var n int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO data_quality_flags
			(observation_id, flag_type, severity, details, detected_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (observation_id, flag_type) DO UPDATE SET
				severity = excluded.severity, details = excluded.details,
				detected_at = excluded.detected_at, resolved_at = NULL`)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare flag upsert")
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, f := range flags {
			details, err := json.Marshal(f.Details)
			if err != nil {
				return eris.Wrapf(err, "sqlite: marshal flag details for %d/%s", f.ObservationID, f.FlagType)
			}
			res, err := stmt.ExecContext(ctx, f.ObservationID, f.FlagType, string(f.Severity), string(details), now)
			if err != nil {
				return eris.Wrapf(err, "sqlite: upsert flag %d/%s", f.ObservationID, f.FlagType)
			}
			affected, _ := res.RowsAffected()
			n += affected
		}
		return nil
	})
	return n, err
}

func (s *SQLiteStore) StartRun(ctx context.Context, kind model.RunKind, target string) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		Kind:      kind,
		Target:    target,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_log (id, kind, target, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, string(kind), target, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: start run %s %s", kind, target)
	}
	return run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, stats map[string]any) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run stats")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE run_log SET status = ?, completed_at = ?, stats = ? WHERE id = ?`,
		string(model.RunStatusComplete), time.Now().UTC(), string(statsJSON), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE run_log SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(model.RunStatusFailed), time.Now().UTC(), msg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, kind, target, status, started_at, completed_at, stats, COALESCE(error, '') FROM run_log WHERE 1=1`
	var args []any
	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limitOrDefault(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) BeginPillarRun(ctx context.Context, pillar model.Pillar) (PillarRun, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: begin %s run", pillar)
	}
	return &sqlitePillarRun{tx: tx}, nil
}

// sqlitePillarRun holds the database write lock for its whole lifetime.
type sqlitePillarRun struct {
	tx *sql.Tx
}

func (r *sqlitePillarRun) Observations(ctx context.Context, trustType model.TrustType) ([]model.Observation, error) {
	rows, err := r.tx.QueryContext(ctx,
		"SELECT "+observationColumns+" FROM observations WHERE trust_type = ? ORDER BY iso3, year, source, id",
		string(trustType),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query %s observations", trustType)
	}
	defer rows.Close()

	out := collectObservations(rows.Next, rows, "store.sqlite")
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "sqlite: iterate %s observations", trustType)
	}
	return out, nil
}

func (r *sqlitePillarRun) WritePillar(ctx context.Context, pillar model.Pillar, results []model.PillarResult, computedAt time.Time) (WriteResult, error) {
	var res WriteResult
	cols := pillar.Columns()
	if cols.Score == "" {
		return res, eris.Errorf("sqlite: no columns for pillar %q", pillar)
	}

	stored, err := r.populated(ctx, cols)
	if err != nil {
		return res, err
	}

	if len(results) > 0 {
		stmt, err := r.tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO country_year
			(iso3, year, %[1]s, %[2]s, %[3]s, %[4]s, sources_used, computed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (iso3, year) DO UPDATE SET
				%[1]s = excluded.%[1]s, %[2]s = excluded.%[2]s,
				%[3]s = excluded.%[3]s, %[4]s = excluded.%[4]s,
				sources_used = json_patch(country_year.sources_used, excluded.sources_used),
				computed_at = excluded.computed_at`,
			quoteIdent(cols.Score), quoteIdent(cols.Tier), quoteIdent(cols.CILower), quoteIdent(cols.CIUpper),
		))
		if err != nil {
			return res, eris.Wrapf(err, "sqlite: prepare %s write", pillar)
		}
		defer stmt.Close()

		for _, pr := range results {
			sources, err := json.Marshal(map[model.Pillar][]string{pillar: pr.Sources})
			if err != nil {
				return res, eris.Wrapf(err, "sqlite: marshal sources for %s/%d", pr.ISO3, pr.Year)
			}
			if _, err := stmt.ExecContext(ctx,
				pr.ISO3, pr.Year, pr.Score, string(pr.Tier), pr.CILower, pr.CIUpper, string(sources), computedAt,
			); err != nil {
				return res, eris.Wrapf(err, "sqlite: write %s %s/%d", pillar, pr.ISO3, pr.Year)
			}
			res.Written++
		}
	}

	stale := pillarDifference(stored, results)
	if len(stale) == 0 {
		return res, nil
	}
	clear, err := r.tx.PrepareContext(ctx, fmt.Sprintf(
		`UPDATE country_year SET %s = NULL, %s = NULL, %s = NULL, %s = NULL,
			sources_used = json_remove(sources_used, ?), computed_at = ?
		 WHERE iso3 = ? AND year = ?`,
		quoteIdent(cols.Score), quoteIdent(cols.Tier), quoteIdent(cols.CILower), quoteIdent(cols.CIUpper),
	))
	if err != nil {
		return res, eris.Wrapf(err, "sqlite: prepare %s clear", pillar)
	}
	defer clear.Close()

	path := "$." + string(pillar)
	for _, k := range stale {
		if _, err := clear.ExecContext(ctx, path, computedAt, k.ISO3, k.Year); err != nil {
			return res, eris.Wrapf(err, "sqlite: clear stale %s %s/%d", pillar, k.ISO3, k.Year)
		}
		res.Cleared++
	}
	return res, nil
}

func (r *sqlitePillarRun) populated(ctx context.Context, cols model.PillarColumns) ([]model.CountryYear, error) {
	rows, err := r.tx.QueryContext(ctx, fmt.Sprintf(
		"SELECT iso3, year FROM country_year WHERE %s IS NOT NULL", quoteIdent(cols.Score),
	))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query populated %s", cols.Score)
	}
	defer rows.Close()

	var out []model.CountryYear
	for rows.Next() {
		var k model.CountryYear
		if err := rows.Scan(&k.ISO3, &k.Year); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan country-year key")
		}
		out = append(out, k)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate country-year keys")
}

func (r *sqlitePillarRun) Commit(_ context.Context) error {
	return eris.Wrap(r.tx.Commit(), "sqlite: commit pillar run")
}

func (r *sqlitePillarRun) Rollback(_ context.Context) error {
	err := r.tx.Rollback()
	if err == nil || err == sql.ErrTxDone {
		return nil
	}
	return eris.Wrap(err, "sqlite: rollback pillar run")
}

// inTx runs fn in a transaction, committing on success.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

// quoteIdent quotes one of the fixed pillar column names.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
