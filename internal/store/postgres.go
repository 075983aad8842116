package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/trust-atlas/atlas-cli/internal/db"
	"github.com/trust-atlas/atlas-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. The caller keeps ownership of
// the pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Observations(ctx context.Context, filter ObservationFilter) ([]model.Observation, error) {
	where, args := observationWhere(filter, pgPlaceholder)
	rows, err := s.pool.Query(ctx,
		"SELECT "+observationColumns+" FROM observations"+where+" ORDER BY iso3, year, source, id",
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query observations")
	}
	defer rows.Close()

	out := collectObservations(rows.Next, rows, "store.postgres")
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate observations")
	}
	return out, nil
}

var observationUpsert = db.UpsertConfig{
	Table: "observations",
	Columns: []string{
		"iso3", "year", "source", "trust_type", "raw_value", "raw_unit",
		"score_0_100", "sample_n", "method_notes", "source_url", "methodology",
	},
	ConflictKeys: []string{"iso3", "year", "source", "trust_type"},
}

func (s *PostgresStore) UpsertObservations(ctx context.Context, obs []model.Observation) (int64, error) {
	valid, errs := validObservations(obs)
	if len(errs) > 0 {
		return 0, eris.Wrapf(errs[0], "postgres: upsert observations: %d invalid rows", len(errs))
	}

	rows := make([][]any, len(valid))
	for i, o := range valid {
		rows[i] = []any{
			o.ISO3, o.Year, o.Source, string(o.TrustType), o.RawValue, nullString(o.RawUnit),
			o.Score, o.SampleN, nullString(o.MethodNotes), nullString(o.SourceURL), nullString(string(o.Methodology)),
		}
	}
	n, err := db.BulkUpsert(ctx, s.pool, observationUpsert, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert observations")
	}
	return n, nil
}

func (s *PostgresStore) UpsertCountries(ctx context.Context, names map[string]string) (int64, error) {
	rows := make([][]any, 0, len(names))
	for _, iso3 := range sortedKeys(names) {
		rows = append(rows, []any{iso3, names[iso3]})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "countries",
		Columns:      []string{"iso3", "name"},
		ConflictKeys: []string{"iso3"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert countries")
	}
	return n, nil
}

func (s *PostgresStore) CountryNames(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT iso3, name FROM countries")
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query countries")
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var iso3, name string
		if err := rows.Scan(&iso3, &name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan country")
		}
		names[strings.TrimSpace(iso3)] = name
	}
	return names, eris.Wrap(rows.Err(), "postgres: iterate countries")
}

func (s *PostgresStore) CountryYears(ctx context.Context, iso3 string) ([]model.CountryYearRow, error) {
	query := "SELECT " + strings.Join(countryYearColumns(), ", ") + " FROM country_year"
	var args []any
	if iso3 != "" {
		query += " WHERE iso3 = $1"
		args = append(args, iso3)
	}
	query += " ORDER BY iso3, year"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query country_year")
	}
	defer rows.Close()

	var out []model.CountryYearRow
	for rows.Next() {
		dest, finish := countryYearDest()
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrap(err, "postgres: scan country_year")
		}
		row, err := finish()
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate country_year")
}

var flagUpsert = db.UpsertConfig{
	Table:        "data_quality_flags",
	Columns:      []string{"observation_id", "flag_type", "severity", "details"},
	ConflictKeys: []string{"observation_id", "flag_type"},
	SetExprs: map[string]string{
		"detected_at": "now()",
		"resolved_at": "NULL",
	},
}

func (s *PostgresStore) UpsertFlags(ctx context.Context, flags []model.Flag) (int64, error) {
	flags = persistableFlags(flags)
	rows := make([][]any, len(flags))
	for i, f := range flags {
		details, err := json.Marshal(f.Details)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal flag details for %d/%s", f.ObservationID, f.FlagType)
		}
		rows[i] = []any{f.ObservationID, f.FlagType, string(f.Severity), details}
	}
	n, err := db.BulkUpsert(ctx, s.pool, flagUpsert, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert flags")
	}
	return n, nil
}

func (s *PostgresStore) StartRun(ctx context.Context, kind model.RunKind, target string) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		Kind:      kind,
		Target:    target,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_log (id, kind, target, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, string(kind), target, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: start run %s %s", kind, target)
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, stats map[string]any) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run stats")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE run_log SET status = $1, completed_at = $2, stats = $3 WHERE id = $4`,
		string(model.RunStatusComplete), time.Now().UTC(), statsJSON, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE run_log SET status = $1, completed_at = $2, error = $3 WHERE id = $4`,
		string(model.RunStatusFailed), time.Now().UTC(), msg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, kind, target, status, started_at, completed_at, stats, COALESCE(error, '') FROM run_log WHERE true`
	var args []any
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, limitOrDefault(filter.Limit))
	query += fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) BeginPillarRun(ctx context.Context, pillar model.Pillar) (PillarRun, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: begin %s run", pillar)
	}
	ok, err := db.TryXactLock(ctx, tx, lockName(pillar))
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, eris.Wrapf(err, "postgres: lock %s run", pillar)
	}
	if !ok {
		_ = tx.Rollback(ctx)
		return nil, eris.Wrapf(ErrRunLocked, "postgres: %s", pillar)
	}
	return &pgPillarRun{tx: tx}, nil
}

// pgPillarRun runs inside one transaction holding the pillar's advisory
// lock.
type pgPillarRun struct {
	tx pgx.Tx
}

func (r *pgPillarRun) Observations(ctx context.Context, trustType model.TrustType) ([]model.Observation, error) {
	rows, err := r.tx.Query(ctx,
		"SELECT "+observationColumns+" FROM observations WHERE trust_type = $1 ORDER BY iso3, year, source, id",
		string(trustType),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query %s observations", trustType)
	}
	defer rows.Close()

	out := collectObservations(rows.Next, rows, "store.postgres")
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "postgres: iterate %s observations", trustType)
	}
	return out, nil
}

func (r *pgPillarRun) WritePillar(ctx context.Context, pillar model.Pillar, results []model.PillarResult, computedAt time.Time) (WriteResult, error) {
	var res WriteResult
	cols := pillar.Columns()
	if cols.Score == "" {
		return res, eris.Errorf("postgres: no columns for pillar %q", pillar)
	}

	stored, err := r.populated(ctx, cols)
	if err != nil {
		return res, err
	}

	if len(results) > 0 {
		rows := make([][]any, len(results))
		for i, pr := range results {
			sources, err := json.Marshal(map[model.Pillar][]string{pillar: pr.Sources})
			if err != nil {
				return res, eris.Wrapf(err, "postgres: marshal sources for %s/%d", pr.ISO3, pr.Year)
			}
			rows[i] = []any{pr.ISO3, pr.Year, pr.Score, string(pr.Tier), pr.CILower, pr.CIUpper, sources, computedAt}
		}
		n, err := db.UpsertTx(ctx, r.tx, db.UpsertConfig{
			Table:        "country_year",
			Columns:      []string{"iso3", "year", cols.Score, cols.Tier, cols.CILower, cols.CIUpper, "sources_used", "computed_at"},
			ConflictKeys: []string{"iso3", "year"},
			SetExprs: map[string]string{
				"sources_used": `COALESCE("country_year"."sources_used", '{}'::jsonb) || EXCLUDED."sources_used"`,
			},
		}, rows)
		if err != nil {
			return res, eris.Wrapf(err, "postgres: write %s", pillar)
		}
		res.Written = n
	}

	stale := pillarDifference(stored, results)
	if len(stale) == 0 {
		return res, nil
	}
	isos := make([]string, len(stale))
	years := make([]int32, len(stale))
	for i, k := range stale {
		isos[i] = k.ISO3
		years[i] = int32(k.Year)
	}
	clearSQL := fmt.Sprintf(
		`UPDATE country_year SET %s = NULL, %s = NULL, %s = NULL, %s = NULL,
			sources_used = sources_used - $1, computed_at = $2
		 WHERE (iso3, year) IN (SELECT * FROM unnest($3::text[], $4::int[]))`,
		pgx.Identifier{cols.Score}.Sanitize(), pgx.Identifier{cols.Tier}.Sanitize(),
		pgx.Identifier{cols.CILower}.Sanitize(), pgx.Identifier{cols.CIUpper}.Sanitize(),
	)
	tag, err := r.tx.Exec(ctx, clearSQL, string(pillar), computedAt, isos, years)
	if err != nil {
		return res, eris.Wrapf(err, "postgres: clear stale %s", pillar)
	}
	res.Cleared = tag.RowsAffected()
	return res, nil
}

// populated returns the country-years that currently hold a value for the
// pillar.
func (r *pgPillarRun) populated(ctx context.Context, cols model.PillarColumns) ([]model.CountryYear, error) {
	rows, err := r.tx.Query(ctx, fmt.Sprintf(
		"SELECT iso3, year FROM country_year WHERE %s IS NOT NULL",
		pgx.Identifier{cols.Score}.Sanitize(),
	))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query populated %s", cols.Score)
	}
	defer rows.Close()

	var out []model.CountryYear
	for rows.Next() {
		var k model.CountryYear
		if err := rows.Scan(&k.ISO3, &k.Year); err != nil {
			return nil, eris.Wrap(err, "postgres: scan country-year key")
		}
		k.ISO3 = strings.TrimSpace(k.ISO3)
		out = append(out, k)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate country-year keys")
}

func (r *pgPillarRun) Commit(ctx context.Context) error {
	return eris.Wrap(r.tx.Commit(ctx), "postgres: commit pillar run")
}

func (r *pgPillarRun) Rollback(ctx context.Context) error {
	err := r.tx.Rollback(ctx)
	if err == nil || errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return eris.Wrap(err, "postgres: rollback pillar run")
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
