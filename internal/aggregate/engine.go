package aggregate

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trust-atlas/atlas-cli/internal/methodology"
	"github.com/trust-atlas/atlas-cli/internal/model"
	"github.com/trust-atlas/atlas-cli/internal/resilience"
	"github.com/trust-atlas/atlas-cli/internal/store"
)

// Store opens locked pillar runs.
type Store interface {
	BeginPillarRun(ctx context.Context, pillar model.Pillar) (store.PillarRun, error)
}

// RunLog records engine runs. A nil RunLog disables run logging.
type RunLog interface {
	StartRun(ctx context.Context, kind model.RunKind, target string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, stats map[string]any) error
	FailRun(ctx context.Context, runID string, runErr error) error
}

// RunOptions controls one aggregation.
type RunOptions struct {
	// DryRun computes everything and rolls the transaction back.
	DryRun bool
	// ReferenceYear is the year ages are measured against. Zero means the
	// current calendar year.
	ReferenceYear int
}

// Engine runs the per-pillar read-compute-write cycle.
type Engine struct {
	store  Store
	runs   RunLog
	tables methodology.Tables
	retry  resilience.RetryConfig
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithRunLog records every non-dry run.
func WithRunLog(runs RunLog) Option {
	return func(e *Engine) { e.runs = runs }
}

// WithRetry overrides the retry policy for a failed pillar run.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(e *Engine) { e.retry = cfg }
}

// WithClock overrides the clock used for computed_at and the default
// reference year.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine over st using the given methodology tables.
func NewEngine(st Store, tables methodology.Tables, opts ...Option) *Engine {
	e := &Engine{
		store:  st,
		tables: tables,
		retry:  resilience.DefaultRetryConfig(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run aggregates one pillar. A failed attempt is rolled back as a whole and
// retried when the failure is transient or the pillar lock is busy.
func (e *Engine) Run(ctx context.Context, pillar model.Pillar, opts RunOptions) (*PillarStats, error) {
	if _, err := model.ParsePillar(string(pillar)); err != nil {
		return nil, eris.Wrap(err, "aggregate: run")
	}
	if opts.ReferenceYear == 0 {
		opts.ReferenceYear = e.now().Year()
	}
	if opts.ReferenceYear < 0 {
		return nil, eris.Errorf("aggregate: reference year %d must be positive", opts.ReferenceYear)
	}

	log := zap.L().With(zap.String("component", "aggregate"), zap.String("pillar", string(pillar)))

	var runID string
	if e.runs != nil && !opts.DryRun {
		run, err := e.runs.StartRun(ctx, model.RunKindAggregate, string(pillar))
		if err != nil {
			return nil, eris.Wrapf(err, "aggregate: %s: start run log", pillar)
		}
		runID = run.ID
	}

	retry := e.retry
	retry.ShouldRetry = func(err error) bool {
		return errors.Is(err, store.ErrRunLocked) || resilience.IsTransient(err)
	}
	retry.OnRetry = resilience.RetryLogger("aggregate", string(pillar))

	stats, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*PillarStats, error) {
		return e.runOnce(ctx, pillar, opts)
	})
	if err != nil {
		err = eris.Wrapf(err, "aggregate: %s", pillar)
		if runID != "" {
			if ferr := e.runs.FailRun(ctx, runID, err); ferr != nil {
				log.Warn("failed to record run failure", zap.Error(ferr))
			}
		}
		return nil, err
	}

	stats.RunID = runID
	if runID != "" {
		if err := e.runs.CompleteRun(ctx, runID, stats.Map()); err != nil {
			log.Warn("failed to record run completion", zap.Error(err))
		}
	}

	log.Info("pillar aggregated",
		zap.Bool("dry_run", opts.DryRun),
		zap.Int("reference_year", opts.ReferenceYear),
		zap.Int("observations", stats.Observations),
		zap.Int("country_years", stats.CountryYears),
		zap.Int64("written", stats.Written),
		zap.Int64("cleared", stats.Cleared),
	)
	return stats, nil
}

// RunAll aggregates each pillar in order and stops at the first failure.
func (e *Engine) RunAll(ctx context.Context, pillars []model.Pillar, opts RunOptions) ([]*PillarStats, error) {
	out := make([]*PillarStats, 0, len(pillars))
	for _, p := range pillars {
		stats, err := e.Run(ctx, p, opts)
		if err != nil {
			return out, err
		}
		out = append(out, stats)
	}
	return out, nil
}

func (e *Engine) runOnce(ctx context.Context, pillar model.Pillar, opts RunOptions) (*PillarStats, error) {
	run, err := e.store.BeginPillarRun(ctx, pillar)
	if err != nil {
		return nil, err
	}
	defer run.Rollback(ctx) //nolint:errcheck

	obs, err := run.Observations(ctx, pillar.TrustType())
	if err != nil {
		return nil, err
	}

	results := Compute(pillar, obs, e.tables, opts.ReferenceYear)
	stats := newPillarStats(pillar, opts, obs, results)
	if opts.DryRun {
		return stats, nil
	}

	wr, err := run.WritePillar(ctx, pillar, results, e.now())
	if err != nil {
		return nil, err
	}
	if err := run.Commit(ctx); err != nil {
		return nil, err
	}
	stats.Written = wr.Written
	stats.Cleared = wr.Cleared
	return stats, nil
}
