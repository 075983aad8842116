package quality

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trust-atlas/atlas-cli/internal/model"
	"github.com/trust-atlas/atlas-cli/internal/store"
)

// Store is the corpus and flag persistence a sweep needs.
type Store interface {
	Observations(ctx context.Context, filter store.ObservationFilter) ([]model.Observation, error)
	CountryNames(ctx context.Context) (map[string]string, error)
	UpsertFlags(ctx context.Context, flags []model.Flag) (int64, error)
}

// RunLog records sweeps. A nil RunLog disables run logging.
type RunLog interface {
	StartRun(ctx context.Context, kind model.RunKind, target string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, stats map[string]any) error
	FailRun(ctx context.Context, runID string, runErr error) error
}

// Options controls one sweep.
type Options struct {
	// Checks restricts the sweep to the named checks. Empty runs all.
	Checks []string
	// DryRun skips flag persistence.
	DryRun bool
}

// Summary describes the outcome of a sweep.
type Summary struct {
	RunID     string         `json:"run_id,omitempty"`
	Total     int            `json:"total"`
	Errors    int            `json:"errors"`
	Warnings  int            `json:"warnings"`
	ByCheck   map[string]int `json:"by_check"`
	Saved     int64          `json:"saved"`
	Skipped   []string       `json:"skipped,omitempty"`
	Failed    []string       `json:"failed,omitempty"`
	DryRun    bool           `json:"dry_run"`
	Timestamp time.Time      `json:"timestamp"`
}

// Map returns the summary as run log stats.
func (s Summary) Map() map[string]any {
	return map[string]any{
		"total":    s.Total,
		"errors":   s.Errors,
		"warnings": s.Warnings,
		"by_check": s.ByCheck,
		"saved":    s.Saved,
		"skipped":  s.Skipped,
		"failed":   s.Failed,
	}
}

// Result is a completed sweep: its summary, every flag found (coverage
// flags included) and the country names used for reporting.
type Result struct {
	Summary      Summary
	Flags        []model.Flag
	CountryNames map[string]string
}

// Sweeper runs registered checks over one corpus snapshot.
type Sweeper struct {
	store    Store
	registry *Registry
	runs     RunLog
	now      func() time.Time
}

// NewSweeper creates a sweeper. runs may be nil.
func NewSweeper(st Store, reg *Registry, runs RunLog) *Sweeper {
	return &Sweeper{store: st, registry: reg, runs: runs, now: time.Now}
}

// Run loads the corpus once, runs the selected checks in order and persists
// the findings unless opts.DryRun is set. Unknown checks are skipped with a
// warning and a failing check is logged and skipped. The summary is always
// populated, even when persistence fails.
func (s *Sweeper) Run(ctx context.Context, opts Options) (*Result, error) {
	log := zap.L().With(zap.String("component", "quality.sweep"), zap.Bool("dry_run", opts.DryRun))

	checks, unknown := s.registry.Select(opts.Checks)
	for _, name := range unknown {
		log.Warn("unknown check, skipping", zap.String("check", name), zap.Strings("available", s.registry.Names()))
	}

	res := &Result{Summary: Summary{
		ByCheck:   make(map[string]int, len(checks)),
		Skipped:   unknown,
		DryRun:    opts.DryRun,
		Timestamp: s.now(),
	}}

	var run *model.Run
	if s.runs != nil && !opts.DryRun {
		var err error
		run, err = s.runs.StartRun(ctx, model.RunKindSweep, sweepTarget(checks))
		if err != nil {
			return res, eris.Wrap(err, "quality: start run")
		}
		res.Summary.RunID = run.ID
	}

	err := s.sweep(ctx, log, checks, opts, res)
	if run != nil {
		if err != nil {
			if ferr := s.runs.FailRun(ctx, run.ID, err); ferr != nil {
				log.Error("failed to record sweep failure", zap.Error(ferr))
			}
		} else if cerr := s.runs.CompleteRun(ctx, run.ID, res.Summary.Map()); cerr != nil {
			log.Error("failed to record sweep completion", zap.Error(cerr))
		}
	}
	if err != nil {
		return res, err
	}

	log.Info("quality sweep complete",
		zap.Int("total", res.Summary.Total),
		zap.Int("errors", res.Summary.Errors),
		zap.Int("warnings", res.Summary.Warnings),
		zap.Int64("saved", res.Summary.Saved),
	)
	return res, nil
}

func (s *Sweeper) sweep(ctx context.Context, log *zap.Logger, checks []Check, opts Options, res *Result) error {
	obs, err := s.store.Observations(ctx, store.ObservationFilter{})
	if err != nil {
		return eris.Wrap(err, "quality: load observations")
	}
	names, err := s.store.CountryNames(ctx)
	if err != nil {
		return eris.Wrap(err, "quality: load country names")
	}
	res.CountryNames = names
	snap := &Snapshot{Observations: obs, CountryNames: names}

	for _, c := range checks {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "quality: sweep cancelled")
		}
		start := time.Now()
		flags, err := c.Run(snap)
		if err != nil {
			log.Error("check failed, skipping", zap.String("check", c.Name()), zap.Error(err))
			res.Summary.Failed = append(res.Summary.Failed, c.Name())
			continue
		}
		log.Debug("check complete",
			zap.String("check", c.Name()),
			zap.Int("flags", len(flags)),
			zap.Duration("elapsed", time.Since(start)),
		)
		res.Flags = append(res.Flags, flags...)
		res.Summary.ByCheck[c.Name()] = len(flags)
	}

	res.Summary.Total = len(res.Flags)
	for _, f := range res.Flags {
		switch f.Severity {
		case model.SeverityError:
			res.Summary.Errors++
		case model.SeverityWarning:
			res.Summary.Warnings++
		}
	}

	if opts.DryRun {
		return nil
	}
	saved, err := s.store.UpsertFlags(ctx, res.Flags)
	if err != nil {
		return eris.Wrap(err, "quality: save flags")
	}
	res.Summary.Saved = saved
	return nil
}

func sweepTarget(checks []Check) string {
	names := make([]string, 0, len(checks))
	for _, c := range checks {
		names = append(names, c.Name())
	}
	return strings.Join(names, ",")
}

func sortedCheckNames(byCheck map[string]int) []string {
	names := make([]string, 0, len(byCheck))
	for name := range byCheck {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
