package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/trust-atlas/atlas-cli/internal/aggregate"
	"github.com/trust-atlas/atlas-cli/internal/model"
	"github.com/trust-atlas/atlas-cli/internal/quality"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Aggregate every pillar and run the quality sweep concurrently",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		opts := aggregateOptions(cmd)
		sweepOpts, reportPath := sweepOptions(cmd)
		sweepOpts.DryRun = opts.DryRun

		st, err := initStore(ctx, "refresh")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var (
			stats []*aggregate.PillarStats
			res   *quality.Result
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			stats, err = newEngine(st).RunAll(gctx, model.AggregatedPillars, opts)
			return err
		})
		g.Go(func() error {
			var err error
			res, err = newSweeper(st, quality.NewRegistry(tables.Quality)).Run(gctx, sweepOpts)
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}

		renderPillarStats(cmd.OutOrStdout(), stats)
		return finishSweep(cmd, res, reportPath, false)
	},
}

func init() {
	refreshCmd.Flags().Bool("dry-run", false, "compute and sweep without writing")
	refreshCmd.Flags().Int("reference-year", 0, "year data age is measured against (default: config or current year)")
	refreshCmd.Flags().StringArray("check", nil, "check to run (repeatable, default all)")
	refreshCmd.Flags().String("output-report", "", "write a sweep report to PATH (.csv, .xlsx or .json)")
	rootCmd.AddCommand(refreshCmd)
}
