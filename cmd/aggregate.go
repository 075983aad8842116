package main

import (
	"github.com/spf13/cobra"

	"github.com/trust-atlas/atlas-cli/internal/aggregate"
	"github.com/trust-atlas/atlas-cli/internal/model"
	"github.com/trust-atlas/atlas-cli/internal/resilience"
	"github.com/trust-atlas/atlas-cli/internal/store"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Aggregate observations into country_year pillar values",
	Long: "Resolves each country-year of the selected pillars into a score, confidence tier and interval. " +
		"Each pillar is read, computed and written in one locked transaction.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pillarFlag, _ := cmd.Flags().GetString("pillar")
		pillars, err := model.ParsePillars(pillarFlag)
		if err != nil {
			return err
		}
		opts := aggregateOptions(cmd)

		st, err := initStore(ctx, "aggregate")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := newEngine(st).RunAll(ctx, pillars, opts)
		if len(stats) > 0 {
			renderPillarStats(cmd.OutOrStdout(), stats)
		}
		return err
	},
}

// aggregateOptions reads --dry-run and --reference-year, falling back to
// the configured reference year.
func aggregateOptions(cmd *cobra.Command) aggregate.RunOptions {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	refYear := cfg.Aggregate.ReferenceYear
	if cmd.Flags().Changed("reference-year") {
		refYear, _ = cmd.Flags().GetInt("reference-year")
	}
	return aggregate.RunOptions{DryRun: dryRun, ReferenceYear: refYear}
}

func newEngine(st store.Store) *aggregate.Engine {
	r := cfg.Aggregate.Retry
	return aggregate.NewEngine(st, tables,
		aggregate.WithRunLog(st),
		aggregate.WithRetry(resilience.FromRetryConfig(r.MaxAttempts, r.InitialBackoffMs, r.MaxBackoffMs)),
	)
}

func init() {
	aggregateCmd.Flags().String("pillar", "all", "pillar to aggregate (interpersonal, institutional, media, all)")
	aggregateCmd.Flags().Bool("dry-run", false, "compute without writing")
	aggregateCmd.Flags().Int("reference-year", 0, "year data age is measured against (default: config or current year)")
	rootCmd.AddCommand(aggregateCmd)
}
