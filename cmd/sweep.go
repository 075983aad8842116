package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trust-atlas/atlas-cli/internal/quality"
	"github.com/trust-atlas/atlas-cli/internal/store"
)

var sweepCmd = &cobra.Command{
	Use:   "quality-sweep",
	Short: "Sweep the observation corpus for data quality issues",
	Long: "Runs the registered data quality checks, saves the flags to data_quality_flags and optionally " +
		"writes a report (.csv, .xlsx or .json). Exits with status 1 when any error-severity flag is found.",
	Example: `  atlas quality-sweep --output-report reports/quality_sweep.csv
  atlas quality-sweep --check yoy_anomalies --dry-run
  atlas quality-sweep --check statistical_outliers --check yoy_anomalies`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		reg := quality.NewRegistry(tables.Quality)

		if list, _ := cmd.Flags().GetBool("list-checks"); list {
			renderChecks(out, reg)
			return nil
		}

		opts, reportPath := sweepOptions(cmd)
		quiet, _ := cmd.Flags().GetBool("quiet")

		st, err := initStore(ctx, "sweep")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := newSweeper(st, reg).Run(ctx, opts)
		if err != nil {
			return err
		}
		return finishSweep(cmd, res, reportPath, quiet)
	},
}

// sweepOptions reads the sweep flags, falling back to the sweep config.
func sweepOptions(cmd *cobra.Command) (quality.Options, string) {
	checks, _ := cmd.Flags().GetStringArray("check")
	if len(checks) == 0 {
		checks = cfg.Sweep.Checks
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	reportPath, _ := cmd.Flags().GetString("output-report")
	if reportPath == "" {
		reportPath = cfg.Sweep.ReportPath
	}
	return quality.Options{Checks: checks, DryRun: dryRun}, reportPath
}

func newSweeper(st store.Store, reg *quality.Registry) *quality.Sweeper {
	return quality.NewSweeper(st, reg, st)
}

// finishSweep writes the report, prints the summary and maps error flags to
// exit status 1.
func finishSweep(cmd *cobra.Command, res *quality.Result, reportPath string, quiet bool) error {
	if reportPath != "" {
		if err := quality.WriteReport(reportPath, res); err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote report to %s\n", reportPath)
		}
	}
	if !quiet {
		renderSweepSummary(cmd.OutOrStdout(), res.Summary)
	}
	if res.Summary.Errors > 0 {
		return exitError{code: 1}
	}
	return nil
}

func init() {
	sweepCmd.Flags().StringArrayP("check", "c", nil, "check to run (repeatable, default all)")
	sweepCmd.Flags().StringP("output-report", "o", "", "write a report to PATH (.csv, .xlsx or .json)")
	sweepCmd.Flags().Bool("dry-run", false, "report only, do not save flags")
	sweepCmd.Flags().Bool("list-checks", false, "list available checks and exit")
	sweepCmd.Flags().BoolP("quiet", "q", false, "suppress summary output")
	rootCmd.AddCommand(sweepCmd)
}
