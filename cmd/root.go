package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trust-atlas/atlas-cli/internal/config"
	"github.com/trust-atlas/atlas-cli/internal/methodology"
)

var (
	cfg    *config.Config
	tables methodology.Tables
)

var rootCmd = &cobra.Command{
	Use:   "atlas",
	Short: "Trust index aggregation and data quality engine",
	Long: "Resolves survey and index observations into one tiered, interval-scored value per country, " +
		"year and trust pillar, and sweeps the observation corpus for data quality issues.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		t, err := methodology.Load(cfg.MethodologyFile)
		if err != nil {
			return fmt.Errorf("load methodology: %w", err)
		}
		tables = t

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// exitError carries a process exit code without an error message.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	if err := rootCmd.Execute(); err != nil {
		if _, ok := err.(exitError); !ok {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
