package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <ISO3>",
	Short: "Show the aggregated pillar values of a country",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		iso3 := strings.ToUpper(args[0])

		st, err := initStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rows, err := st.CountryYears(ctx, iso3)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "No country-year rows for %s.\n", iso3)
			return nil
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}
		renderCountryYears(cmd.OutOrStdout(), rows)
		return nil
	},
}

func init() {
	showCmd.Flags().Bool("json", false, "print rows as JSON")
	rootCmd.AddCommand(showCmd)
}
