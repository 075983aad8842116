package main

import (
	"fmt"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/trust-atlas/atlas-cli/internal/ingest"
)

// maxReportedRejects caps the rejected rows printed per file.
const maxReportedRejects = 20

var importCmd = &cobra.Command{
	Use:   "import [PATH...]",
	Short: "Load staging files into the observation corpus",
	Long: "Reads staging CSV or XLSX files with the columns iso3, year, source, trust_type, raw_value, raw_unit, " +
		"score_0_100, sample_n, method_notes, source_url and methodology. Invalid rows are rejected and " +
		"reported; rows sharing an identity key keep the last one.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		countries, _ := cmd.Flags().GetString("countries")
		if len(args) == 0 && countries == "" {
			return eris.New("import: provide staging files or --countries")
		}
		opts, err := csvOptions(cmd)
		if err != nil {
			return err
		}

		st, err := initStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		loader := ingest.NewLoader(st, opts)

		if countries != "" {
			n, err := loader.LoadCountries(ctx, countries)
			if err != nil {
				return err
			}
			printer.Fprintf(out, "Upserted %d countries from %s\n", n, countries)
		}

		var results []*ingest.Result
		for _, path := range args {
			res, err := loader.Load(ctx, path)
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		if len(results) == 0 {
			return nil
		}

		renderImports(out, results)
		for _, res := range results {
			for i, rej := range res.Rejected {
				if i == maxReportedRejects {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: ... %d more rejected rows\n", res.Path, len(res.Rejected)-i)
					break
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", res.Path, rej.Error())
			}
		}
		return nil
	},
}

func csvOptions(cmd *cobra.Command) (ingest.CSVOptions, error) {
	delim, _ := cmd.Flags().GetString("delimiter")
	if utf8.RuneCountInString(delim) != 1 {
		return ingest.CSVOptions{}, eris.Errorf("import: --delimiter must be a single character, got %q", delim)
	}
	r, _ := utf8.DecodeRuneInString(delim)
	return ingest.CSVOptions{Delimiter: r}, nil
}

func init() {
	importCmd.Flags().String("countries", "", "CSV or XLSX file of iso3,name to upsert into countries")
	importCmd.Flags().String("delimiter", ",", "CSV field delimiter")
	rootCmd.AddCommand(importCmd)
}
