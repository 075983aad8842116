package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/trust-atlas/atlas-cli/internal/aggregate"
	"github.com/trust-atlas/atlas-cli/internal/ingest"
	"github.com/trust-atlas/atlas-cli/internal/model"
	"github.com/trust-atlas/atlas-cli/internal/quality"
)

var printer = message.NewPrinter(language.English)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderPillarStats(w io.Writer, all []*aggregate.PillarStats) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Pillar", "Observations", "Country-years", "Written", "Cleared", "A", "B", "C", "Mean", "Median"})
	for _, s := range all {
		t.AppendRow(table.Row{
			s.Pillar,
			printer.Sprintf("%d", s.Observations),
			printer.Sprintf("%d", s.CountryYears),
			printer.Sprintf("%d", s.Written),
			printer.Sprintf("%d", s.Cleared),
			s.ByTier[model.TierA],
			s.ByTier[model.TierB],
			s.ByTier[model.TierC],
			fmt.Sprintf("%.1f", s.Scores.Mean),
			fmt.Sprintf("%.1f", s.Scores.Median),
		})
	}
	t.Render()
	renderSourceCoverage(w, all)
	if len(all) > 0 && all[0].DryRun {
		fmt.Fprintln(w, "(dry run: nothing written)")
	}
}

// renderSourceCoverage lists how many country-years each source supplied,
// per pillar.
func renderSourceCoverage(w io.Writer, all []*aggregate.PillarStats) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Pillar", "Source", "Country-years"})
	var rows int
	for _, s := range all {
		sources := make([]string, 0, len(s.BySource))
		for src := range s.BySource {
			sources = append(sources, src)
		}
		sort.Strings(sources)
		for _, src := range sources {
			t.AppendRow(table.Row{s.Pillar, src, printer.Sprintf("%d", s.BySource[src])})
			rows++
		}
	}
	if rows == 0 {
		return
	}
	t.Render()
}

func renderSweepSummary(w io.Writer, s quality.Summary) {
	fmt.Fprintln(w, "DATA QUALITY SWEEP REPORT")
	fmt.Fprintf(w, "Timestamp: %s\n", s.Timestamp.Format("2006-01-02 15:04:05"))
	printer.Fprintf(w, "Total issues found: %d (errors: %d, warnings: %d)\n", s.Total, s.Errors, s.Warnings)

	t := newTable(w)
	t.AppendHeader(table.Row{"Check", "Flags"})
	names := make([]string, 0, len(s.ByCheck))
	for name := range s.ByCheck {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t.AppendRow(table.Row{name, printer.Sprintf("%d", s.ByCheck[name])})
	}
	t.Render()

	if len(s.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped unknown checks: %s\n", strings.Join(s.Skipped, ", "))
	}
	if len(s.Failed) > 0 {
		fmt.Fprintf(w, "Failed checks: %s\n", strings.Join(s.Failed, ", "))
	}
	if s.DryRun {
		fmt.Fprintln(w, "(dry run: flags not saved)")
	} else {
		printer.Fprintf(w, "Saved %d flags\n", s.Saved)
	}
}

func renderChecks(w io.Writer, reg *quality.Registry) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Check", "Description"})
	for _, c := range reg.All() {
		t.AppendRow(table.Row{c.Name(), c.Description()})
	}
	t.Render()
}

func renderRuns(w io.Writer, runs []model.Run) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Kind", "Target", "Status", "Started", "Duration", "Error"})
	for _, r := range runs {
		dur := "-"
		if r.CompletedAt != nil {
			dur = r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		t.AppendRow(table.Row{
			shortID(r.ID),
			r.Kind,
			r.Target,
			r.Status,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			dur,
			truncate(r.Error, 60),
		})
	}
	t.Render()
}

func renderCountryYears(w io.Writer, rows []model.CountryYearRow) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Year", "Pillar", "Score", "Tier", "CI", "Sources"})
	for _, row := range rows {
		pillars := make([]string, 0, len(row.Pillars))
		for p := range row.Pillars {
			pillars = append(pillars, string(p))
		}
		sort.Strings(pillars)
		for _, name := range pillars {
			p := model.Pillar(name)
			v := row.Pillars[p]
			t.AppendRow(table.Row{
				row.Year,
				p,
				fmt.Sprintf("%.1f", v.Score),
				v.Tier,
				fmt.Sprintf("%.1f-%.1f", v.CILower, v.CIUpper),
				strings.Join(row.SourcesUsed[p], ", "),
			})
		}
	}
	t.Render()
}

func renderImports(w io.Writer, results []*ingest.Result) {
	t := newTable(w)
	t.AppendHeader(table.Row{"File", "Rows", "Accepted", "Duplicates", "Rejected", "Upserted"})
	for _, r := range results {
		t.AppendRow(table.Row{
			r.Path,
			printer.Sprintf("%d", r.Rows),
			printer.Sprintf("%d", r.Accepted),
			printer.Sprintf("%d", r.Duplicates),
			printer.Sprintf("%d", len(r.Rejected)),
			printer.Sprintf("%d", r.Upserted),
		})
	}
	t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
