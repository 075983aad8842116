package quality

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/trust-atlas/atlas-cli/internal/model"
)

// ReportColumns are the columns of the tabular flag report.
var ReportColumns = []string{
	"observation_id", "iso3", "country_name", "year", "source", "trust_type",
	"score", "flag_type", "severity", "reason", "details",
}

// WriteReport writes the sweep result to path. The format follows the file
// extension: .csv, .xlsx or .json. Missing parent directories are created.
func WriteReport(path string, res *Result) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "quality: create report dir %s", dir)
		}
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return writeFile(path, func(w io.Writer) error { return WriteCSV(w, res) })
	case ".json":
		return writeFile(path, func(w io.Writer) error { return WriteJSON(w, res) })
	case ".xlsx":
		return WriteXLSX(path, res)
	default:
		return eris.Errorf("quality: unsupported report format %q (use .csv, .xlsx or .json)", ext)
	}
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "quality: create report %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return eris.Wrap(f.Close(), "quality: close report")
}

// ReportRows renders flags as rows matching ReportColumns.
func ReportRows(res *Result) ([][]string, error) {
	rows := make([][]string, 0, len(res.Flags))
	for _, f := range res.Flags {
		details, err := json.Marshal(f.Details)
		if err != nil {
			return nil, eris.Wrapf(err, "quality: marshal details for %d/%s", f.ObservationID, f.FlagType)
		}

		id := ""
		if !f.IsCoverage() {
			id = strconv.FormatInt(f.ObservationID, 10)
		}
		iso3 := detailString(f.Details, "iso3")
		name, ok := res.CountryNames[iso3]
		if !ok {
			name = detailString(f.Details, "country_name")
		}

		rows = append(rows, []string{
			id,
			iso3,
			name,
			detailString(f.Details, "year"),
			detailString(f.Details, "source"),
			detailString(f.Details, "trust_type"),
			detailString(f.Details, "score"),
			f.FlagType,
			string(f.Severity),
			f.Reason(),
			string(details),
		})
	}
	return rows, nil
}

// WriteCSV writes the flag report as CSV with a header row.
func WriteCSV(w io.Writer, res *Result) error {
	rows, err := ReportRows(res)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(ReportColumns); err != nil {
		return eris.Wrap(err, "quality: write csv header")
	}
	if err := cw.WriteAll(rows); err != nil {
		return eris.Wrap(err, "quality: write csv rows")
	}
	return nil
}

// WriteJSON writes the summary and every flag as one JSON document.
func WriteJSON(w io.Writer, res *Result) error {
	flags := res.Flags
	if flags == nil {
		flags = []model.Flag{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	doc := struct {
		Summary Summary      `json:"summary"`
		Flags   []model.Flag `json:"flags"`
	}{res.Summary, flags}
	return eris.Wrap(enc.Encode(doc), "quality: encode json report")
}

// WriteXLSX writes a workbook with a flags sheet and a summary sheet.
func WriteXLSX(path string, res *Result) error {
	rows, err := ReportRows(res)
	if err != nil {
		return err
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("flags")
	if err != nil {
		return eris.Wrap(err, "quality: add flags sheet")
	}
	addRow(sheet, ReportColumns)
	for _, r := range rows {
		addRow(sheet, r)
	}

	summary, err := f.AddSheet("summary")
	if err != nil {
		return eris.Wrap(err, "quality: add summary sheet")
	}
	s := res.Summary
	addRow(summary, []string{"timestamp", s.Timestamp.Format("2006-01-02 15:04:05")})
	addRow(summary, []string{"total", strconv.Itoa(s.Total)})
	addRow(summary, []string{"errors", strconv.Itoa(s.Errors)})
	addRow(summary, []string{"warnings", strconv.Itoa(s.Warnings)})
	for _, name := range sortedCheckNames(s.ByCheck) {
		addRow(summary, []string{name, strconv.Itoa(s.ByCheck[name])})
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "quality: save %s", path)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func detailString(d map[string]any, key string) string {
	v, ok := d[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
