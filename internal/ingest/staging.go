// Package ingest loads staging files produced by the per-source processors
// into the observation corpus.
package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/trust-atlas/atlas-cli/internal/model"
)

// StagingColumns is the column layout of a staging file.
var StagingColumns = []string{
	"iso3", "year", "source", "trust_type", "raw_value", "raw_unit",
	"score_0_100", "sample_n", "method_notes", "source_url", "methodology",
}

var requiredColumns = []string{"iso3", "year", "source", "trust_type", "score_0_100"}

var validMethodologies = map[model.Methodology]bool{
	model.MethodologyNone:    true,
	model.MethodologyBinary:  true,
	model.MethodologyFour:    true,
	model.MethodologyZeroTen: true,
}

// RowError describes a rejected staging row.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// header maps lower-cased column names to field positions.
type header map[string]int

func parseHeader(fields []string) (header, error) {
	h := make(header, len(fields))
	for i, f := range fields {
		name := strings.ToLower(strings.TrimSpace(f))
		if name == "" {
			continue
		}
		if _, dup := h[name]; dup {
			return nil, eris.Errorf("ingest: duplicate column %q", name)
		}
		h[name] = i
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := h[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("ingest: missing required columns: %s", strings.Join(missing, ", "))
	}
	return h, nil
}

func (h header) get(fields []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(fields) {
		return ""
	}
	return fields[i]
}

// observation parses one staging row and validates it.
func (h header) observation(fields []string) (model.Observation, error) {
	var errs []string

	o := model.Observation{
		ISO3:        strings.ToUpper(h.get(fields, "iso3")),
		Source:      h.get(fields, "source"),
		TrustType:   model.TrustType(strings.ToLower(h.get(fields, "trust_type"))),
		RawUnit:     h.get(fields, "raw_unit"),
		MethodNotes: h.get(fields, "method_notes"),
		SourceURL:   h.get(fields, "source_url"),
		Methodology: model.Methodology(h.get(fields, "methodology")),
	}

	year, err := parseWhole(h.get(fields, "year"))
	if err != nil || year == nil {
		errs = append(errs, fmt.Sprintf("year %q is not an integer", h.get(fields, "year")))
	} else {
		o.Year = *year
	}

	score, err := parseFloat(h.get(fields, "score_0_100"))
	if err != nil || score == nil {
		errs = append(errs, fmt.Sprintf("score_0_100 %q is not a number", h.get(fields, "score_0_100")))
	} else {
		o.Score = *score
	}

	if o.RawValue, err = parseFloat(h.get(fields, "raw_value")); err != nil {
		errs = append(errs, fmt.Sprintf("raw_value %q is not a number", h.get(fields, "raw_value")))
	}
	if o.SampleN, err = parseWhole(h.get(fields, "sample_n")); err != nil {
		errs = append(errs, fmt.Sprintf("sample_n %q is not an integer", h.get(fields, "sample_n")))
	}
	if !validMethodologies[o.Methodology] {
		errs = append(errs, fmt.Sprintf("methodology %q is not recognised", o.Methodology))
	}

	if len(errs) > 0 {
		return model.Observation{}, eris.Wrap(model.ErrInvalidObservation, strings.Join(errs, "; "))
	}
	if err := o.Validate(); err != nil {
		return model.Observation{}, err
	}
	return o, nil
}

// parseFloat returns nil for blank and NaN cells.
func parseFloat(s string) (*float64, error) {
	if s == "" || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	if math.IsInf(v, 0) {
		return nil, eris.Errorf("infinite value %q", s)
	}
	return &v, nil
}

// parseWhole accepts integers, including float spellings such as "1200.0".
func parseWhole(s string) (*int, error) {
	f, err := parseFloat(s)
	if err != nil || f == nil {
		return nil, err
	}
	if *f != math.Trunc(*f) {
		return nil, eris.Errorf("%q is not a whole number", s)
	}
	n := int(*f)
	return &n, nil
}
