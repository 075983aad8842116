package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trust-atlas/atlas-cli/internal/model"
)

// Store is the corpus persistence the loader writes to.
type Store interface {
	UpsertObservations(ctx context.Context, obs []model.Observation) (int64, error)
	UpsertCountries(ctx context.Context, names map[string]string) (int64, error)
}

// Result summarizes one imported file.
type Result struct {
	Path       string     `json:"path"`
	Rows       int        `json:"rows"`
	Accepted   int        `json:"accepted"`
	Duplicates int        `json:"duplicates"`
	Rejected   []RowError `json:"-"`
	Upserted   int64      `json:"upserted"`
}

// Loader imports staging files into the corpus.
type Loader struct {
	store Store
	csv   CSVOptions
}

// NewLoader creates a loader writing to st.
func NewLoader(st Store, opts CSVOptions) *Loader {
	return &Loader{store: st, csv: opts}
}

// Load reads a .csv or .xlsx staging file, rejects invalid rows, keeps the
// last row for each identity key and upserts the rest in one batch. Rejected
// rows are reported in the result and never abort the file.
func (l *Loader) Load(ctx context.Context, path string) (*Result, error) {
	log := zap.L().With(zap.String("component", "ingest"), zap.String("path", path))

	records, err := l.read(ctx, path)
	if err != nil {
		return nil, err
	}
	res := &Result{Path: path}
	if len(records) == 0 {
		log.Warn("staging file is empty")
		return res, nil
	}

	h, err := parseHeader(records[0].Fields)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: %s", path)
	}

	var obs []model.Observation
	for _, rec := range records[1:] {
		res.Rows++
		o, err := h.observation(rec.Fields)
		if err != nil {
			res.Rejected = append(res.Rejected, RowError{Line: rec.Line, Err: err})
			log.Debug("rejected row", zap.Int("line", rec.Line), zap.Error(err))
			continue
		}
		obs = append(obs, o)
	}

	deduped := model.Dedupe(obs)
	res.Accepted = len(deduped)
	res.Duplicates = len(obs) - len(deduped)

	if len(deduped) > 0 {
		n, err := l.store.UpsertObservations(ctx, deduped)
		if err != nil {
			return res, eris.Wrapf(err, "ingest: upsert %s", path)
		}
		res.Upserted = n
	}

	log.Info("imported staging file",
		zap.Int("rows", res.Rows),
		zap.Int("accepted", res.Accepted),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("rejected", len(res.Rejected)),
	)
	return res, nil
}

// LoadCountries reads a CSV or XLSX file with iso3 and name columns and
// upserts the country names.
func (l *Loader) LoadCountries(ctx context.Context, path string) (int64, error) {
	records, err := l.read(ctx, path)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	iso3Col, nameCol := -1, -1
	for i, f := range records[0].Fields {
		switch strings.ToLower(f) {
		case "iso3":
			iso3Col = i
		case "name":
			nameCol = i
		}
	}
	if iso3Col < 0 || nameCol < 0 {
		return 0, eris.Errorf("ingest: %s: countries file needs iso3 and name columns", path)
	}

	names := make(map[string]string, len(records)-1)
	for _, rec := range records[1:] {
		if iso3Col >= len(rec.Fields) || nameCol >= len(rec.Fields) {
			return 0, eris.Errorf("ingest: %s: line %d: short row", path, rec.Line)
		}
		iso3 := strings.ToUpper(rec.Fields[iso3Col])
		if len(iso3) != 3 || rec.Fields[nameCol] == "" {
			return 0, eris.Errorf("ingest: %s: line %d: invalid country %q", path, rec.Line, iso3)
		}
		names[iso3] = rec.Fields[nameCol]
	}

	n, err := l.store.UpsertCountries(ctx, names)
	if err != nil {
		return 0, eris.Wrapf(err, "ingest: upsert countries from %s", path)
	}
	return n, nil
}

func (l *Loader) read(ctx context.Context, path string) ([]Record, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		return ReadXLSX(path, "")
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: open %s", path)
		}
		defer f.Close() //nolint:errcheck

		recCh, errCh := StreamCSV(ctx, f, l.csv)
		var records []Record
		for rec := range recCh {
			records = append(records, rec)
		}
		if err := <-errCh; err != nil {
			return nil, eris.Wrapf(err, "ingest: %s", path)
		}
		return records, nil
	default:
		return nil, eris.Errorf("ingest: unsupported staging format %q (use .csv or .xlsx)", ext)
	}
}
