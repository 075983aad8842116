package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Record is one parsed row with its 1-based line (or sheet row) number.
type Record struct {
	Line   int
	Fields []string
}

// CSVOptions configures the staging CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
}

// StreamCSV reads CSV rows from r and sends them, trimmed, on the record
// channel. Blank lines are skipped by the parser. Both channels are closed
// when processing completes; at most one error is sent.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan Record, <-chan error) {
	recCh := make(chan Record, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(recCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.Comment = opts.Comment
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // rows are checked against the header later

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "ingest: csv: context cancelled")
				return
			}

			fields, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "ingest: csv: read row")
				return
			}
			line, _ := reader.FieldPos(0)
			for i, f := range fields {
				fields[i] = strings.TrimSpace(f)
			}

			select {
			case recCh <- Record{Line: line, Fields: fields}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "ingest: csv: context cancelled")
				return
			}
		}
	}()

	return recCh, errCh
}

// ReadXLSX returns the rows of a workbook sheet. An empty sheet name reads
// the first sheet. Rows whose cells are all blank are skipped.
func ReadXLSX(path, sheetName string) ([]Record, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: xlsx: open %s", path)
	}

	var sheet *xlsx.Sheet
	if sheetName != "" {
		s, ok := f.Sheet[sheetName]
		if !ok {
			return nil, eris.Errorf("ingest: xlsx: sheet %q not found in %s", sheetName, path)
		}
		sheet = s
	} else {
		if len(f.Sheets) == 0 {
			return nil, eris.Errorf("ingest: xlsx: %s has no sheets", path)
		}
		sheet = f.Sheets[0]
	}

	var records []Record
	for i, row := range sheet.Rows {
		if row == nil {
			continue
		}
		fields := make([]string, len(row.Cells))
		blank := true
		for j, cell := range row.Cells {
			fields[j] = strings.TrimSpace(cell.String())
			if fields[j] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		records = append(records, Record{Line: i + 1, Fields: fields})
	}
	return records, nil
}
