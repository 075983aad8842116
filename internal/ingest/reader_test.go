package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func collectRecords(t *testing.T, recCh <-chan Record, errCh <-chan error) ([]Record, error) {
	t.Helper()
	var recs []Record
	for rec := range recCh {
		recs = append(recs, rec)
	}
	for err := range errCh {
		if err != nil {
			return recs, err
		}
	}
	return recs, nil
}

func createTestXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("staging")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "staging.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestStreamCSV_LineNumbers(t *testing.T) {
	input := "iso3,year\n DEU , 2019\n\nFRA,2020\n"
	recCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	recs, err := collectRecords(t, recCh, errCh)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, Record{Line: 1, Fields: []string{"iso3", "year"}}, recs[0])
	assert.Equal(t, Record{Line: 2, Fields: []string{"DEU", "2019"}}, recs[1])
	assert.Equal(t, 4, recs[2].Line, "blank lines are skipped but counted")
}

func TestStreamCSV_Options(t *testing.T) {
	input := "# exported\na|b\n1|x\"y\n"
	recCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{Delimiter: '|', Comment: '#', LazyQuotes: true})
	recs, err := collectRecords(t, recCh, errCh)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, []string{"a", "b"}, recs[0].Fields)
	assert.Equal(t, []string{"1", `x"y`}, recs[1].Fields)
}

func TestStreamCSV_ReadError(t *testing.T) {
	recCh, errCh := StreamCSV(context.Background(), strings.NewReader("a,\"b\nc"), CSVOptions{})
	_, err := collectRecords(t, recCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest: csv: read row")
}

func TestStreamCSV_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	recCh, errCh := StreamCSV(ctx, strings.NewReader("a,b\n1,2\n"), CSVOptions{})
	_, err := collectRecords(t, recCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}

func TestReadXLSX(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"iso3", "year"},
		{"", ""},
		{" DEU", "2019"},
	})

	recs, err := ReadXLSX(path, "")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 1, recs[0].Line)
	assert.Equal(t, Record{Line: 3, Fields: []string{"DEU", "2019"}}, recs[1])

	recs, err = ReadXLSX(path, "staging")
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	_, err = ReadXLSX(path, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "missing" not found`)
}

func TestReadXLSX_FileNotFound(t *testing.T) {
	_, err := ReadXLSX(filepath.Join(t.TempDir(), "nope.xlsx"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest: xlsx: open")
}
