package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"searchtrack/internal"
)

func TestExportStoreToXLSX(t *testing.T) {
	store := &memStore{}
	p := New(store, testConfig())
	_, err := p.Ingest(context.Background(), []internal.RawSearchRecord{decodeRecord(t, fullRecord), rec("b")})
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "nested", "export.xlsx")
	n, err := ExportStoreToXLSX(context.Background(), store, out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, internal.Header, rows[0])
	assert.Equal(t, "test-123", rows[1][internal.ColID])

	nights, err := f.GetCellValue(f.GetSheetName(0), "F2")
	require.NoError(t, err)
	assert.Equal(t, "2", nights)
	typ, err := f.GetCellType(f.GetSheetName(0), "F2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, typ)
}

func TestExportEmptyStoreWritesHeader(t *testing.T) {
	out := filepath.Join(t.TempDir(), "empty.xlsx")
	n, err := ExportStoreToXLSX(context.Background(), &memStore{}, out)
	require.NoError(t, err)
	assert.Zero(t, n)

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	assert.Equal(t, [][]string{internal.Header}, rows)
}
