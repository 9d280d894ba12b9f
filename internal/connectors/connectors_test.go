package connectors

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"searchtrack/internal/config"
	"searchtrack/internal/storage"
)

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()
	cfg := config.Config{
		DBPath:    filepath.Join(tmp, "app.db"),
		XLSXPath:  filepath.Join(tmp, "tracking.xlsx"),
		SheetName: "SearchTracking",
	}

	cfg.StoreBackend = config.BackendSQLite
	b, err := Open(ctx, cfg)
	require.NoError(t, err)
	assert.Same(t, b.Runs, b.Table.(*storage.DB))
	_, err = b.Rewriter()
	assert.NoError(t, err)
	require.NoError(t, b.Close())

	cfg.StoreBackend = config.BackendXLSX
	b, err = Open(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &storage.Workbook{}, b.Table)
	require.NoError(t, b.Close())

	cfg.StoreBackend = "mongo"
	_, err = Open(ctx, cfg)
	assert.ErrorContains(t, err, "unsupported store backend")

	cfg.StoreBackend = config.BackendSheets
	_, err = Open(ctx, cfg)
	assert.ErrorContains(t, err, "SHEET_ID")
}
