package storage

import (
	"context"

	"searchtrack/internal"
)

// TableStore is a header row plus append-only data rows. ReadAll returns the
// header as row 0 when one has been written.
type TableStore interface {
	RowCount(ctx context.Context) (int, error)
	ReadAll(ctx context.Context) ([][]string, error)
	WriteHeader(ctx context.Context, fields []string) error
	// AppendRows must write all rows or none.
	AppendRows(ctx context.Context, rows []internal.NormalizedRow) error
	AppendRow(ctx context.Context, row internal.NormalizedRow) error
}

// Rewriter is implemented by stores that support the administrative
// clear and prune operations.
type Rewriter interface {
	TableStore
	Clear(ctx context.Context) error
	// Rewrite replaces the whole table, header included, with rows.
	Rewrite(ctx context.Context, rows [][]string) error
}
