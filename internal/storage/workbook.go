package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"

	"searchtrack/internal"
)

// Workbook is a TableStore kept in one sheet of a local xlsx file. Every
// mutation is saved to disk before returning; a failed mutation reloads the
// file so the in-memory copy never runs ahead of what was saved.
type Workbook struct {
	mu    sync.Mutex
	path  string
	sheet string
	f     *excelize.File
}

func OpenWorkbook(path, sheet string) (*Workbook, error) {
	w := &Workbook{path: path, sheet: sheet}
	if err := w.load(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Workbook) load() error {
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}

	if _, err := os.Stat(w.path); err == nil {
		f, err := excelize.OpenFile(w.path)
		if err != nil {
			return err
		}
		w.f = f
	} else if os.IsNotExist(err) {
		w.f = excelize.NewFile()
		if err := w.f.SetSheetName(w.f.GetSheetName(0), w.sheet); err != nil {
			return err
		}
	} else {
		return err
	}

	idx, err := w.f.GetSheetIndex(w.sheet)
	if err != nil {
		return err
	}
	if idx == -1 {
		if _, err := w.f.NewSheet(w.sheet); err != nil {
			return err
		}
	}
	return w.f.SetPanes(w.sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	return w.f.Close()
}

func (w *Workbook) RowCount(ctx context.Context) (int, error) {
	rows, err := w.ReadAll(ctx)
	return len(rows), err
}

func (w *Workbook) ReadAll(_ context.Context) ([][]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.GetRows(w.sheet)
}

func (w *Workbook) WriteHeader(_ context.Context, fields []string) error {
	cells := make([]any, len(fields))
	for i, f := range fields {
		cells[i] = f
	}
	return w.mutate(func() error {
		return w.setRow(1, cells)
	})
}

func (w *Workbook) AppendRows(_ context.Context, rows []internal.NormalizedRow) error {
	return w.mutate(func() error {
		existing, err := w.f.GetRows(w.sheet)
		if err != nil {
			return err
		}
		start := len(existing) + 1
		for i, row := range rows {
			if err := w.setRow(start+i, row.Cells()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (w *Workbook) AppendRow(ctx context.Context, row internal.NormalizedRow) error {
	return w.AppendRows(ctx, []internal.NormalizedRow{row})
}

func (w *Workbook) Clear(_ context.Context) error {
	return w.mutate(w.removeAll)
}

func (w *Workbook) Rewrite(_ context.Context, rows [][]string) error {
	return w.mutate(func() error {
		if err := w.removeAll(); err != nil {
			return err
		}
		for i, row := range rows {
			cells := make([]any, len(row))
			for j, c := range row {
				cells[j] = c
			}
			if err := w.setRow(i+1, cells); err != nil {
				return err
			}
		}
		return nil
	})
}

func (w *Workbook) removeAll() error {
	existing, err := w.f.GetRows(w.sheet)
	if err != nil {
		return err
	}
	for r := len(existing); r >= 1; r-- {
		if err := w.f.RemoveRow(w.sheet, r); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workbook) setRow(r int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, r)
	if err != nil {
		return err
	}
	return w.f.SetSheetRow(w.sheet, cell, &cells)
}

func (w *Workbook) mutate(fn func() error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := fn(); err != nil {
		if reloadErr := w.load(); reloadErr != nil {
			return fmt.Errorf("%w (reload: %v)", err, reloadErr)
		}
		return err
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		_ = w.load()
		return err
	}
	if err := w.f.SaveAs(w.path); err != nil {
		_ = w.load()
		return err
	}
	return nil
}
