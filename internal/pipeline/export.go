package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"searchtrack/internal"
	"searchtrack/internal/storage"
)

// numericColumns are written back as numbers so the sheet can sum them.
var numericColumns = map[int]bool{5: true, 6: true}

// ExportStoreToXLSX copies the whole stored table into a new workbook.
func ExportStoreToXLSX(ctx context.Context, store storage.TableStore, outputPath string) (int, error) {
	rows, err := store.ReadAll(ctx)
	if err != nil {
		return 0, storeErr("read", err)
	}
	if err := ExportRowsToXLSX(rows, outputPath); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return len(rows) - 1, nil
}

// ExportRowsToXLSX writes rows, the first being the header, to outputPath.
// An empty table still gets the fixed header.
func ExportRowsToXLSX(rows [][]string, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	if len(rows) == 0 {
		rows = [][]string{internal.Header}
	}

	for i, row := range rows {
		r := i + 1
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		for c, value := range row {
			if i > 0 && numericColumns[c] {
				if n, err := strconv.Atoi(value); err == nil {
					set(c+1, n)
					continue
				}
			}
			set(c+1, value)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}
