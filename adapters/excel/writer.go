package excel

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"intenttune/internal/errors"
	"intenttune/ports"

	"github.com/xuri/excelize/v2"
)

// DataWriter writes tables to new xlsx workbooks
type DataWriter struct {
	config ExcelConfig
	// numeric lists columns written as numbers when their value parses
	numeric map[string]bool
}

// NewDataWriter creates a writer; numericColumns are stored as numbers
func NewDataWriter(config ExcelConfig, numericColumns ...string) *DataWriter {
	w := &DataWriter{config: config, numeric: make(map[string]bool)}
	for _, c := range numericColumns {
		w.numeric[c] = true
	}
	return w
}

// WriteTable implements ports.TableWriter
func (w *DataWriter) WriteTable(ctx context.Context, path string, table *ports.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.StorageError("failed to create output directory", err)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := w.config.OutputSheet
	if sheet == "" {
		sheet = "Sheet1"
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx == -1 {
		idx, err := f.NewSheet(sheet)
		if err != nil {
			return errors.StorageError("failed to create sheet", err)
		}
		f.SetActiveSheet(idx)
		if sheet != "Sheet1" {
			if err := f.DeleteSheet("Sheet1"); err != nil {
				return errors.StorageError("failed to drop default sheet", err)
			}
		}
	}

	for i, h := range table.Headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return errors.StorageError("invalid header cell", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return errors.StorageError("failed to write header", err)
		}
	}

	for r, row := range table.Rows {
		for c, h := range table.Headers {
			value, ok := row[h]
			if !ok || value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return errors.StorageError("invalid data cell", err)
			}
			if err := f.SetCellValue(sheet, cell, w.cellValue(h, value)); err != nil {
				return errors.StorageError("failed to write cell "+cell, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return errors.StorageError("failed to save workbook "+path, err)
	}
	return nil
}

func (w *DataWriter) cellValue(column, value string) interface{} {
	if !w.numeric[column] {
		return value
	}
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}
