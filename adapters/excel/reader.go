package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"intenttune/internal/errors"
	"intenttune/ports"

	"github.com/xuri/excelize/v2"
)

// DataReader handles reading Excel and CSV files
type DataReader struct {
	config ExcelConfig
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(config ExcelConfig) *DataReader {
	return &DataReader{config: config}
}

// ReadTable implements ports.TableReader
func (r *DataReader) ReadTable(ctx context.Context, path string) (*ports.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := r.ReadData(path)
	if err != nil {
		return nil, err
	}
	table := &ports.Table{
		Source:  path,
		Sheet:   data.Sheet,
		Headers: data.Headers,
		Rows:    make([]map[string]string, len(data.Rows)),
	}
	for i, row := range data.Rows {
		table.Rows[i] = row
	}
	return table, nil
}

// ReadData reads data from Excel or CSV files into structured format
func (r *DataReader) ReadData(path string) (*ExcelData, error) {
	fileType := fileTypeOf(path)
	log.Printf("[DataReader] Starting to read %s file: %s", fileType, path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.NotFound(fmt.Sprintf("%s file %s", strings.ToUpper(fileType), path))
	}

	switch fileType {
	case "csv":
		return r.readCSVData(path)
	case "xlsx":
		return r.readExcelData(path)
	default:
		return nil, errors.InvalidInput(fmt.Sprintf("unsupported file type: %s", fileType))
	}
}

func fileTypeOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "csv"
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return "xlsx"
	default:
		return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
}

// readExcelData reads the configured sheet (or the first one) into structured format
func (r *DataReader) readExcelData(path string) (*ExcelData, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open Excel file")
	}
	defer f.Close()
	log.Printf("[DataReader] Excel file opened in %.2fms", float64(time.Since(startTime).Nanoseconds())/1e6)

	sheet := r.config.SheetName
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.DatasetError(fmt.Sprintf("workbook %s has no sheets", path))
		}
		sheet = sheets[0]
	}

	readStart := time.Now()
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet %s", sheet)
	}
	log.Printf("[DataReader] %s read in %.2fms (%d rows)", sheet, float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	if len(rows) < 1 {
		return nil, errors.DatasetError(fmt.Sprintf("sheet %s in %s has no header row", sheet, path))
	}

	data := r.processRows(rows)
	data.Sheet = sheet
	return data, nil
}

// readCSVData reads CSV data into structured format
func (r *DataReader) readCSVData(path string) (*ExcelData, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open CSV file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	readStart := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read CSV file")
	}
	log.Printf("[DataReader] CSV file read in %.2fms (%d rows)", float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	if len(rows) < 1 {
		return nil, errors.DatasetError(fmt.Sprintf("CSV file %s has no header row", path))
	}

	return r.processRows(rows), nil
}

// processRows converts raw string rows into ExcelData format. Short rows are
// padded with empty cells.
func (r *DataReader) processRows(rows [][]string) *ExcelData {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(header, "\uFEFF"))
	}

	var dataRows []RawRowData
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if r.config.SkipBlankRows && isBlank(row) {
			continue
		}
		rowData := make(RawRowData, len(headers))
		for j, header := range headers {
			if j < len(row) {
				rowData[header] = row[j]
			} else {
				rowData[header] = ""
			}
		}
		dataRows = append(dataRows, rowData)
	}

	log.Printf("[DataReader] file processed (%d columns, %d rows)", len(headers), len(dataRows))

	return &ExcelData{
		Headers: headers,
		Rows:    dataRows,
	}
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
