package excel

// RawRowData represents a row of raw spreadsheet data as string key-value pairs
type RawRowData map[string]string

// ExcelData represents the complete sheet contents
type ExcelData struct {
	Sheet   string       // Sheet the rows were read from
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}
