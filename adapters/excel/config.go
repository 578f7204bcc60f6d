package excel

// ExcelConfig holds configuration for spreadsheet access
type ExcelConfig struct {
	// SheetName selects the sheet to read; empty means the first sheet
	SheetName string `json:"sheet_name"`
	// OutputSheet names the sheet written by the writer
	OutputSheet string `json:"output_sheet"`
	// SkipBlankRows drops rows whose cells are all empty
	SkipBlankRows bool `json:"skip_blank_rows"`
}

// DefaultExcelConfig returns sensible defaults for spreadsheet processing
func DefaultExcelConfig() ExcelConfig {
	return ExcelConfig{
		OutputSheet:   "Sheet1",
		SkipBlankRows: true,
	}
}
