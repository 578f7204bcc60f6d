package ports

import (
	"context"
)

// Table is a header row plus data rows keyed by header
type Table struct {
	Source  string
	Sheet   string
	Headers []string
	Rows    []map[string]string
}

// Column returns every value of the named column in row order
func (t *Table) Column(name string) []string {
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[name]
	}
	return out
}

// HasColumn reports whether the header row contains name
func (t *Table) HasColumn(name string) bool {
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// TableReader loads a spreadsheet into a Table
type TableReader interface {
	ReadTable(ctx context.Context, path string) (*Table, error)
}

// TableWriter persists a Table as a spreadsheet
type TableWriter interface {
	WriteTable(ctx context.Context, path string, table *Table) error
}
