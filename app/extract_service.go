package app

import (
	"context"

	"intenttune/domain/core"
	"intenttune/internal"
	"intenttune/internal/errors"
	"intenttune/internal/extract"
	"intenttune/ports"
)

// ExtractService turns the JSON replies of an annotated workbook into a
// workbook with one row per extracted object
type ExtractService struct {
	reader ports.TableReader
	writer ports.TableWriter
	logger *internal.Logger
}

// NewExtractService creates an extraction service
func NewExtractService(reader ports.TableReader, writer ports.TableWriter, logger *internal.Logger) *ExtractService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &ExtractService{reader: reader, writer: writer, logger: logger.With("Extract")}
}

// Run reads the response column of in and writes the flattened items to out.
// It returns the number of items written; no items means no output file.
func (s *ExtractService) Run(ctx context.Context, in, out string) (int, error) {
	table, err := s.reader.ReadTable(ctx, in)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Loaded input data shape: (%d, %d)", len(table.Rows), len(table.Headers))
	if !table.HasColumn(extract.ResponseColumn) {
		return 0, errors.WithCode(errors.CodeDatasetError, core.NewColumnNotFoundError(extract.ResponseColumn, in))
	}

	var items []extract.Item
	for i, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		got, err := extract.ProcessResponse(row[extract.ResponseColumn], s.logger)
		if err != nil {
			s.logger.Error("Error processing JSON in row %d: %v", i, err)
		}
		if len(got) == 0 {
			s.logger.Warn("No data processed for row %d", i)
			continue
		}
		s.logger.Debug("Processed %d items from row %d", len(got), i)
		items = append(items, got...)
	}

	s.logger.Info("Total processed items: %d", len(items))
	if len(items) == 0 {
		s.logger.Warn("No data was processed successfully!")
		return 0, nil
	}

	headers, rows := extract.Flatten(items)
	if err := s.writer.WriteTable(ctx, out, &ports.Table{Source: out, Headers: headers, Rows: rows}); err != nil {
		return 0, errors.Wrap(err, "failed to save extracted data")
	}
	s.logger.Info("Output shape: (%d, %d)", len(rows), len(headers))
	s.logger.Info("Successfully saved to: %s", out)
	return len(items), nil
}
