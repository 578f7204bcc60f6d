// Package dataset turns spreadsheet rows into labelled classifier examples:
// text combination, label mapping, stratified splitting and tokenization.
package dataset

import (
	"fmt"
	"strings"

	"intenttune/domain/core"
	"intenttune/domain/intent"
	"intenttune/internal"
	"intenttune/internal/errors"
	"intenttune/ports"
)

// Columns names the spreadsheet columns a dataset is built from
type Columns struct {
	Question string
	Answer   string
	Label    string
}

// ColumnsFrom builds Columns from the configured [question, answer] pair
func ColumnsFrom(textColumns []string, label string) Columns {
	cols := Columns{Label: label}
	if len(textColumns) > 0 {
		cols.Question = textColumns[0]
	}
	if len(textColumns) > 1 {
		cols.Answer = textColumns[1]
	}
	return cols
}

// CombineText builds the model input from a question and its answer. Both
// parts are trimmed and lower-cased.
func CombineText(question, answer string) string {
	q := strings.ToLower(strings.TrimSpace(question))
	a := strings.ToLower(strings.TrimSpace(answer))
	return fmt.Sprintf("question: %s. answer: %s", q, a)
}

// Prepare converts a training table into a dataset with a fresh label map.
// Rows without a label are skipped.
func Prepare(table *ports.Table, cols Columns, logger *internal.Logger) (*intent.Dataset, error) {
	if err := checkColumns(table, cols, logger); err != nil {
		return nil, err
	}

	examples := make([]intent.Example, 0, len(table.Rows))
	skipped := 0
	for i, row := range table.Rows {
		label := strings.TrimSpace(row[cols.Label])
		if label == "" {
			skipped++
			continue
		}
		examples = append(examples, newExample(i+1, row, cols, label))
	}
	if skipped > 0 {
		logger.Warn("skipped %d rows with an empty %q in %s", skipped, cols.Label, table.Source)
	}
	if len(examples) == 0 {
		return nil, errors.WithCode(errors.CodeDatasetError, fmt.Errorf("%w: %s", core.ErrEmptyDataset, table.Source))
	}

	labels := make([]string, len(examples))
	for i, ex := range examples {
		labels[i] = ex.Label
	}
	labelMap := intent.NewLabelMap(labels)
	for i := range examples {
		examples[i].LabelID, _ = labelMap.ID(examples[i].Label)
	}

	return &intent.Dataset{
		Name:     "train",
		Headers:  table.Headers,
		Examples: examples,
		Labels:   labelMap,
	}, nil
}

// PrepareTest converts every row of a test table into an example, mapping
// labels through the training label map. Labels the map does not know get
// intent.UnknownLabel.
func PrepareTest(table *ports.Table, cols Columns, labels *intent.LabelMap, logger *internal.Logger) (*intent.Dataset, error) {
	if err := checkColumns(table, cols, logger); err != nil {
		return nil, err
	}
	if len(table.Rows) == 0 {
		return nil, errors.WithCode(errors.CodeDatasetError, fmt.Errorf("%w: %s", core.ErrEmptyDataset, table.Source))
	}

	examples := make([]intent.Example, len(table.Rows))
	unknown := map[string]int{}
	for i, row := range table.Rows {
		label := strings.TrimSpace(row[cols.Label])
		ex := newExample(i+1, row, cols, label)
		if id, ok := labels.ID(label); ok {
			ex.LabelID = id
		} else {
			ex.LabelID = intent.UnknownLabel
			unknown[label]++
		}
		examples[i] = ex
	}
	for label, n := range unknown {
		logger.Warn("%d test rows have label %q which the model was not trained on", n, label)
	}

	return &intent.Dataset{
		Name:     "test",
		Headers:  table.Headers,
		Examples: examples,
		Labels:   labels,
	}, nil
}

func newExample(row int, cells map[string]string, cols Columns, label string) intent.Example {
	q := cells[cols.Question]
	a := cells[cols.Answer]
	return intent.Example{
		Row:       row,
		Question:  q,
		Answer:    a,
		Label:     label,
		InputText: CombineText(q, a),
		Source:    cells,
	}
}

func checkColumns(table *ports.Table, cols Columns, logger *internal.Logger) error {
	for _, c := range []string{cols.Question, cols.Label} {
		if !table.HasColumn(c) {
			return errors.WithCode(errors.CodeDatasetError, core.NewColumnNotFoundError(c, table.Source))
		}
	}
	if cols.Answer != "" && !table.HasColumn(cols.Answer) {
		logger.Warn("column %q not found in %s, answers treated as empty", cols.Answer, table.Source)
	}
	return nil
}
