package intent

// Columns appended to every row of the predictions workbook
const (
	ColumnInputText          = "input_text"
	ColumnLabel              = "label"
	ColumnPredictedLabel     = "predicted_label"
	ColumnPredictedLabelName = "predicted_label_name"
	ColumnConfidence         = "confidence"
)

// ResultColumns lists the prediction columns in output order
var ResultColumns = []string{
	ColumnInputText,
	ColumnLabel,
	ColumnPredictedLabel,
	ColumnPredictedLabelName,
	ColumnConfidence,
}

// NumericResultColumns are the prediction columns holding numbers
var NumericResultColumns = []string{ColumnLabel, ColumnPredictedLabel, ColumnConfidence}
