package app

import (
	"context"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"intenttune/domain/core"
	"intenttune/domain/intent"
	"intenttune/domain/training"
	"intenttune/internal"
	"intenttune/internal/config"
	"intenttune/internal/dataset"
	"intenttune/internal/errors"
	"intenttune/internal/metrics"
	"intenttune/internal/model"
	"intenttune/internal/trainer"
	"intenttune/ports"
)

// EvaluationService scores a trained model on a test spreadsheet and writes
// the predictions next to the original columns
type EvaluationService struct {
	reader ports.TableReader
	writer ports.TableWriter
	store  ports.CheckpointStore
	cfg    *config.Config
	logger *internal.Logger
}

// EvaluationResult is the outcome of one test evaluation
type EvaluationResult struct {
	Metrics     training.EvalResult
	Report      metrics.Report
	Predictions []intent.Prediction
	ResultsFile string
	ReportFile  string
}

// NewEvaluationService creates an evaluation service
func NewEvaluationService(reader ports.TableReader, writer ports.TableWriter, store ports.CheckpointStore, cfg *config.Config, logger *internal.Logger) *EvaluationService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &EvaluationService{
		reader: reader,
		writer: writer,
		store:  store,
		cfg:    cfg,
		logger: logger.With("Evaluation"),
	}
}

// Run loads the checkpoint in modelDir and evaluates it on testFile
func (s *EvaluationService) Run(ctx context.Context, modelDir, testFile, out string) (*EvaluationResult, error) {
	if modelDir == "" {
		return nil, errors.InvalidInput("a model directory is required")
	}
	clf := model.Empty()
	meta, err := s.store.Load(ctx, modelDir, clf)
	if err != nil {
		return nil, errors.Wrapf(err, "load model from %s", modelDir)
	}
	s.logger.Info("Loaded %s (step %d, %d labels)", modelDir, meta.Step, clf.NumLabels())
	if fp := core.Hash(meta.Fingerprint); !fp.IsEmpty() {
		s.logger.Info("Checkpoint trained on dataset %s", fp.Short())
	}

	tok, err := tokenizerFor(clf.Config().Tokenizer, s.cfg.Model, clf.Config().VocabSize)
	if err != nil {
		return nil, err
	}
	return s.Evaluate(ctx, clf, tok, testFile, out)
}

// Evaluate predicts every row of testFile with clf. Rows whose label the
// model does not know are predicted but excluded from the metrics.
func (s *EvaluationService) Evaluate(ctx context.Context, clf *model.Classifier, tok ports.Tokenizer, testFile, out string) (*EvaluationResult, error) {
	table, err := s.reader.ReadTable(ctx, testFile)
	if err != nil {
		return nil, err
	}
	cols := dataset.ColumnsFrom(s.cfg.Data.TextColumns, s.cfg.Data.LabelColumn)
	ds, err := dataset.PrepareTest(table, cols, clf.Labels(), s.logger)
	if err != nil {
		return nil, err
	}
	workers := s.cfg.Training.Workers
	if err := dataset.Tokenize(ctx, ds, tok, clf.Config().MaxSeqLength, workers); err != nil {
		return nil, err
	}

	preds, err := trainer.Predict(ctx, clf, ds, s.cfg.Training.EvalBatchSize, workers)
	if err != nil {
		return nil, err
	}
	res := trainer.Score(ds, preds, "test")
	s.logger.Info("Metrics: %s", trainer.FormatMetrics(res))

	predIDs := make([]int, len(preds))
	for i, p := range preds {
		predIDs[i] = p.LabelID
	}
	result := &EvaluationResult{
		Metrics:     res,
		Report:      metrics.Compute(ds.LabelIDs(), predIDs, clf.Labels().Name),
		Predictions: preds,
		ResultsFile: out,
	}
	if out == "" {
		return result, nil
	}

	if err := s.writer.WriteTable(ctx, out, resultTable(table, ds, preds)); err != nil {
		return nil, err
	}
	s.logger.Info("Test results saved to %s", out)

	result.ReportFile, err = writeReport(result.Report, out)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resultTable keeps every source column and appends the prediction columns
func resultTable(src *ports.Table, ds *intent.Dataset, preds []intent.Prediction) *ports.Table {
	headers := slices.Clone(src.Headers)
	for _, c := range intent.ResultColumns {
		if !slices.Contains(headers, c) {
			headers = append(headers, c)
		}
	}

	rows := make([]map[string]string, len(ds.Examples))
	for i, ex := range ds.Examples {
		row := maps.Clone(ex.Source)
		if row == nil {
			row = make(map[string]string, len(intent.ResultColumns))
		}
		p := preds[i]
		row[intent.ColumnInputText] = ex.InputText
		row[intent.ColumnLabel] = strconv.Itoa(ex.LabelID)
		row[intent.ColumnPredictedLabel] = strconv.Itoa(p.LabelID)
		row[intent.ColumnPredictedLabelName] = p.Label
		row[intent.ColumnConfidence] = strconv.FormatFloat(p.Confidence, 'f', 6, 64)
		rows[i] = row
	}
	return &ports.Table{Source: src.Source, Sheet: src.Sheet, Headers: headers, Rows: rows}
}

// writeReport writes <out>_report.md and <out>_report.html and returns the
// Markdown path
func writeReport(r metrics.Report, out string) (string, error) {
	base := strings.TrimSuffix(out, filepath.Ext(out)) + "_report"
	title := "Test results: " + filepath.Base(out)
	if err := os.WriteFile(base+".md", []byte(r.Markdown(title)), 0o644); err != nil {
		return "", errors.StorageError("failed to write markdown report", err)
	}
	if err := os.WriteFile(base+".html", r.HTML(title), 0o644); err != nil {
		return "", errors.StorageError("failed to write html report", err)
	}
	return base + ".md", nil
}
