package trainer

import (
	"context"
	"fmt"

	"intenttune/domain/intent"
	"intenttune/domain/training"
	"intenttune/internal/metrics"
	"intenttune/internal/model"

	"golang.org/x/sync/errgroup"
)

// Evaluate scores the model on ds. Examples with an unknown label are
// predicted but left out of the metrics.
func (t *Trainer) Evaluate(ctx context.Context, ds *intent.Dataset, prefix string) (training.EvalResult, error) {
	preds, err := Predict(ctx, t.model, ds, t.args.EvalBatchSize, t.args.Workers)
	if err != nil {
		return training.EvalResult{}, err
	}
	return Score(ds, preds, prefix), nil
}

// Score computes loss, accuracy and weighted F1 of preds against ds
func Score(ds *intent.Dataset, preds []intent.Prediction, prefix string) training.EvalResult {
	refs := ds.LabelIDs()
	ids := make([]int, len(preds))
	lossSum, known := 0.0, 0
	for i, p := range preds {
		ids[i] = p.LabelID
		if refs[i] < 0 || refs[i] >= len(p.Logits) {
			refs[i] = intent.UnknownLabel
			continue
		}
		lossSum += model.Loss(p.Logits, refs[i])
		known++
	}
	res := training.EvalResult{
		Prefix:   prefix,
		Accuracy: metrics.Accuracy(refs, ids),
		F1:       metrics.WeightedF1(refs, ids),
		Samples:  known,
	}
	if known > 0 {
		res.Loss = lossSum / float64(known)
	}
	return res
}

// Predict runs the classifier over ds in batches of batchSize spread across
// workers goroutines. The result is in dataset order.
func Predict(ctx context.Context, m *model.Classifier, ds *intent.Dataset, batchSize, workers int) ([]intent.Prediction, error) {
	if batchSize < 1 {
		batchSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	out := make([]intent.Prediction, ds.Len())

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < ds.Len(); start += batchSize {
		lo, hi := start, min(start+batchSize, ds.Len())
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				out[i] = m.Predict(ds.Examples[i].TokenIDs)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// FormatMetrics renders a result the way evaluation lines are logged:
// {'eval_loss': 0.4120, 'eval_accuracy': 0.8800, 'eval_f1': 0.8765, 'epoch': 1.0}
// The epoch is left out of results not tied to one.
func FormatMetrics(r training.EvalResult) string {
	p := r.Prefix
	if p == "" {
		p = "eval"
	}
	s := fmt.Sprintf("{'%s_loss': %.4f, '%s_accuracy': %.4f, '%s_f1': %.4f", p, r.Loss, p, r.Accuracy, p, r.F1)
	if r.Epoch > 0 {
		s += fmt.Sprintf(", 'epoch': %.2f", r.Epoch)
	}
	return s + "}"
}
