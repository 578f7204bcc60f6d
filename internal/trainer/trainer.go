// Package trainer runs the fine-tuning loop: batched AdamW updates, an
// evaluation and a checkpoint after every epoch, checkpoint rotation and
// best-model tracking.
package trainer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"

	"intenttune/domain/core"
	"intenttune/domain/intent"
	"intenttune/domain/training"
	"intenttune/internal"
	"intenttune/internal/errors"
	"intenttune/internal/model"
	"intenttune/internal/telemetry"
	"intenttune/ports"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
)

// Options wires the trainer to its collaborators. Log, Ledger and Metrics
// are optional.
type Options struct {
	Args        training.Arguments
	RunID       core.RunID
	Fingerprint core.DatasetFingerprint
	Store       ports.CheckpointStore
	Log         ports.TrainingLog
	Ledger      ports.RunLedger
	Metrics     *telemetry.Metrics
	Logger      *internal.Logger
}

// Trainer owns the model while training
type Trainer struct {
	opts   Options
	args   training.Arguments
	model  *model.Classifier
	opt    *model.AdamW
	logger *internal.Logger
	state  training.State
}

// New creates a trainer for m
func New(m *model.Classifier, opts Options) (*Trainer, error) {
	if err := opts.Args.Validate(); err != nil {
		return nil, errors.ConfigInvalid(err.Error())
	}
	if opts.Store == nil {
		return nil, errors.InternalError("trainer needs a checkpoint store")
	}
	if opts.Logger == nil {
		opts.Logger = internal.DefaultLogger
	}
	if opts.Args.Workers < 1 {
		opts.Args.Workers = 1
	}
	a := opts.Args
	return &Trainer{
		opts:   opts,
		args:   a,
		model:  m,
		opt:    model.NewAdamW(m, a.AdamBeta1, a.AdamBeta2, a.AdamEpsilon, a.WeightDecay),
		logger: opts.Logger.With("Trainer"),
	}, nil
}

// Model returns the model being trained
func (t *Trainer) Model() *model.Classifier {
	return t.model
}

// State returns the progress so far
func (t *Trainer) State() training.State {
	return t.state
}

// Train runs every epoch over train, evaluating on valid after each one
func (t *Trainer) Train(ctx context.Context, train, valid *intent.Dataset) (*training.State, error) {
	n := train.Len()
	if n == 0 {
		return nil, errors.DatasetError("training set is empty")
	}
	a := t.args
	stepsPerEpoch := (n + a.TrainBatchSize - 1) / a.TrainBatchSize
	maxSteps := stepsPerEpoch * a.NumTrainEpochs
	sched := model.LinearSchedule{
		Base:   a.LearningRate,
		Warmup: int(math.Ceil(a.WarmupRatio * float64(maxSteps))),
		Total:  maxSteps,
	}
	t.state = training.State{MaxSteps: maxSteps}

	t.logger.Info("***** Running training *****")
	t.logger.Info("  Num examples = %d", n)
	t.logger.Info("  Num Epochs = %d", a.NumTrainEpochs)
	t.logger.Info("  Batch size = %d", a.TrainBatchSize)
	t.logger.Info("  Total optimization steps = %d", maxSteps)

	rng := rand.New(rand.NewSource(a.Seed))
	var window []float64

	for epoch := 0; epoch < a.NumTrainEpochs; epoch++ {
		order := rng.Perm(n)
		for start := 0; start < n; start += a.TrainBatchSize {
			if err := ctx.Err(); err != nil {
				return &t.state, err
			}
			end := min(start+a.TrainBatchSize, n)
			batch := make([]*intent.Example, 0, end-start)
			for _, idx := range order[start:end] {
				batch = append(batch, &train.Examples[idx])
			}

			grads, err := t.gradients(ctx, batch)
			if err != nil {
				return &t.state, err
			}
			lr := sched.At(t.state.GlobalStep)
			loss := grads.MeanLoss()
			grads.Scale(1 / float64(len(batch)))
			t.opt.Step(t.model, grads, lr)

			t.state.GlobalStep++
			t.state.Epoch = float64(t.state.GlobalStep) / float64(stepsPerEpoch)
			t.opts.Metrics.StepTaken()
			window = append(window, loss)

			if a.LoggingSteps > 0 && t.state.GlobalStep%a.LoggingSteps == 0 {
				t.logWindow(window, lr)
				window = window[:0]
			}
		}

		if err := t.endEpoch(ctx, valid); err != nil {
			return &t.state, err
		}
	}

	if a.LoadBestModelAtEnd && t.state.BestCheckpoint != "" {
		t.logger.Info("Loading best model from %s (score: %.4f)", t.state.BestCheckpoint, *t.state.BestMetric)
		if _, err := t.opts.Store.Load(ctx, t.state.BestCheckpoint, t.model); err != nil {
			return &t.state, errors.Wrap(err, "load best checkpoint")
		}
	}
	t.logger.Info("Training completed. global_step=%d", t.state.GlobalStep)
	return &t.state, nil
}

func (t *Trainer) logWindow(window []float64, lr float64) {
	mean, err := stats.Mean(window)
	if err != nil {
		return
	}
	t.logger.Info("{'loss': %.4f, 'learning_rate': %.4e, 'epoch': %.2f}", mean, lr, t.state.Epoch)
	t.opts.Metrics.ObserveStep(mean, lr, t.state.Epoch)
	t.appendLog(training.LogEntry{
		Kind:         "train",
		Step:         t.state.GlobalStep,
		Epoch:        t.state.Epoch,
		Loss:         mean,
		LearningRate: lr,
	})
}

func (t *Trainer) appendLog(entry training.LogEntry) {
	if t.opts.Log == nil {
		return
	}
	entry.RunID = t.opts.RunID
	entry.At = core.Now()
	if err := t.opts.Log.Append(entry); err != nil {
		t.logger.Warn("failed to write training log: %v", err)
	}
}

func (t *Trainer) endEpoch(ctx context.Context, valid *intent.Dataset) error {
	res, err := t.Evaluate(ctx, valid, "eval")
	if err != nil {
		return err
	}
	res.Epoch = math.Round(t.state.Epoch*100) / 100
	res.Step = t.state.GlobalStep
	t.logger.Info("%s", FormatMetrics(res))
	t.state.History = append(t.state.History, res)
	t.opts.Metrics.ObserveEval(res)
	t.appendLog(training.LogEntry{Kind: "eval", Step: res.Step, Epoch: res.Epoch, Eval: &res})
	if t.opts.Ledger != nil {
		if err := t.opts.Ledger.RecordEpoch(ctx, t.opts.RunID, res); err != nil {
			t.logger.Warn("failed to record epoch in ledger: %v", err)
		}
	}

	id := core.CheckpointIDForStep(t.state.GlobalStep)
	dir := filepath.Join(t.args.OutputDir, id.String())
	meta := training.CheckpointMeta{
		ID:          id,
		RunID:       t.opts.RunID,
		Step:        t.state.GlobalStep,
		Epoch:       res.Epoch,
		Eval:        &res,
		Fingerprint: t.opts.Fingerprint,
		CreatedAt:   core.Now(),
	}
	if err := t.opts.Store.Save(ctx, dir, t.model, meta); err != nil {
		return errors.Wrapf(err, "save %s", id)
	}
	t.logger.Info("Saving model checkpoint to %s", dir)

	metric := res.Metric(t.args.MetricForBestModel)
	if t.state.IsBetter(t.args.MetricForBestModel, metric) {
		t.state.BestMetric = &metric
		t.state.BestCheckpoint = dir
	}
	return t.rotate(ctx)
}

// rotate deletes the oldest checkpoints beyond SaveTotalLimit, never the best
func (t *Trainer) rotate(ctx context.Context) error {
	limit := t.args.SaveTotalLimit
	if limit <= 0 {
		return nil
	}
	ckpts, err := t.opts.Store.List(ctx, t.args.OutputDir)
	if err != nil {
		return err
	}
	if len(ckpts) <= limit {
		return nil
	}
	latest := ckpts[len(ckpts)-1].Path
	if limit == 1 && t.state.BestCheckpoint != "" && t.state.BestCheckpoint != latest {
		limit = 2
	}

	excess := len(ckpts) - limit
	for _, c := range ckpts {
		if excess <= 0 {
			break
		}
		if c.Path == t.state.BestCheckpoint {
			continue
		}
		t.logger.Info("Deleting older checkpoint [%s] due to save_total_limit", c.Path)
		if err := t.opts.Store.Delete(ctx, c.Path); err != nil {
			return err
		}
		excess--
	}
	return nil
}

// gradients computes the summed batch gradient across worker shards
func (t *Trainer) gradients(ctx context.Context, batch []*intent.Example) (*model.Gradients, error) {
	workers := min(t.args.Workers, len(batch))
	shards := make([]*model.Gradients, workers)
	size := (len(batch) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * size
		hi := min(lo+size, len(batch))
		shards[w] = t.model.NewGradients()
		if lo >= hi {
			continue
		}
		grads := shards[w]
		g.Go(func() error {
			for _, ex := range batch[lo:hi] {
				if ex.LabelID < 0 || ex.LabelID >= t.model.NumLabels() {
					return errors.DatasetError(fmt.Sprintf("row %d has label id %d outside the model's %d labels", ex.Row, ex.LabelID, t.model.NumLabels()))
				}
				t.model.Backward(ex.TokenIDs, ex.LabelID, grads)
			}
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	total := shards[0]
	for _, s := range shards[1:] {
		total.Merge(s)
	}
	return total, nil
}
