// Package training describes a fine-tuning run: its arguments, the metrics it
// produces and the checkpoints it leaves behind.
package training

import (
	"fmt"

	"intenttune/domain/core"
)

// Metric names usable as the best-model criterion
const (
	MetricAccuracy = "accuracy"
	MetricF1       = "f1"
	MetricLoss     = "loss"
)

// Arguments controls the training loop
type Arguments struct {
	OutputDir          string  `json:"output_dir"`
	LoggingDir         string  `json:"logging_dir"`
	LearningRate       float64 `json:"learning_rate"`
	TrainBatchSize     int     `json:"per_device_train_batch_size"`
	EvalBatchSize      int     `json:"per_device_eval_batch_size"`
	NumTrainEpochs     int     `json:"num_train_epochs"`
	WeightDecay        float64 `json:"weight_decay"`
	AdamBeta1          float64 `json:"adam_beta1"`
	AdamBeta2          float64 `json:"adam_beta2"`
	AdamEpsilon        float64 `json:"adam_epsilon"`
	WarmupRatio        float64 `json:"warmup_ratio"`
	LoggingSteps       int     `json:"logging_steps"`
	SaveTotalLimit     int     `json:"save_total_limit"`
	LoadBestModelAtEnd bool    `json:"load_best_model_at_end"`
	MetricForBestModel string  `json:"metric_for_best_model"`
	Seed               int64   `json:"seed"`
	Workers            int     `json:"workers"`
}

// DefaultArguments mirrors the reference fine-tuning recipe
func DefaultArguments() Arguments {
	return Arguments{
		OutputDir:          "./results",
		LoggingDir:         "./logs",
		LearningRate:       0.005,
		TrainBatchSize:     64,
		EvalBatchSize:      64,
		NumTrainEpochs:     10,
		WeightDecay:        0.01,
		AdamBeta1:          0.9,
		AdamBeta2:          0.999,
		AdamEpsilon:        1e-8,
		LoggingSteps:       10,
		SaveTotalLimit:     2,
		LoadBestModelAtEnd: true,
		MetricForBestModel: MetricAccuracy,
		Seed:               42,
		Workers:            1,
	}
}

// Validate checks argument ranges
func (a Arguments) Validate() error {
	switch {
	case a.LearningRate <= 0:
		return fmt.Errorf("learning rate must be positive, got %g", a.LearningRate)
	case a.TrainBatchSize <= 0 || a.EvalBatchSize <= 0:
		return fmt.Errorf("batch sizes must be positive, got train=%d eval=%d", a.TrainBatchSize, a.EvalBatchSize)
	case a.NumTrainEpochs <= 0:
		return fmt.Errorf("num_train_epochs must be positive, got %d", a.NumTrainEpochs)
	case a.WeightDecay < 0:
		return fmt.Errorf("weight decay cannot be negative, got %g", a.WeightDecay)
	case a.WarmupRatio < 0 || a.WarmupRatio >= 1:
		return fmt.Errorf("warmup ratio must be in [0,1), got %g", a.WarmupRatio)
	case a.SaveTotalLimit < 0:
		return fmt.Errorf("save_total_limit cannot be negative, got %d", a.SaveTotalLimit)
	case a.OutputDir == "":
		return fmt.Errorf("output dir is required")
	}
	if _, err := GreaterIsBetter(a.MetricForBestModel); err != nil {
		return err
	}
	return nil
}

// GreaterIsBetter reports the comparison direction for a best-model metric
func GreaterIsBetter(metric string) (bool, error) {
	switch metric {
	case MetricAccuracy, MetricF1:
		return true, nil
	case MetricLoss:
		return false, nil
	default:
		return false, fmt.Errorf("unknown metric for best model: %q", metric)
	}
}

// EvalResult holds the metrics of one evaluation pass
type EvalResult struct {
	Prefix   string  `json:"-"`
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
	F1       float64 `json:"f1"`
	Samples  int     `json:"samples"`
	Epoch    float64 `json:"epoch"`
	Step     int     `json:"step"`
}

// Metric returns the named metric value
func (r EvalResult) Metric(name string) float64 {
	switch name {
	case MetricF1:
		return r.F1
	case MetricLoss:
		return r.Loss
	default:
		return r.Accuracy
	}
}

// Map returns the metrics keyed the way they are printed: <prefix>_loss etc.
func (r EvalResult) Map() map[string]float64 {
	p := r.Prefix
	if p == "" {
		p = "eval"
	}
	return map[string]float64{
		p + "_loss":     r.Loss,
		p + "_accuracy": r.Accuracy,
		p + "_f1":       r.F1,
		"epoch":         r.Epoch,
	}
}

// LogEntry is one line of the training log
type LogEntry struct {
	RunID        core.RunID     `json:"run_id"`
	Kind         string         `json:"kind"`
	Step         int            `json:"step"`
	Epoch        float64        `json:"epoch"`
	Loss         float64        `json:"loss,omitempty"`
	LearningRate float64        `json:"learning_rate,omitempty"`
	Eval         *EvalResult    `json:"eval,omitempty"`
	At           core.Timestamp `json:"at"`
}

// CheckpointMeta is stored next to the weights of every checkpoint
type CheckpointMeta struct {
	ID          core.CheckpointID       `json:"id"`
	RunID       core.RunID              `json:"run_id"`
	Step        int                     `json:"global_step"`
	Epoch       float64                 `json:"epoch"`
	Eval        *EvalResult             `json:"eval,omitempty"`
	Fingerprint core.DatasetFingerprint `json:"dataset_fingerprint"`
	CreatedAt   core.Timestamp          `json:"created_at"`
}

// State tracks progress across epochs
type State struct {
	Epoch          float64      `json:"epoch"`
	GlobalStep     int          `json:"global_step"`
	MaxSteps       int          `json:"max_steps"`
	BestMetric     *float64     `json:"best_metric,omitempty"`
	BestCheckpoint string       `json:"best_model_checkpoint,omitempty"`
	History        []EvalResult `json:"log_history"`
}

// IsBetter reports whether value beats the current best for the metric
func (s *State) IsBetter(metric string, value float64) bool {
	if s.BestMetric == nil {
		return true
	}
	greater, err := GreaterIsBetter(metric)
	if err != nil {
		return false
	}
	if greater {
		return value > *s.BestMetric
	}
	return value < *s.BestMetric
}

// RunStatus is the lifecycle state of a training run
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunRecord summarises a training run for the ledger
type RunRecord struct {
	ID            core.RunID              `json:"id" db:"id"`
	Status        RunStatus               `json:"status" db:"status"`
	TrainFile     string                  `json:"train_file" db:"train_file"`
	Fingerprint   core.DatasetFingerprint `json:"dataset_fingerprint" db:"dataset_fingerprint"`
	NumLabels     int                     `json:"num_labels" db:"num_labels"`
	TrainSamples  int                     `json:"train_samples" db:"train_samples"`
	ValidSamples  int                     `json:"valid_samples" db:"valid_samples"`
	BestMetric    *float64                `json:"best_metric,omitempty" db:"best_metric"`
	BestModelPath string                  `json:"best_model_checkpoint,omitempty" db:"best_model_checkpoint"`
	Error         string                  `json:"error,omitempty" db:"error_message"`
	StartedAt     core.Timestamp          `json:"started_at" db:"-"`
	FinishedAt    *core.Timestamp         `json:"finished_at,omitempty" db:"-"`
}
