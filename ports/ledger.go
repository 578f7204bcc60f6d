package ports

import (
	"context"

	"intenttune/domain/core"
	"intenttune/domain/training"
)

// RunLedger records training runs and their per-epoch evaluations
type RunLedger interface {
	StartRun(ctx context.Context, run training.RunRecord) error
	RecordEpoch(ctx context.Context, runID core.RunID, result training.EvalResult) error
	FinishRun(ctx context.Context, run training.RunRecord) error
}

// ArtifactUploader copies a local directory to remote storage
type ArtifactUploader interface {
	UploadDir(ctx context.Context, dir, prefix string) (int, error)
}

// TrainingLog receives training and evaluation log entries as they happen
type TrainingLog interface {
	Append(entry training.LogEntry) error
}
