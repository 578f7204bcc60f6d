package postgres

import (
	"context"
	"time"

	"intenttune/domain/core"
	"intenttune/domain/training"
	"intenttune/internal/errors"
	"intenttune/internal/migration"
	"intenttune/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// RunRepositoryImpl implements ports.RunLedger for PostgreSQL
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// NewRunRepository creates a new PostgreSQL run ledger
func NewRunRepository(db *sqlx.DB) ports.RunLedger {
	return &RunRepositoryImpl{db: db}
}

// Connect opens the database and applies the ledger migrations
func Connect(ctx context.Context, url string, runner migration.Migrator) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := runner.Run(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// StartRun inserts a running run
func (r *RunRepositoryImpl) StartRun(ctx context.Context, run training.RunRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO training_runs (id, status, train_file, dataset_fingerprint, num_labels, train_samples, valid_samples, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status
	`, run.ID.String(), string(run.Status), run.TrainFile, run.Fingerprint.String(), run.NumLabels, run.TrainSamples, run.ValidSamples, run.StartedAt.Time())
	if err != nil {
		return errors.DatabaseError("failed to insert training run", err)
	}
	return nil
}

// RecordEpoch stores the evaluation of one epoch
func (r *RunRepositoryImpl) RecordEpoch(ctx context.Context, runID core.RunID, result training.EvalResult) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO training_epochs (run_id, epoch, global_step, eval_loss, eval_accuracy, eval_f1, samples)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id, global_step) DO NOTHING
	`, runID.String(), result.Epoch, result.Step, result.Loss, result.Accuracy, result.F1, result.Samples)
	if err != nil {
		return errors.DatabaseError("failed to insert training epoch", err)
	}
	return nil
}

// FinishRun stores the final status and best checkpoint
func (r *RunRepositoryImpl) FinishRun(ctx context.Context, run training.RunRecord) error {
	finished := time.Now()
	if run.FinishedAt != nil {
		finished = run.FinishedAt.Time()
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE training_runs
		SET status = $2, best_metric = $3, best_model_checkpoint = $4, error_message = $5, finished_at = $6
		WHERE id = $1
	`, run.ID.String(), string(run.Status), run.BestMetric, nullable(run.BestModelPath), nullable(run.Error), finished)
	if err != nil {
		return errors.DatabaseError("failed to update training run", err)
	}
	return nil
}

// GetRun reads one run back
func (r *RunRepositoryImpl) GetRun(ctx context.Context, id core.RunID) (*training.RunRecord, error) {
	var row struct {
		training.RunRecord
		BestModelPath *string   `db:"best_model_checkpoint"`
		Error         *string   `db:"error_message"`
		Started       time.Time `db:"started_at"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT id, status, train_file, dataset_fingerprint, num_labels, train_samples, valid_samples,
		       best_metric, best_model_checkpoint, error_message, started_at
		FROM training_runs
		WHERE id = $1
	`, id.String())
	if err != nil {
		return nil, errors.DatabaseError("failed to load training run", err)
	}
	run := row.RunRecord
	if row.BestModelPath != nil {
		run.BestModelPath = *row.BestModelPath
	}
	if row.Error != nil {
		run.Error = *row.Error
	}
	run.StartedAt = core.NewTimestamp(row.Started)
	return &run, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
