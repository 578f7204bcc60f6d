package migration

import (
	"context"

	"intenttune/internal"
	"intenttune/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations for the run ledger
type MigrationRunner struct {
	version string
	logger  *internal.Logger
}

// NewRunner creates a new migration runner
func NewRunner(logger *internal.Logger) *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
		logger:  logger.With("Migration"),
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order. Every
// statement is idempotent.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createTrainingRunsTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create training_runs table", err)
	}

	if err := r.createTrainingEpochsTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create training_epochs table", err)
	}

	r.createIndexes(ctx, db)
	return nil
}

// Statements lists the schema statements in execution order
func Statements() []string {
	return append([]string{trainingRunsDDL, trainingEpochsDDL}, indexDDL...)
}

const trainingRunsDDL = `
		CREATE TABLE IF NOT EXISTS training_runs (
			id VARCHAR(64) PRIMARY KEY,
			status VARCHAR(16) NOT NULL,
			train_file TEXT NOT NULL,
			dataset_fingerprint VARCHAR(64) NOT NULL,
			num_labels INTEGER NOT NULL,
			train_samples INTEGER NOT NULL,
			valid_samples INTEGER NOT NULL,
			best_metric DOUBLE PRECISION,
			best_model_checkpoint TEXT,
			error_message TEXT,
			started_at TIMESTAMP WITH TIME ZONE NOT NULL,
			finished_at TIMESTAMP WITH TIME ZONE
		)`

const trainingEpochsDDL = `
		CREATE TABLE IF NOT EXISTS training_epochs (
			run_id VARCHAR(64) NOT NULL REFERENCES training_runs(id) ON DELETE CASCADE,
			epoch DOUBLE PRECISION NOT NULL,
			global_step INTEGER NOT NULL,
			eval_loss DOUBLE PRECISION NOT NULL,
			eval_accuracy DOUBLE PRECISION NOT NULL,
			eval_f1 DOUBLE PRECISION NOT NULL,
			samples INTEGER NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			PRIMARY KEY (run_id, global_step)
		)`

var indexDDL = []string{
	"CREATE INDEX IF NOT EXISTS idx_training_runs_started_at ON training_runs(started_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_training_runs_fingerprint ON training_runs(dataset_fingerprint)",
}

func (r *MigrationRunner) createTrainingRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, trainingRunsDDL)
	return err
}

func (r *MigrationRunner) createTrainingEpochsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, trainingEpochsDDL)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) {
	for _, idxSQL := range indexDDL {
		if _, err := db.ExecContext(ctx, idxSQL); err != nil {
			// Log but don't fail on index creation errors
			r.logger.Warn("failed to create index: %v", err)
		}
	}
}
