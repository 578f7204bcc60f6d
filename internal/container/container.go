package container

import (
	"context"
	"fmt"

	"intenttune/adapters/excel"
	"intenttune/adapters/filesystem"
	"intenttune/adapters/objectstore"
	"intenttune/adapters/postgres"
	"intenttune/adapters/sampler"
	"intenttune/domain/intent"
	"intenttune/internal"
	"intenttune/internal/config"
	"intenttune/internal/migration"
	"intenttune/internal/telemetry"
	"intenttune/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB      *sqlx.DB
	Metrics *telemetry.Metrics

	// Spreadsheets
	Reader        ports.TableReader
	Writer        ports.TableWriter
	ResultsWriter ports.TableWriter

	// Training persistence
	Store       ports.CheckpointStore
	Ledger      ports.RunLedger
	TrainingLog ports.TrainingLog
	Uploader    ports.ArtifactUploader

	// Resource sampling
	Memory ports.MemorySampler
	GPUs   ports.GPUSampler
}

// New creates a container with every local dependency. Remote ones are
// added by InitWithDatabase and InitArtifacts.
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}

	excelCfg := excel.DefaultExcelConfig()
	excelCfg.SheetName = cfg.Data.SheetName

	c := &Container{
		Config:        cfg,
		Logger:        logger,
		Metrics:       telemetry.NewMetrics(),
		Reader:        excel.NewDataReader(excelCfg),
		Writer:        excel.NewDataWriter(excelCfg),
		ResultsWriter: excel.NewDataWriter(excelCfg, intent.NumericResultColumns...),
		Store:         filesystem.NewCheckpointStore(),
		GPUs:          sampler.NewNvidiaSMISampler(),
	}

	if cfg.Monitor.Enabled {
		mem, err := sampler.NewProcfsSampler(cfg.Monitor.ProcRoot)
		if err != nil {
			logger.Warn("resource monitor disabled: %v", err)
		} else {
			c.Memory = mem
		}
	}
	return c, nil
}

// InitRunLogs opens the JSON-lines training log and the local run ledger
// under LOGGING_DIR. The ledger is replaced by InitWithDatabase when a
// database is configured.
func (c *Container) InitRunLogs() error {
	dir := c.Config.Training.LoggingDir
	trainingLog, err := filesystem.NewTrainingLog(dir, "trainer_log")
	if err != nil {
		return fmt.Errorf("failed to open training log: %w", err)
	}
	c.TrainingLog = trainingLog

	if c.Ledger == nil {
		ledger, err := filesystem.NewLedger(dir)
		if err != nil {
			return fmt.Errorf("failed to open run ledger: %w", err)
		}
		c.Ledger = ledger
	}
	return nil
}

// InitWithDatabase connects to DATABASE_URL, applies the schema and switches
// the run ledger to Postgres. It does nothing when no URL is configured.
func (c *Container) InitWithDatabase(ctx context.Context) error {
	if c.Config.Database.URL == "" {
		return nil
	}
	db, err := postgres.Connect(ctx, c.Config.Database.URL, migration.NewRunner(c.Logger))
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	c.DB = db
	c.Ledger = postgres.NewRunRepository(db)
	c.Logger.Info("Run ledger: postgres")
	return nil
}

// InitArtifacts creates the object storage uploader when ARTIFACT_BUCKET is set
func (c *Container) InitArtifacts(ctx context.Context) error {
	a := c.Config.Artifacts
	if a.Bucket == "" {
		return nil
	}
	client, err := objectstore.NewClient(ctx, objectstore.Config{Bucket: a.Bucket, Region: a.Region, Endpoint: a.Endpoint})
	if err != nil {
		return fmt.Errorf("failed to create object storage client: %w", err)
	}
	c.Uploader = objectstore.NewUploader(client, a.Bucket, c.Logger)
	c.Logger.Info("Artifact upload: s3://%s/%s", a.Bucket, a.Prefix)
	return nil
}

// Shutdown closes the database connection if one was opened
func (c *Container) Shutdown() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
