package app

import (
	"context"
	"path"
	"time"

	"intenttune/domain/core"
	"intenttune/domain/intent"
	"intenttune/domain/training"
	"intenttune/internal"
	"intenttune/internal/config"
	"intenttune/internal/dataset"
	"intenttune/internal/device"
	"intenttune/internal/errors"
	"intenttune/internal/model"
	"intenttune/internal/monitor"
	"intenttune/internal/profiling"
	"intenttune/internal/telemetry"
	"intenttune/internal/trainer"
	"intenttune/ports"
)

// PipelineDeps are the adapters a pipeline run talks to. Ledger, TrainingLog,
// Uploader, Memory, GPUs and Metrics may be nil.
type PipelineDeps struct {
	Reader        ports.TableReader
	ResultsWriter ports.TableWriter
	Store         ports.CheckpointStore
	Ledger        ports.RunLedger
	TrainingLog   ports.TrainingLog
	Uploader      ports.ArtifactUploader
	Memory        ports.MemorySampler
	GPUs          ports.GPUSampler
	Metrics       *telemetry.Metrics
}

// PipelineService runs the complete fine-tuning workflow: prepare the data,
// train with per-epoch evaluation, evaluate on the test file and save the
// predictions
type PipelineService struct {
	cfg    *config.Config
	deps   PipelineDeps
	eval   *EvaluationService
	logger *internal.Logger
}

// PipelineResult summarises a finished run
type PipelineResult struct {
	RunID    core.RunID
	State    *training.State
	Test     *EvaluationResult
	Uploaded int
	Duration time.Duration
}

// NewPipelineService creates a pipeline service
func NewPipelineService(cfg *config.Config, deps PipelineDeps, logger *internal.Logger) *PipelineService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &PipelineService{
		cfg:    cfg,
		deps:   deps,
		eval:   NewEvaluationService(deps.Reader, deps.ResultsWriter, deps.Store, cfg, logger),
		logger: logger.With("Pipeline"),
	}
}

// Run executes the pipeline. The resource monitor and the metrics server
// live for the duration of the call.
func (s *PipelineService) Run(ctx context.Context) (*PipelineResult, error) {
	start := time.Now()
	result := &PipelineResult{RunID: core.NewRunID()}

	report, err := device.Detect(ctx, s.deps.GPUs)
	if err != nil {
		s.logger.Warn("GPU detection failed: %v", err)
	}
	report.Log(s.logger)

	var srv *telemetry.Server
	if s.cfg.Metrics.Addr != "" {
		if s.deps.Metrics == nil {
			s.deps.Metrics = telemetry.NewMetrics()
		}
		srv = telemetry.NewServer(s.deps.Metrics, s.logger)
		srvCtx, stopServer := context.WithCancel(ctx)
		srvDone := make(chan struct{})
		defer func() {
			stopServer()
			<-srvDone
		}()
		go func() {
			defer close(srvDone)
			if err := srv.ListenAndServe(srvCtx, s.cfg.Metrics.Addr); err != nil {
				s.logger.Error("metrics server failed: %v", err)
				return
			}
			s.logger.Info("metrics server stopped")
		}()
	}
	setPhase := func(phase string) {
		if srv != nil {
			srv.SetPhase(phase)
		}
	}

	if s.cfg.Monitor.Enabled && s.deps.Memory != nil {
		mon := monitor.New(s.deps.Memory, s.deps.GPUs, s.cfg.Monitor.Interval, s.logger, s.deps.Metrics)
		stop := mon.Start(ctx)
		defer stop()
	}

	setPhase("preparing")
	full, train, valid, err := s.prepare(ctx)
	if err != nil {
		return nil, err
	}

	clf, tok, err := s.buildModel(ctx, full.Labels)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Tokenizer: %s, max_seq_length=%d", tok.Name(), s.cfg.Model.MaxSeqLength)
	for _, ds := range []*intent.Dataset{train, valid} {
		if err := dataset.Tokenize(ctx, ds, tok, s.cfg.Model.MaxSeqLength, s.cfg.Training.Workers); err != nil {
			return nil, err
		}
		profile, err := profiling.ProfileDataset(ds, s.cfg.Model.MaxSeqLength)
		if err != nil {
			s.logger.Warn("failed to profile %s set: %v", ds.Name, err)
			continue
		}
		profile.Log(s.logger)
	}

	run := training.RunRecord{
		ID:           result.RunID,
		Status:       training.RunRunning,
		TrainFile:    s.cfg.Data.TrainFile,
		Fingerprint:  full.Fingerprint(),
		NumLabels:    full.Labels.Len(),
		TrainSamples: train.Len(),
		ValidSamples: valid.Len(),
		StartedAt:    core.Now(),
	}
	s.logger.Info("Run %s, dataset fingerprint %s", run.ID, core.Hash(run.Fingerprint).Short())
	s.startRun(ctx, run)

	setPhase("training")
	s.logger.Info("Starting training...")
	tr, err := trainer.New(clf, trainer.Options{
		Args:        s.cfg.Training,
		RunID:       result.RunID,
		Fingerprint: run.Fingerprint,
		Store:       s.deps.Store,
		Log:         s.deps.TrainingLog,
		Ledger:      s.deps.Ledger,
		Metrics:     s.deps.Metrics,
		Logger:      s.logger,
	})
	if err != nil {
		s.finishRun(ctx, run, nil, err)
		return nil, err
	}
	state, err := tr.Train(ctx, train, valid)
	result.State = state
	if err != nil {
		s.finishRun(ctx, run, state, err)
		return nil, errors.Wrap(err, "training failed")
	}

	setPhase("evaluating")
	test, err := s.eval.Evaluate(ctx, clf, tok, s.cfg.Data.TestFile, s.cfg.Data.ResultsFile)
	if err != nil {
		s.finishRun(ctx, run, state, err)
		return nil, errors.Wrap(err, "test evaluation failed")
	}
	result.Test = test
	s.deps.Metrics.ObserveEval(test.Metrics)

	result.Uploaded = s.upload(ctx, result.RunID, state.BestCheckpoint)
	s.finishRun(ctx, run, state, nil)

	setPhase("done")
	result.Duration = time.Since(start)
	s.logger.Info("Pipeline finished in %s", result.Duration.Round(time.Millisecond))
	return result, nil
}

// prepare reads the training file, builds the label map and splits it
func (s *PipelineService) prepare(ctx context.Context) (full, train, valid *intent.Dataset, err error) {
	table, err := s.deps.Reader.ReadTable(ctx, s.cfg.Data.TrainFile)
	if err != nil {
		return nil, nil, nil, err
	}
	cols := dataset.ColumnsFrom(s.cfg.Data.TextColumns, s.cfg.Data.LabelColumn)
	full, err = dataset.Prepare(table, cols, s.logger)
	if err != nil {
		return nil, nil, nil, err
	}
	s.logger.Info("Label mapping: %v", full.Labels.Label2ID())

	train, valid, err = dataset.StratifiedSplit(full, s.cfg.Data.TestSize, s.cfg.Training.Seed)
	if err != nil {
		return nil, nil, nil, err
	}
	s.logger.Info("Training samples: %d, Validation samples: %d", train.Len(), valid.Len())
	return full, train, valid, nil
}

// buildModel starts from BASE_MODEL_DIR when set, re-initialising the head
// if its labels differ, or creates a fresh classifier
func (s *PipelineService) buildModel(ctx context.Context, labels *intent.LabelMap) (*model.Classifier, ports.Tokenizer, error) {
	mc := s.cfg.Model
	if mc.BaseModelDir != "" {
		clf := model.Empty()
		if _, err := s.deps.Store.Load(ctx, mc.BaseModelDir, clf); err != nil {
			return nil, nil, errors.Wrapf(err, "load base model %s", mc.BaseModelDir)
		}
		if clf.Resize(labels, s.cfg.Training.Seed) {
			s.logger.Warn("Base model labels differ, classification head re-initialised for %d labels", labels.Len())
		}
		tok, err := tokenizerFor(clf.Config().Tokenizer, mc, clf.Config().VocabSize)
		if err != nil {
			return nil, nil, err
		}
		s.logger.Info("Fine-tuning from %s", mc.BaseModelDir)
		return clf, tok, nil
	}

	tok, err := tokenizerFor("", mc, mc.HashBuckets)
	if err != nil {
		return nil, nil, err
	}
	clf, err := model.New(mc.HashBuckets, mc.EmbeddingDim, mc.MaxSeqLength, tok.Name(), labels, s.cfg.Training.Seed)
	if err != nil {
		return nil, nil, err
	}
	return clf, tok, nil
}

func (s *PipelineService) upload(ctx context.Context, runID core.RunID, dir string) int {
	if s.deps.Uploader == nil || dir == "" {
		return 0
	}
	prefix := path.Join(s.cfg.Artifacts.Prefix, runID.String())
	n, err := s.deps.Uploader.UploadDir(ctx, dir, prefix)
	if err != nil {
		s.logger.Warn("best checkpoint upload failed: %v", err)
		return n
	}
	s.logger.Info("Uploaded %d files of %s", n, dir)
	return n
}

func (s *PipelineService) startRun(ctx context.Context, run training.RunRecord) {
	if s.deps.Ledger == nil {
		return
	}
	if err := s.deps.Ledger.StartRun(ctx, run); err != nil {
		s.logger.Warn("failed to record run start: %v", err)
	}
}

func (s *PipelineService) finishRun(ctx context.Context, run training.RunRecord, state *training.State, runErr error) {
	if s.deps.Ledger == nil {
		return
	}
	run.Status = training.RunCompleted
	if runErr != nil {
		run.Status = training.RunFailed
		run.Error = runErr.Error()
	}
	if state != nil {
		run.BestMetric = state.BestMetric
		run.BestModelPath = state.BestCheckpoint
	}
	now := core.Now()
	run.FinishedAt = &now
	s.logger.Info("Run %s %s after %s", run.ID, run.Status, now.Sub(run.StartedAt).Round(time.Millisecond))
	// the caller's context may already be cancelled
	if err := s.deps.Ledger.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Warn("failed to record run end: %v", err)
	}
}
