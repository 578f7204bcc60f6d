package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"intenttune/adapters/excel"
	"intenttune/app"
	"intenttune/internal"
	"intenttune/internal/config"
	"intenttune/internal/container"
	"intenttune/internal/device"
	"intenttune/internal/errors"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "intenttune",
		Short:         "Fine-tune and evaluate an intent classifier on spreadsheet data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newTrainCmd(),
		newEvaluateCmd(),
		newExtractCmd(),
		newDevicesCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps configuration and usage errors to 2, everything else to 1
func exitCode(err error) int {
	if !errors.IsAppError(err) {
		return 1
	}
	if errors.HasCode(err, errors.CodeConfigInvalid) || errors.HasCode(err, errors.CodeInvalidInput) {
		return 2
	}
	return 1
}

// setup loads .env and the environment configuration
func setup() (*config.Config, *internal.Logger, error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))
	internal.DefaultLogger = logger
	return cfg, logger, nil
}

func newTrainCmd() *cobra.Command {
	var trainFile, testFile, resultsFile, outputDir, baseModel string
	var epochs int

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train on TRAIN_FILE, evaluate on TEST_FILE and save predictions",
		Long: `Run the full pipeline: read the training spreadsheet, split it into
stratified train and validation sets, fine-tune with an evaluation and a
checkpoint after every epoch, then score the test spreadsheet.

Every setting comes from the environment (or .env) and may be overridden by flags.

Example: intenttune train --train-file data.xlsx --epochs 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("train-file") {
				cfg.Data.TrainFile = trainFile
			}
			if flags.Changed("test-file") {
				cfg.Data.TestFile = testFile
			}
			if flags.Changed("results") {
				cfg.Data.ResultsFile = resultsFile
			}
			if flags.Changed("output-dir") {
				cfg.Training.OutputDir = outputDir
			}
			if flags.Changed("base-model") {
				cfg.Model.BaseModelDir = baseModel
			}
			if flags.Changed("epochs") {
				cfg.Training.NumTrainEpochs = epochs
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runTrain(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVar(&trainFile, "train-file", "", "Training spreadsheet (TRAIN_FILE)")
	cmd.Flags().StringVar(&testFile, "test-file", "", "Test spreadsheet (TEST_FILE)")
	cmd.Flags().StringVar(&resultsFile, "results", "", "Predictions output (RESULTS_FILE)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Checkpoint directory (OUTPUT_DIR)")
	cmd.Flags().StringVar(&baseModel, "base-model", "", "Checkpoint to fine-tune from (BASE_MODEL_DIR)")
	cmd.Flags().IntVar(&epochs, "epochs", 0, "Number of training epochs (NUM_TRAIN_EPOCHS)")

	return cmd
}

func runTrain(ctx context.Context, cfg *config.Config, logger *internal.Logger) error {
	c, err := container.New(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Shutdown()

	if err := c.InitWithDatabase(ctx); err != nil {
		return err
	}
	if err := c.InitRunLogs(); err != nil {
		return err
	}
	if err := c.InitArtifacts(ctx); err != nil {
		return err
	}

	pipeline := app.NewPipelineService(cfg, app.PipelineDeps{
		Reader:        c.Reader,
		ResultsWriter: c.ResultsWriter,
		Store:         c.Store,
		Ledger:        c.Ledger,
		TrainingLog:   c.TrainingLog,
		Uploader:      c.Uploader,
		Memory:        c.Memory,
		GPUs:          c.GPUs,
		Metrics:       c.Metrics,
	}, logger)

	res, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("run %s: best checkpoint %s, test accuracy %.4f, test f1 %.4f\n",
		res.RunID, res.State.BestCheckpoint, res.Test.Metrics.Accuracy, res.Test.Metrics.F1)
	return nil
}

func newEvaluateCmd() *cobra.Command {
	var modelDir, testFile, out string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a saved checkpoint on a test spreadsheet",
		Long: `Load a checkpoint directory and predict every row of the test spreadsheet.
Rows whose label the model was not trained on are predicted but not scored.

Example: intenttune evaluate --model results/checkpoint-240 --test-file test.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if testFile == "" {
				testFile = cfg.Data.TestFile
			}
			if out == "" {
				out = cfg.Data.ResultsFile
			}
			c, err := container.New(cfg, logger)
			if err != nil {
				return err
			}
			defer c.Shutdown()

			eval := app.NewEvaluationService(c.Reader, c.ResultsWriter, c.Store, cfg, logger)
			res, err := eval.Run(cmd.Context(), modelDir, testFile, out)
			if err != nil {
				return err
			}
			fmt.Print(res.Report.Markdown("Test results"))
			return nil
		},
	}

	cmd.Flags().StringVar(&modelDir, "model", "", "Checkpoint directory to evaluate")
	cmd.Flags().StringVar(&testFile, "test-file", "", "Test spreadsheet (default TEST_FILE)")
	cmd.Flags().StringVar(&out, "out", "", "Predictions output (default RESULTS_FILE)")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func newExtractCmd() *cobra.Command {
	var sheet string

	cmd := &cobra.Command{
		Use:   "extract-json [input] [output]",
		Short: "Flatten JSON in the assistant_response column into a new workbook",
		Long: `Read the assistant_response column, take the JSON from each cell (inside a
fenced json block when present) and write one row per object.

Example: intenttune extract-json preprocess.xlsx processed.xlsx`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			logger := internal.NewLogger(internal.ParseLogLevel(os.Getenv("LOG_LEVEL")))

			excelCfg := excel.DefaultExcelConfig()
			excelCfg.SheetName = sheet
			svc := app.NewExtractService(excel.NewDataReader(excelCfg), excel.NewDataWriter(excelCfg), logger)
			_, err := svc.Run(cmd.Context(), args[0], args[1])
			return err
		},
	}

	cmd.Flags().StringVar(&sheet, "sheet", "Sheet1", "Sheet to read")

	return cmd
}

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "Show the CPU, visible GPUs and current memory usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			c, err := container.New(cfg, logger)
			if err != nil {
				return err
			}

			report, err := device.Detect(cmd.Context(), c.GPUs)
			if err != nil {
				logger.Warn("GPU detection failed: %v", err)
			}
			report.Log(logger)
			if c.Memory != nil {
				mem, err := c.Memory.SampleMemory(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("RAM Usage: %.1f%%, Used RAM: %.2fGB, Available RAM: %.2fGB\n", mem.Percent, mem.UsedGB(), mem.AvailableGB())
			}
			fmt.Println(report.String())
			return nil
		},
	}
}
