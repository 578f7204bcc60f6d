package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"intenttune/app"
	"intenttune/internal"
	"intenttune/internal/config"
	"intenttune/internal/container"

	"github.com/joho/godotenv"
)

// main runs the whole fine-tuning pipeline with settings from the
// environment, the way the training script is run
func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := internal.NewLogger(internal.ParseLogLevel(appConfig.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.New(appConfig, logger)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown()

	if err := appContainer.InitWithDatabase(ctx); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if err := appContainer.InitRunLogs(); err != nil {
		log.Fatalf("Failed to open run logs: %v", err)
	}
	if err := appContainer.InitArtifacts(ctx); err != nil {
		log.Fatalf("Failed to initialize artifact upload: %v", err)
	}

	pipeline := app.NewPipelineService(appConfig, app.PipelineDeps{
		Reader:        appContainer.Reader,
		ResultsWriter: appContainer.ResultsWriter,
		Store:         appContainer.Store,
		Ledger:        appContainer.Ledger,
		TrainingLog:   appContainer.TrainingLog,
		Uploader:      appContainer.Uploader,
		Memory:        appContainer.Memory,
		GPUs:          appContainer.GPUs,
		Metrics:       appContainer.Metrics,
	}, logger)

	result, err := pipeline.Run(ctx)
	if err != nil {
		// Fatalf skips deferred calls
		appContainer.Shutdown()
		log.Fatalf("Pipeline failed: %v", err)
	}
	log.Printf("Test results saved to %s (best model: %s)", result.Test.ResultsFile, result.State.BestCheckpoint)
}
