package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"intenttune/domain/training"
	"intenttune/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Data      DataConfig
	Model     ModelConfig
	Training  training.Arguments
	Monitor   MonitorConfig
	Metrics   MetricsConfig
	Database  DatabaseConfig
	Artifacts ArtifactConfig
	LogLevel  string
}

// DataConfig holds spreadsheet locations and the row schema
type DataConfig struct {
	TrainFile   string
	TestFile    string
	ResultsFile string
	SheetName   string
	TextColumns []string
	LabelColumn string
	TestSize    float64
}

// ModelConfig holds tokenizer and classifier settings
type ModelConfig struct {
	TokenizerFile string
	BaseModelDir  string
	MaxSeqLength  int
	EmbeddingDim  int
	HashBuckets   int
}

// MonitorConfig holds resource monitor settings
type MonitorConfig struct {
	Enabled  bool
	Interval time.Duration
	ProcRoot string
}

// MetricsConfig holds the optional Prometheus endpoint
type MetricsConfig struct {
	Addr string
}

// DatabaseConfig holds the optional run ledger connection
type DatabaseConfig struct {
	URL string
}

// ArtifactConfig holds the optional object storage upload target
type ArtifactConfig struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Data:      loadDataConfig(),
		Model:     loadModelConfig(),
		Training:  loadTrainingArguments(),
		Monitor:   loadMonitorConfig(),
		Metrics:   MetricsConfig{Addr: getEnvOrDefault("METRICS_ADDR", "")},
		Database:  DatabaseConfig{URL: getEnvOrDefault("DATABASE_URL", "")},
		Artifacts: loadArtifactConfig(),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

func loadDataConfig() DataConfig {
	return DataConfig{
		TrainFile:   getEnvOrDefault("TRAIN_FILE", "processed_data_example_v4_15000Data.xlsx"),
		TestFile:    getEnvOrDefault("TEST_FILE", "test1_processed_TEST_500to1000Phrase.xlsx"),
		ResultsFile: getEnvOrDefault("RESULTS_FILE", "test_results.xlsx"),
		SheetName:   getEnvOrDefault("SHEET_NAME", ""),
		TextColumns: getEnvListOrDefault("TEXT_COLUMNS", []string{"robot", "user_answer"}),
		LabelColumn: getEnvOrDefault("LABEL_COLUMN", "user_intent"),
		TestSize:    getEnvFloatOrDefault("TEST_SIZE", 0.25),
	}
}

func loadModelConfig() ModelConfig {
	return ModelConfig{
		TokenizerFile: getEnvOrDefault("TOKENIZER_FILE", ""),
		BaseModelDir:  getEnvOrDefault("BASE_MODEL_DIR", ""),
		MaxSeqLength:  getEnvIntOrDefault("MAX_SEQ_LENGTH", 128),
		EmbeddingDim:  getEnvIntOrDefault("EMBEDDING_DIM", 64),
		HashBuckets:   getEnvIntOrDefault("HASH_BUCKETS", 1<<16),
	}
}

func loadTrainingArguments() training.Arguments {
	args := training.DefaultArguments()
	args.OutputDir = getEnvOrDefault("OUTPUT_DIR", args.OutputDir)
	args.LoggingDir = getEnvOrDefault("LOGGING_DIR", args.LoggingDir)
	args.LearningRate = getEnvFloatOrDefault("LEARNING_RATE", args.LearningRate)
	args.TrainBatchSize = getEnvIntOrDefault("TRAIN_BATCH_SIZE", args.TrainBatchSize)
	args.EvalBatchSize = getEnvIntOrDefault("EVAL_BATCH_SIZE", args.EvalBatchSize)
	args.NumTrainEpochs = getEnvIntOrDefault("NUM_TRAIN_EPOCHS", args.NumTrainEpochs)
	args.WeightDecay = getEnvFloatOrDefault("WEIGHT_DECAY", args.WeightDecay)
	args.WarmupRatio = getEnvFloatOrDefault("WARMUP_RATIO", args.WarmupRatio)
	args.LoggingSteps = getEnvIntOrDefault("LOGGING_STEPS", args.LoggingSteps)
	args.SaveTotalLimit = getEnvIntOrDefault("SAVE_TOTAL_LIMIT", args.SaveTotalLimit)
	args.LoadBestModelAtEnd = getEnvBoolOrDefault("LOAD_BEST_MODEL_AT_END", args.LoadBestModelAtEnd)
	args.MetricForBestModel = getEnvOrDefault("METRIC_FOR_BEST_MODEL", args.MetricForBestModel)
	args.Seed = int64(getEnvIntOrDefault("SEED", int(args.Seed)))
	args.Workers = getEnvIntOrDefault("TRAIN_WORKERS", runtime.NumCPU())
	return args
}

func loadMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:  getEnvBoolOrDefault("MONITOR_ENABLED", true),
		Interval: getEnvDurationOrDefault("MONITOR_INTERVAL", 30*time.Second),
		ProcRoot: getEnvOrDefault("PROC_ROOT", "/proc"),
	}
}

func loadArtifactConfig() ArtifactConfig {
	return ArtifactConfig{
		Bucket:   getEnvOrDefault("ARTIFACT_BUCKET", ""),
		Region:   getEnvOrDefault("S3_REGION", "us-east-1"),
		Endpoint: getEnvOrDefault("S3_ENDPOINT", ""),
		Prefix:   getEnvOrDefault("ARTIFACT_PREFIX", "intenttune"),
	}
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	if len(c.Data.TextColumns) != 2 {
		return errors.ConfigInvalid("TEXT_COLUMNS must name exactly two columns (question, answer)")
	}
	if c.Data.LabelColumn == "" {
		return errors.ConfigInvalid("LABEL_COLUMN is required")
	}
	if c.Data.TestSize <= 0 || c.Data.TestSize >= 1 {
		return errors.ConfigInvalid("TEST_SIZE must be between 0 and 1")
	}
	if c.Model.MaxSeqLength <= 0 {
		return errors.ConfigInvalid("MAX_SEQ_LENGTH must be positive")
	}
	if c.Model.EmbeddingDim <= 0 || c.Model.HashBuckets <= 0 {
		return errors.ConfigInvalid("EMBEDDING_DIM and HASH_BUCKETS must be positive")
	}
	if c.Monitor.Enabled && c.Monitor.Interval <= 0 {
		return errors.ConfigInvalid("MONITOR_INTERVAL must be positive")
	}
	if c.Training.Workers <= 0 {
		c.Training.Workers = 1
	}
	if err := c.Training.Validate(); err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
