package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/robfig/cron/v3"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Model inputs.
	TrainingDataPath   string
	ProductionDataPath string
	ModelPath          string

	// Forest hyperparameters.
	ForestTrees    int
	ForestMaxDepth int
	ForestSeed     uint64
	TopK           int

	// Retraining.
	RetrainSchedule    string
	RetrainMinInterval time.Duration

	// Kafka request pipeline.
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string

	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	trees, err := positiveInt("FOREST_TREES", 100)
	if err != nil {
		return nil, err
	}
	maxDepth, err := nonNegativeInt("FOREST_MAX_DEPTH", 0)
	if err != nil {
		return nil, err
	}
	topK, err := positiveInt("TOP_K", 5)
	if err != nil {
		return nil, err
	}

	seed, err := strconv.ParseUint(sharedcfg.EnvOrDefault("FOREST_SEED", "42"), 10, 64)
	if err != nil || seed == 0 {
		return nil, errors.New("invalid FOREST_SEED: must be a positive integer")
	}

	minInterval, err := time.ParseDuration(sharedcfg.EnvOrDefault("RETRAIN_MIN_INTERVAL", "1m"))
	if err != nil || minInterval < 0 {
		return nil, errors.New("invalid RETRAIN_MIN_INTERVAL")
	}

	schedule := os.Getenv("RETRAIN_SCHEDULE")
	if schedule != "" {
		if _, err := cron.ParseStandard(schedule); err != nil {
			return nil, fmt.Errorf("invalid RETRAIN_SCHEDULE: %w", err)
		}
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		TrainingDataPath:   sharedcfg.EnvOrDefault("TRAINING_DATA_PATH", "data/Crop_recommendation.csv"),
		ProductionDataPath: os.Getenv("PRODUCTION_DATA_PATH"),
		ModelPath:          os.Getenv("MODEL_PATH"),

		ForestTrees:    trees,
		ForestMaxDepth: maxDepth,
		ForestSeed:     seed,
		TopK:           topK,

		RetrainSchedule:    schedule,
		RetrainMinInterval: minInterval,

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "crop-recommendation-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "crop-recommendations"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "crop-advisor"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if cfg.TrainingDataPath == "" && cfg.ModelPath == "" {
		return nil, errors.New("one of TRAINING_DATA_PATH or MODEL_PATH is required")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	}

	return cfg, nil
}

func positiveInt(key string, def int) (int, error) {
	n, err := intEnv(key, def)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func nonNegativeInt(key string, def int) (int, error) {
	n, err := intEnv(key, def)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: must be zero or a positive integer", key)
	}
	return n, nil
}

func intEnv(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
