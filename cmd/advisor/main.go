package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/crop-advisor-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/crop-advisor-service/internal/adapter/kafka"
	"github.com/couchcryptid/crop-advisor-service/internal/advisor"
	"github.com/couchcryptid/crop-advisor-service/internal/config"
	"github.com/couchcryptid/crop-advisor-service/internal/dataset"
	"github.com/couchcryptid/crop-advisor-service/internal/observability"
	"github.com/couchcryptid/crop-advisor-service/internal/pipeline"
	"github.com/couchcryptid/crop-advisor-service/internal/region"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// readiness is ready when every member is.
type readiness []sharedobs.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Region filtering is enabled only when production history is configured.
	var regions region.Source
	if cfg.ProductionDataPath != "" {
		records, err := dataset.LoadProductionCSV(cfg.ProductionDataPath)
		if err != nil {
			logger.Error("failed to load production history", "path", cfg.ProductionDataPath, "error", err)
			os.Exit(1)
		}
		idx := region.NewIndex(records)
		metrics.RegionsIndexed.Set(float64(idx.Len()))
		regions = idx
		logger.Info("region filter enabled", "states", len(idx.States()), "districts", idx.Len())
	} else {
		logger.Info("region filter disabled")
	}

	svc := advisor.New(advisor.OptionsFromConfig(cfg), regions, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.ModelPath != "" {
		_, err = svc.LoadArtifact(cfg.ModelPath)
	} else {
		_, err = svc.Train(ctx)
	}
	if err != nil {
		logger.Error("failed to initialise model", "error", err)
		os.Exit(1)
	}

	if cfg.RetrainSchedule != "" {
		stopSchedule, err := svc.StartSchedule(cfg.RetrainSchedule)
		if err != nil {
			logger.Error("failed to start retrain schedule", "error", err)
			os.Exit(1)
		}
		defer stopSchedule()
	}

	checks := readiness{svc}

	// Start the Kafka request pipeline (feature-flagged via KAFKA_ENABLED).
	var reader *kafkaadapter.Reader
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		transformer := pipeline.NewTransformer(svc, nil, logger)
		p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)
		checks = append(checks, p)

		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	} else {
		logger.Info("kafka pipeline disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, checks, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
