package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/couchcryptid/censoc-variation-service/internal/adapter/clickhouse"
	httpadapter "github.com/couchcryptid/censoc-variation-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/censoc-variation-service/internal/adapter/kafka"
	redisadapter "github.com/couchcryptid/censoc-variation-service/internal/adapter/redis"
	"github.com/couchcryptid/censoc-variation-service/internal/adapter/stream"
	"github.com/couchcryptid/censoc-variation-service/internal/aggregate"
	"github.com/couchcryptid/censoc-variation-service/internal/config"
	"github.com/couchcryptid/censoc-variation-service/internal/observability"
	"github.com/couchcryptid/censoc-variation-service/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agg := aggregate.New()
	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(cfg.AgeGroups, cfg.DeathYearMin, cfg.DeathYearMax, logger)

	p := pipeline.New(reader, transformer, agg, logger, metrics, cfg.BatchSize)

	reporter, err := pipeline.NewReporter(agg, pipeline.ReportConfig{
		Strata:   cfg.Strata,
		LeapRule: cfg.LeapRule,
		Workers:  cfg.EstimatorWorkers,
		Interval: cfg.ReportInterval,
	}, clockwork.NewRealClock(), logger, metrics)
	if err != nil {
		logger.Error("failed to create reporter", "error", err)
		os.Exit(1)
	}
	reporter.AddSink("kafka", writer)

	// Optional Redis cache: restores the aggregate checkpoint and the last
	// report, then receives new ones.
	var store *redisadapter.Store
	if cfg.RedisAddr != "" {
		store = redisadapter.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.KafkaGroupID, logger)
		if err := restoreFromRedis(ctx, store, agg, reporter, cfg, logger); err != nil {
			logger.Error("redis restore failed", "error", err)
			os.Exit(1)
		}
		reporter.AddSink("redis", store)
		reporter.SetCheckpointer(store)
		logger.Info("redis cache enabled", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	} else {
		logger.Info("redis cache disabled")
	}

	// Optional ClickHouse history.
	var repo *clickhouse.Repository
	if cfg.ClickHouseAddr != "" {
		repo, err = clickhouse.NewRepository(ctx, clickhouse.Config{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		}, logger)
		if err != nil {
			logger.Error("clickhouse connect failed", "error", err)
			os.Exit(1)
		}
		reporter.AddSink("clickhouse", repo)
		logger.Info("clickhouse history enabled", "addr", cfg.ClickHouseAddr, "database", cfg.ClickHouseDatabase)
	} else {
		logger.Info("clickhouse history disabled")
	}

	broadcaster := stream.NewBroadcaster(reporter, logger)
	reporter.AddSink("websocket", broadcaster)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, reporter, logger)
	srv.Handle("GET /v1/variations/stream", broadcaster.Handler())

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	var workers sync.WaitGroup

	// Start ingestion pipeline.
	workers.Add(1)
	go func() {
		defer workers.Done()
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	// Start reporter.
	workers.Add(1)
	go func() {
		defer workers.Done()
		if err := reporter.Run(ctx); err != nil {
			logger.Error("reporter error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	// The pipeline and reporter still use the reader and sinks until they return.
	if err := waitFor(shutdownCtx, &workers); err != nil {
		logger.Error("workers did not stop before shutdown timeout", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}

	// Publish whatever arrived since the last tick.
	if _, _, err := reporter.Generate(shutdownCtx); err != nil {
		logger.Error("final report failed", "error", err)
	}

	if err := broadcaster.Close(); err != nil {
		logger.Error("websocket close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}
	if repo != nil {
		if err := repo.Close(); err != nil {
			logger.Error("clickhouse close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// waitFor blocks until wg is done or ctx ends, whichever comes first.
func waitFor(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func restoreFromRedis(ctx context.Context, store *redisadapter.Store, agg *aggregate.Aggregator, reporter *pipeline.Reporter, cfg *config.Config, logger *slog.Logger) error {
	if err := store.Ping(ctx); err != nil {
		return err
	}

	cells, err := store.LoadCheckpoint(ctx)
	if err != nil {
		return err
	}
	if len(cells) > 0 {
		agg.Restore(cells)
		logger.Info("aggregate checkpoint restored", "cells", len(cells), "records", agg.Records())
	}

	report, err := store.LatestReport(ctx, cfg.Strata)
	if err != nil {
		return err
	}
	if report != nil {
		reporter.Seed(*report)
		logger.Info("cached report restored", "report_id", report.ID, "generated_at", report.GeneratedAt)
	}
	return nil
}
