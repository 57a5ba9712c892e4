package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	httpadapter "github.com/couchcryptid/hydro-telegram-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/hydro-telegram-etl/internal/adapter/kafka"
	"github.com/couchcryptid/hydro-telegram-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/hydro-telegram-etl/internal/adapter/stationcache"
	"github.com/couchcryptid/hydro-telegram-etl/internal/config"
	"github.com/couchcryptid/hydro-telegram-etl/internal/kn15"
	"github.com/couchcryptid/hydro-telegram-etl/internal/observability"
	"github.com/couchcryptid/hydro-telegram-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	store, err := sqlite.Open(cfg.StationDBPath, logger)
	if err != nil {
		logger.Error("failed to open station database", "error", err)
		os.Exit(1)
	}
	stations := stationcache.New(store, cfg.StationCacheSize, metrics)
	logger.Info("station directory ready", "path", cfg.StationDBPath, "cache_size", cfg.StationCacheSize)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(kn15.NewParser(stations), logger, metrics)
	loader := pipeline.NewFanoutLoader(writer, store)

	p := pipeline.New(reader, transformer, loader, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, map[string]httpadapter.ReadinessChecker{
		"pipeline": p,
		"stations": httpadapter.CheckFunc(store.Ping),
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start telegram pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	if err := store.Close(); err != nil {
		logger.Error("station database close error", "error", err)
	}

	logger.Info("shutdown complete")
}
