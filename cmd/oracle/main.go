package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	httpadapter "github.com/pluvia-labs/rainfall-oracle/internal/adapter/http"
	kafkaadapter "github.com/pluvia-labs/rainfall-oracle/internal/adapter/kafka"
	"github.com/pluvia-labs/rainfall-oracle/internal/adapter/mapbox"
	"github.com/pluvia-labs/rainfall-oracle/internal/config"
	"github.com/pluvia-labs/rainfall-oracle/internal/domain"
	"github.com/pluvia-labs/rainfall-oracle/internal/ingest"
	"github.com/pluvia-labs/rainfall-oracle/internal/observability"
	"github.com/pluvia-labs/rainfall-oracle/internal/oracle"
	"github.com/pluvia-labs/rainfall-oracle/internal/store"
	"github.com/pluvia-labs/rainfall-oracle/internal/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	// Select the persistence backend (feature-flagged via SQLITE_PATH).
	var st oracle.Store
	if cfg.SQLitePath != "" {
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			logger.Error("failed to open sqlite store", "path", cfg.SQLitePath, "error", err)
			os.Exit(1)
		}
		defer db.Close()
		st = db
		logger.Info("sqlite store enabled", "path", cfg.SQLitePath)
	} else {
		st = store.NewMemory()
		logger.Info("in-memory store enabled")
	}

	// Initialize the provider-key resolver (feature-flagged via
	// MAPBOX_ENABLED / MAPBOX_TOKEN).
	var resolver domain.Resolver
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		resolver = mapbox.NewCachedResolver(client, cfg.MapboxCacheSize, metrics)
		logger.Info("mapbox resolver enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox resolver disabled")
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	binder := oracle.NewBinder(st, clock, logger)
	agg := oracle.NewAggregator(st, st, logger, metrics)
	gateway := oracle.NewGateway(binder, agg, writer, clock, logger, metrics, oracle.GatewayConfig{
		MaxPastDrift:   cfg.MaxPastDrift,
		MaxFutureDrift: cfg.MaxFutureDrift,
		MaxRainfallMM:  cfg.MaxHourlyRainfall,
	})
	query := oracle.NewThresholdQuery(binder, agg, metrics)

	loop := ingest.New(reader, gateway, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, loop, binder, gateway, query, resolver, clock, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the consume loop.
	go func() {
		if err := loop.Run(ctx); err != nil {
			logger.Error("ingest loop error", "error", err)
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

	logger.Info("shutdown complete")
}
