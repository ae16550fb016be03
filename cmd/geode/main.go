package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/geode/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/geode/internal/adapter/kafka"
	"github.com/couchcryptid/geode/internal/adapter/nominatim"
	"github.com/couchcryptid/geode/internal/adapter/openmeteo"
	"github.com/couchcryptid/geode/internal/config"
	"github.com/couchcryptid/geode/internal/observability"
	"github.com/couchcryptid/geode/internal/pipeline"
	"github.com/couchcryptid/geode/internal/plan"
)

// alwaysReady stands in for the pipeline when Kafka consumption is disabled.
type alwaysReady struct{}

func (alwaysReady) CheckReadiness(context.Context) error { return nil }

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	locator := nominatim.NewCachedLocator(
		nominatim.NewClient(cfg.NominatimURL, cfg.NominatimUserAgent, cfg.NominatimTimeout, metrics, logger),
		cfg.NominatimCacheSize, metrics)
	fields := openmeteo.NewClient(openmeteo.Endpoints{
		Forecast:   cfg.OpenMeteoForecastURL,
		AirQuality: cfg.OpenMeteoAirQualityURL,
		Elevation:  cfg.OpenMeteoElevationURL,
	}, cfg.OpenMeteoTimeout, metrics, logger)
	executor := plan.NewExecutor(locator, fields, plan.Config{
		GridSize:     cfg.GridSize,
		FieldSamples: cfg.FieldSamples,
	}, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
		srv    *httpadapter.Server
	)
	if cfg.PipelineEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		p := pipeline.New(reader, pipeline.NewTransformer(executor, logger), writer, logger, metrics, cfg.BatchSize)
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, executor, logger)

		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	} else {
		logger.Info("kafka pipeline disabled, serving plans over http only")
		srv = httpadapter.NewServer(cfg.HTTPAddr, alwaysReady{}, executor, logger)
	}

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
