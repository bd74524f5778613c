package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/polygon-weather-dashboard/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/polygon-weather-dashboard/internal/adapter/kafka"
	"github.com/couchcryptid/polygon-weather-dashboard/internal/adapter/mapview"
	"github.com/couchcryptid/polygon-weather-dashboard/internal/adapter/openmeteo"
	"github.com/couchcryptid/polygon-weather-dashboard/internal/config"
	"github.com/couchcryptid/polygon-weather-dashboard/internal/dashboard"
	"github.com/couchcryptid/polygon-weather-dashboard/internal/domain"
	"github.com/couchcryptid/polygon-weather-dashboard/internal/observability"
	"github.com/couchcryptid/polygon-weather-dashboard/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Weather: archive client behind a breaker with synthetic fallback, then an
	// optional LRU in front.
	client := openmeteo.NewClient(cfg.WeatherBaseURL, cfg.WeatherTimeout, metrics, logger)
	var fetcher domain.WeatherFetcher = openmeteo.NewFetcher(client, openmeteo.NewSynthesizer(), metrics, logger)
	if cfg.WeatherCacheSize > 0 {
		fetcher = openmeteo.NewCachedFetcher(fetcher, cfg.WeatherCacheSize, metrics)
		logger.Info("weather cache enabled", "cache_size", cfg.WeatherCacheSize)
	}

	// Polygon events (feature-flagged via KAFKA_ENABLED) go through an
	// outbox so a slow broker never stalls the dashboard. A zero
	// EVENT_BUFFER_SIZE publishes straight through the writer.
	var publisher dashboard.EventPublisher = dashboard.NopPublisher{}
	var writer *kafkaadapter.Writer
	var outbox *pipeline.Outbox
	switch {
	case cfg.KafkaEnabled && cfg.EventBufferSize == 0:
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("polygon event publishing enabled without outbox", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	case cfg.KafkaEnabled:
		writer = kafkaadapter.NewWriter(cfg, logger)
		outbox = pipeline.NewOutbox(writer, logger, metrics, cfg.EventBufferSize, cfg.EventBatchSize, cfg.EventFlushInterval)
		publisher = outbox
		logger.Info("polygon event publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	default:
		logger.Info("polygon event publishing disabled")
	}

	hub := mapview.NewHub(metrics, logger)
	store := dashboard.NewStore(domain.DefaultDataSources())
	svc := dashboard.NewService(store, hub, fetcher, publisher, logger, metrics)

	api := httpadapter.NewHandler(svc, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, api, hub, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start event outbox. It outlives ctx so events published while the
	// dashboard drains are still delivered.
	outboxCtx, stopOutbox := context.WithCancel(context.Background())
	defer stopOutbox()
	outboxDone := make(chan struct{})
	go func() {
		defer close(outboxDone)
		if outbox == nil {
			return
		}
		if err := outbox.Run(outboxCtx); err != nil {
			logger.Error("event outbox error", "error", err)
		}
	}()

	// Start dashboard service.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := svc.Run(ctx); err != nil {
			logger.Error("dashboard error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	hub.Close()
	<-done

	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Warn("dashboard did not drain before shutdown timeout", "error", err)
	}

	stopOutbox()
	<-outboxDone

	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
