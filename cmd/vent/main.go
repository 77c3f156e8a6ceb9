package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/petersimagin1985-max/crypto-orderflow/internal/aggregator"
	"github.com/petersimagin1985-max/crypto-orderflow/internal/config"
	"github.com/petersimagin1985-max/crypto-orderflow/internal/export"
	"github.com/petersimagin1985-max/crypto-orderflow/internal/feed"
	"github.com/petersimagin1985-max/crypto-orderflow/internal/instrumentation"
	"github.com/petersimagin1985-max/crypto-orderflow/internal/models"
)

func main() {
	// Load configuration
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	keys := models.NewKeys(cfg.Symbol, cfg.IntervalSec)

	logger.Info("vent_service_starting",
		"symbol", cfg.Symbol,
		"tf_sec", cfg.IntervalSec,
		"feed_url", cfg.FeedURL,
		"redis_url", cfg.RedisURL,
		"history_key", keys.History,
		"history_limit", cfg.HistoryLimit,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("shutdown_signal_received", "signal", sig.String())
		cancel()
	}()

	// Initialize Prometheus metrics and the /metrics endpoint
	metrics := instrumentation.NewMetrics(prometheus.DefaultRegisterer)
	go serveMetrics(cfg.PrometheusPort, logger)

	// Initialize Redis sink; Redis may still be starting, Restore below
	// waits for it
	sink, err := aggregator.NewRedisSink(aggregator.SinkConfig{
		RedisURL:      cfg.RedisURL,
		RedisPassword: cfg.RedisPassword,
		MaxRetries:    cfg.RedisMaxRetries,
		Keys:          keys,
		HistoryLimit:  cfg.HistoryLimit,
	}, logger, metrics)
	if err != nil {
		logger.Error("failed to create redis sink", "error", err)
		os.Exit(1)
	}
	defer sink.Close()

	logger.Info("redis_sink_initialized")

	// Optional Kafka mirror of committed bars
	var exporters []aggregator.BarExporter
	if len(cfg.KafkaBrokers) > 0 {
		kafkaExporter := export.NewKafkaExporter(export.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		}, logger)
		defer kafkaExporter.Close()

		exporters = append(exporters, kafkaExporter)
		logger.Info("kafka_exporter_initialized", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	// Initialize decoder and aggregation engine
	decoder, err := feed.NewDecoder()
	if err != nil {
		logger.Error("failed to create decoder", "error", err)
		os.Exit(1)
	}

	agg := aggregator.New(cfg.Symbol, cfg.IntervalSec, decoder, sink, logger, metrics, time.Now(), exporters...)

	// Restore cumulative delta before consuming any trade
	if err := agg.RestoreWithRetry(ctx, feed.NewBackoff(cfg.BackoffMin, cfg.BackoffMax)); err != nil {
		logger.Info("vent_service_stopped", "reason", err.Error())
		return
	}

	// Initialize upstream trade feed
	conn := feed.NewConnection(feed.Options{
		URL:               cfg.FeedURL,
		BackoffMin:        cfg.BackoffMin,
		BackoffMax:        cfg.BackoffMax,
		HeartbeatInterval: cfg.HeartbeatInterval,
		HeartbeatTimeout:  cfg.HeartbeatTimeout,
	}, agg.HandleMessage, logger, metrics)

	logger.Info("vent_service_running", "status", "healthy")

	// Run feed until shutdown
	if err := conn.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("feed_error", "error", err)
	}

	logger.Info("vent_service_stopped")
}

func serveMetrics(port int, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("metrics_server_starting", "port", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics_server_failed", "error", err)
	}
}
