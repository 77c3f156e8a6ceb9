package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petersimagin1985-max/crypto-orderflow/internal/cache"
	"github.com/petersimagin1985-max/crypto-orderflow/internal/config"
	"github.com/petersimagin1985-max/crypto-orderflow/internal/handlers"
	"github.com/petersimagin1985-max/crypto-orderflow/internal/klines"
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

	logger.Info("delta_api_starting",
		"port", cfg.Port,
		"timeout_ms", cfg.TimeoutMS,
		"redis_url", cfg.RedisURL,
		"klines_url", cfg.KlinesURL,
	)

	// Initialize Redis cache reader
	cacheReader, err := cache.New(cfg.RedisURL, cfg.RedisPassword, logger)
	if err != nil {
		logger.Error("failed to create cache reader", "error", err)
		os.Exit(1)
	}
	defer cacheReader.Close()

	logger.Info("cache_reader_initialized")

	// Create handlers and router
	router := handlers.NewRouter(
		handlers.NewDeltaHandler(cacheReader, cfg.Symbol, cfg.IntervalSec, logger),
		handlers.NewPriceHistoryHandler(klines.NewClient(cfg.KlinesURL, cfg.KlinesTimeout, logger), logger),
		cfg.Timeout,
		logger,
	)

	// Open streams end when shutdown starts.
	baseCtx, cancelStreams := context.WithCancel(context.Background())
	defer cancelStreams()

	// WriteTimeout stays above the request timeout; SSE clears its own
	// deadline per stream.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Timeout + 5*time.Second,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelStreams)

	// Start HTTP server in goroutine
	go func() {
		logger.Info("delta_api_listening", "port", cfg.Port, "status", "healthy")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	// Graceful shutdown
	logger.Info("shutdown_signal_received", "signal", sig.String())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}

	logger.Info("delta_api_stopped")
}
