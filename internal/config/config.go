package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the configuration shared by the aggregation engine and the
// serving layer. It is built once in main and passed to constructors.
type Config struct {
	// Instrument
	Symbol      string `env:"SYMBOL" envDefault:"btcusdt"`
	IntervalSec int64  `env:"TF_SEC" envDefault:"60"`

	// Upstream trade feed
	FeedURL              string `env:"FEED_URL"`
	BackoffMinSec        int    `env:"BACKOFF_MIN_SEC" envDefault:"1"`
	BackoffMaxSec        int    `env:"BACKOFF_MAX_SEC" envDefault:"30"`
	HeartbeatIntervalSec int    `env:"HEARTBEAT_INTERVAL_SEC" envDefault:"15"`
	HeartbeatTimeoutSec  int    `env:"HEARTBEAT_TIMEOUT_SEC" envDefault:"15"`

	// Redis
	RedisURL        string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	RedisMaxRetries int    `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	HistoryLimit    int64  `env:"HISTORY_LIMIT" envDefault:"500"`

	// Kafka bar mirror, disabled when no brokers are set
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"delta-bars"`

	// Serving layer
	Port            int    `env:"PORT" envDefault:"8088"`
	TimeoutMS       int    `env:"TIMEOUT_MS" envDefault:"10000"`
	KlinesURL       string `env:"KLINES_URL" envDefault:"https://api.binance.com/api/v3/klines"`
	KlinesTimeoutMS int    `env:"KLINES_TIMEOUT_MS" envDefault:"8000"`

	// Computed durations (not from env)
	BackoffMin        time.Duration `env:"-"`
	BackoffMax        time.Duration `env:"-"`
	HeartbeatInterval time.Duration `env:"-"`
	HeartbeatTimeout  time.Duration `env:"-"`
	Timeout           time.Duration `env:"-"`
	KlinesTimeout     time.Duration `env:"-"`

	// Observability
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	PrometheusPort int    `env:"PROMETHEUS_PORT" envDefault:"9091"`
}

// LoadFromEnv loads configuration from environment variables. A .env file in
// the working directory is applied first when present.
func LoadFromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: ""}); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	cfg.Symbol = strings.ToLower(strings.TrimSpace(cfg.Symbol))
	for i := range cfg.KafkaBrokers {
		cfg.KafkaBrokers[i] = strings.TrimSpace(cfg.KafkaBrokers[i])
	}

	if cfg.FeedURL == "" {
		cfg.FeedURL = fmt.Sprintf("wss://fstream.binance.com/ws/%s@aggTrade", cfg.Symbol)
	}

	// Convert seconds/milliseconds to time.Duration
	cfg.BackoffMin = time.Duration(cfg.BackoffMinSec) * time.Second
	cfg.BackoffMax = time.Duration(cfg.BackoffMaxSec) * time.Second
	cfg.HeartbeatInterval = time.Duration(cfg.HeartbeatIntervalSec) * time.Second
	cfg.HeartbeatTimeout = time.Duration(cfg.HeartbeatTimeoutSec) * time.Second
	cfg.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	cfg.KlinesTimeout = time.Duration(cfg.KlinesTimeoutMS) * time.Millisecond

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol must be configured")
	}

	if c.IntervalSec <= 0 {
		return fmt.Errorf("interval must be positive, got %ds", c.IntervalSec)
	}

	if c.HistoryLimit < 1 {
		return fmt.Errorf("history limit must be at least 1, got %d", c.HistoryLimit)
	}

	if c.BackoffMin < time.Second/10 {
		return fmt.Errorf("backoff floor must be at least 100ms")
	}

	if c.BackoffMax < c.BackoffMin {
		return fmt.Errorf("backoff ceiling %s is below floor %s", c.BackoffMax, c.BackoffMin)
	}

	if c.HeartbeatInterval < time.Second || c.HeartbeatTimeout < time.Second {
		return fmt.Errorf("heartbeat interval and timeout must be at least 1 second")
	}

	if c.RedisMaxRetries < 0 {
		return fmt.Errorf("redis max retries must be non-negative")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.TimeoutMS < 1 || c.KlinesTimeoutMS < 1 {
		return fmt.Errorf("timeouts must be at least 1ms")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	return nil
}

// SlogLevel maps LogLevel onto slog levels.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
