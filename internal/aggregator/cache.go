package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petersimagin1985-max/crypto-orderflow/internal/instrumentation"
	"github.com/petersimagin1985-max/crypto-orderflow/internal/models"
)

// SinkConfig holds RedisSink configuration.
type SinkConfig struct {
	RedisURL      string
	RedisPassword string
	MaxRetries    int
	Keys          models.Keys
	HistoryLimit  int64
}

// RedisSink writes live snapshots and closed bars to Redis.
//
// Key layout per instrument/interval (see models.Keys):
//   - delta:{sym}:{tf}:current  hash, overwritten on every trade
//   - delta:{sym}:{tf}:bar      hash, latest closed bar
//   - cvd:{sym}:{tf}:current    string, committed cumulative delta
//   - delta:{sym}:{tf}:history  list of bar JSON, trimmed to the last N
//   - delta:{sym}:{tf}:stream   pub/sub channel
type RedisSink struct {
	client       *redis.Client
	keys         models.Keys
	historyLimit int64
	logger       *slog.Logger
	metrics      *instrumentation.Metrics
}

// NewRedisSink creates a Redis-backed sink. It does not contact Redis: the
// store may come up after the process, and the first Restore surfaces
// unavailability to the caller's retry loop. Transient command failures are
// retried by the client up to cfg.MaxRetries times.
func NewRedisSink(cfg SinkConfig, logger *slog.Logger, metrics *instrumentation.Metrics) (*RedisSink, error) {
	// Parse Redis URL
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if cfg.RedisPassword != "" {
		opt.Password = cfg.RedisPassword
	}
	opt.MaxRetries = cfg.MaxRetries

	return &RedisSink{
		client:       redis.NewClient(opt),
		keys:         cfg.Keys,
		historyLimit: cfg.HistoryLimit,
		logger:       logger.With("component", "redis_sink"),
		metrics:      metrics,
	}, nil
}

// Ping checks that Redis is reachable.
func (s *RedisSink) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// WriteLive overwrites the live snapshot hash.
func (s *RedisSink) WriteLive(ctx context.Context, snapshot *models.LiveSnapshot) error {
	if err := s.client.HSet(ctx, s.keys.Current, models.IntervalBar(*snapshot).Hash()).Err(); err != nil {
		return fmt.Errorf("redis HSET %s failed: %w", s.keys.Current, err)
	}
	return nil
}

// Commit stores a closed bar: latest-bar hash, cumulative scalar and bounded
// history in one MULTI/EXEC, then the broadcast. Broadcast delivery is best
// effort and never fails the commit.
func (s *RedisSink) Commit(ctx context.Context, bar *models.IntervalBar) error {
	startTime := time.Now()

	payload, err := json.Marshal(bar)
	if err != nil {
		return fmt.Errorf("json marshal failed: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.keys.Bar, bar.Hash())
		pipe.Set(ctx, s.keys.CVD, strconv.FormatFloat(bar.CumulativeDelta, 'f', -1, 64), 0)
		pipe.RPush(ctx, s.keys.History, payload)
		pipe.LTrim(ctx, s.keys.History, -s.historyLimit, -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis commit of bar %d failed: %w", bar.Timestamp, err)
	}

	message, err := json.Marshal(models.NewBarMessage(*bar))
	if err != nil {
		return fmt.Errorf("json marshal failed: %w", err)
	}

	if err := s.client.Publish(ctx, s.keys.Channel, message).Err(); err != nil {
		if s.metrics != nil {
			s.metrics.RecordError("sink", "broadcast")
		}
		s.logger.Warn("bar_broadcast_failed", "channel", s.keys.Channel, "ts", bar.Timestamp, "error", err)
	}

	s.logger.Debug("bar_stored",
		"ts", bar.Timestamp,
		"history_key", s.keys.History,
		"size_bytes", len(payload),
		"latency_ms", time.Since(startTime).Milliseconds(),
	)

	return nil
}

// LoadCumulative reads the committed cumulative delta; a missing key is 0.
func (s *RedisSink) LoadCumulative(ctx context.Context) (float64, error) {
	cvd, err := s.client.Get(ctx, s.keys.CVD).Float64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis GET %s failed: %w", s.keys.CVD, err)
	}
	return cvd, nil
}

// Close closes the Redis connection.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
