package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petersimagin1985-max/crypto-orderflow/internal/models"
)

// Latest is the most recent closed bar and the live interval. Either may be
// nil before the aggregator has written it.
type Latest struct {
	Bar     *models.IntervalBar  `json:"bar"`
	Current *models.LiveSnapshot `json:"current"`
}

// Reader serves delta data from Redis. It never computes; everything it
// returns was written by the aggregator.
type Reader struct {
	client *redis.Client
	logger *slog.Logger
}

// New creates a new Redis cache reader.
func New(redisURL string, redisPassword string, logger *slog.Logger) (*Reader, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if redisPassword != "" {
		opt.Password = redisPassword
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Reader{
		client: client,
		logger: logger.With("component", "cache_reader"),
	}, nil
}

// Latest fetches the latest closed bar and live snapshot in one round trip.
func (r *Reader) Latest(ctx context.Context, keys models.Keys) (*Latest, error) {
	startTime := time.Now()

	var barCmd, currentCmd *redis.MapStringStringCmd
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		barCmd = pipe.HGetAll(ctx, keys.Bar)
		currentCmd = pipe.HGetAll(ctx, keys.Current)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis HGETALL failed: %w", err)
	}

	latest := &Latest{}

	if bar, ok := r.parseHash(keys.Bar, barCmd.Val()); ok {
		latest.Bar = &bar
	}
	if bar, ok := r.parseHash(keys.Current, currentCmd.Val()); ok {
		current := models.LiveSnapshot(bar)
		latest.Current = &current
	}

	r.logger.Debug("latest_retrieved",
		"bar_key", keys.Bar,
		"has_bar", latest.Bar != nil,
		"has_current", latest.Current != nil,
		"latency_ms", time.Since(startTime).Milliseconds(),
	)

	return latest, nil
}

// History returns the stored bars oldest first. Entries that fail to parse or
// violate bar invariants are skipped.
func (r *Reader) History(ctx context.Context, keys models.Keys) ([]models.IntervalBar, error) {
	items, err := r.client.LRange(ctx, keys.History, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis LRANGE failed: %w", err)
	}

	bars := make([]models.IntervalBar, 0, len(items))
	skipped := 0
	for _, item := range items {
		var bar models.IntervalBar
		if err := json.Unmarshal([]byte(item), &bar); err != nil {
			skipped++
			continue
		}
		if err := models.ValidateBar(&bar); err != nil {
			skipped++
			continue
		}
		bars = append(bars, bar)
	}

	if skipped > 0 {
		r.logger.Warn("history_entries_skipped", "history_key", keys.History, "skipped", skipped)
	}

	return bars, nil
}

// Close closes the Redis connection.
func (r *Reader) Close() error {
	return r.client.Close()
}

func (r *Reader) parseHash(key string, fields map[string]string) (models.IntervalBar, bool) {
	bar, ok, err := models.BarFromHash(fields)
	if err != nil {
		r.logger.Warn("malformed_hash", "key", key, "error", err)
		return models.IntervalBar{}, false
	}
	return bar, ok
}
