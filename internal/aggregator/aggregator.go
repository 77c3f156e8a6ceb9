package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/petersimagin1985-max/crypto-orderflow/internal/feed"
	"github.com/petersimagin1985-max/crypto-orderflow/internal/instrumentation"
	"github.com/petersimagin1985-max/crypto-orderflow/internal/metrics"
	"github.com/petersimagin1985-max/crypto-orderflow/internal/models"
)

//go:generate mockgen -source aggregator.go -destination=mock/sink_mock.go -package=aggregator_mock

// Sink persists live snapshots and closed bars.
type Sink interface {
	WriteLive(ctx context.Context, snapshot *models.LiveSnapshot) error
	Commit(ctx context.Context, bar *models.IntervalBar) error
	LoadCumulative(ctx context.Context) (float64, error)
}

// BarExporter receives every bar the Sink committed successfully, best
// effort. Bars whose commit failed are not exported.
type BarExporter interface {
	ExportBar(ctx context.Context, bar *models.IntervalBar) error
}

// Aggregator is the single consumer of the trade stream. It buckets trades
// into fixed intervals, finalizes each interval once, and keeps the
// cumulative volume delta continuous across restarts.
//
// Not safe for concurrent use: the feed read loop is its only caller.
type Aggregator struct {
	symbol      string
	intervalSec int64

	decoder     *feed.Decoder
	accumulator *metrics.DeltaAccumulator
	lastBucket  int64

	sink      Sink
	exporters []BarExporter
	logger    *slog.Logger
	metrics   *instrumentation.Metrics
}

// New creates an aggregator whose first open interval contains now.
// metrics may be nil.
func New(symbol string, intervalSec int64, decoder *feed.Decoder, sink Sink, logger *slog.Logger, m *instrumentation.Metrics, now time.Time, exporters ...BarExporter) *Aggregator {
	return &Aggregator{
		symbol:      symbol,
		intervalSec: intervalSec,
		decoder:     decoder,
		accumulator: metrics.NewDeltaAccumulator(0),
		lastBucket:  metrics.BucketStart(now.Unix(), intervalSec),
		sink:        sink,
		exporters:   exporters,
		logger:      logger.With("component", "aggregator", "symbol", symbol, "tf_sec", intervalSec),
		metrics:     m,
	}
}

// Restore seeds the accumulator with the committed cumulative delta. It must
// run before the first event.
func (a *Aggregator) Restore(ctx context.Context) error {
	committed, err := a.sink.LoadCumulative(ctx)
	if err != nil {
		return fmt.Errorf("load cumulative delta: %w", err)
	}

	a.accumulator = metrics.NewDeltaAccumulator(committed)
	a.logger.Info("cumulative_delta_restored", "cvd", committed, "bucket", a.lastBucket)

	return nil
}

// RestoreWithRetry calls Restore until it succeeds or ctx is cancelled,
// waiting backoff.Next() between attempts. A store that is down at startup
// is never fatal.
func (a *Aggregator) RestoreWithRetry(ctx context.Context, backoff *feed.Backoff) error {
	for {
		err := a.Restore(ctx)
		if err == nil {
			return nil
		}

		delay := backoff.Next()
		if a.metrics != nil {
			a.metrics.RecordError("sink", "restore")
		}
		a.logger.Warn("restore_failed", "error", err, "retry_in_sec", delay.Seconds())

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// HandleMessage decodes and processes one raw feed message. Malformed
// messages are counted and dropped without touching the accumulator.
func (a *Aggregator) HandleMessage(ctx context.Context, raw []byte, receivedAt time.Time) {
	res := a.decoder.Decode(raw, receivedAt)
	if !res.OK() {
		if a.metrics != nil {
			a.metrics.RecordDropped(string(res.Reason))
		}
		a.logger.Debug("message_dropped", "reason", res.Reason, "error", res.Err)
		return
	}

	a.ProcessTrade(ctx, res.Trade)
}

// ProcessTrade closes the previous interval if the trade's receipt time has
// moved past it, applies the trade, and publishes the live snapshot.
func (a *Aggregator) ProcessTrade(ctx context.Context, trade models.TradeEvent) {
	current := metrics.BucketStart(trade.ReceivedAt.Unix(), a.intervalSec)
	if current > a.lastBucket {
		a.rollover(ctx, current)
	}

	a.accumulator.Apply(trade)
	if a.metrics != nil {
		a.metrics.RecordEventProcessed()
	}

	snapshot := a.accumulator.Snapshot(a.symbol, a.intervalSec, a.lastBucket)
	if err := a.sink.WriteLive(ctx, &snapshot); err != nil {
		if a.metrics != nil {
			a.metrics.RecordError("sink", "write_live")
		}
		a.logger.Warn("live_write_failed", "bucket", a.lastBucket, "error", err)
		return
	}

	if a.metrics != nil {
		a.metrics.RecordLiveWrite()
	}
}

// LastBucket returns the start of the open interval.
func (a *Aggregator) LastBucket() int64 {
	return a.lastBucket
}

// Committed returns the cumulative delta of all finalized intervals.
func (a *Aggregator) Committed() float64 {
	return a.accumulator.Committed()
}

// rollover finalizes the open interval, stamped with its own start, and
// moves on to current. An interval without trades emits nothing.
func (a *Aggregator) rollover(ctx context.Context, current int64) {
	closed := a.lastBucket
	a.lastBucket = current

	if a.accumulator.Trades() == 0 {
		a.logger.Debug("interval_without_trades", "bucket", closed)
		return
	}

	bar := a.accumulator.Finalize(a.symbol, a.intervalSec, closed)

	startTime := time.Now()
	if err := a.sink.Commit(ctx, &bar); err != nil {
		// The in-memory cumulative delta stays authoritative; the next
		// successful commit overwrites the durable scalar.
		if a.metrics != nil {
			a.metrics.RecordError("sink", "commit")
		}
		a.logger.Error("bar_commit_failed", "ts", bar.Timestamp, "cvd", bar.CumulativeDelta, "error", err)
		return
	}

	if a.metrics != nil {
		a.metrics.RecordCommit(time.Since(startTime), bar.CumulativeDelta)
	}
	a.logger.Info("bar_committed",
		"ts", bar.Timestamp,
		"ask_vol", bar.BuyVolume,
		"bid_vol", bar.SellVolume,
		"delta", bar.Delta,
		"cvd", bar.CumulativeDelta,
	)

	// Mirrors only see bars that are also in the store.
	for _, exporter := range a.exporters {
		if err := exporter.ExportBar(ctx, &bar); err != nil {
			if a.metrics != nil {
				a.metrics.RecordError("exporter", "export_bar")
			}
			a.logger.Warn("bar_export_failed", "ts", bar.Timestamp, "error", err)
		}
	}
}
