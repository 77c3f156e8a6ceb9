package instrumentation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the aggregation engine.
type Metrics struct {
	// Feed
	EventsProcessed prometheus.Counter
	MessagesDropped *prometheus.CounterVec
	Reconnects      prometheus.Counter
	FeedState       prometheus.Gauge
	BackoffSeconds  prometheus.Gauge

	// Persistence
	LiveWrites      prometheus.Counter
	BarsCommitted   prometheus.Counter
	CommitLatencyMs prometheus.Histogram
	CumulativeDelta prometheus.Gauge

	ErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "orderflow_events_processed_total",
			Help: "Total number of trade events applied to the accumulator",
		}),

		// Malformed upstream messages never reach the accumulator; this is
		// the only signal that real volume was skipped.
		MessagesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orderflow_messages_dropped_total",
			Help: "Total number of upstream messages dropped by decode failure reason",
		}, []string{"reason"}),

		Reconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "orderflow_feed_reconnects_total",
			Help: "Total number of failed feed connections followed by a backoff",
		}),

		FeedState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "orderflow_feed_state",
			Help: "Feed connection state: 0 disconnected, 1 connecting, 2 connected",
		}),

		BackoffSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "orderflow_feed_backoff_seconds",
			Help: "Delay before the next reconnect attempt",
		}),

		LiveWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "orderflow_live_writes_total",
			Help: "Total number of live snapshot writes",
		}),

		BarsCommitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "orderflow_bars_committed_total",
			Help: "Total number of closed interval bars committed",
		}),

		CommitLatencyMs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "orderflow_commit_latency_ms",
			Help:    "Time to commit a closed bar in milliseconds",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000},
		}),

		CumulativeDelta: factory.NewGauge(prometheus.GaugeOpts{
			Name: "orderflow_cumulative_delta",
			Help: "Committed cumulative volume delta",
		}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orderflow_errors_total",
			Help: "Total number of errors by component and type",
		}, []string{"component", "error_type"}),
	}
}

// RecordEventProcessed increments the event counter.
func (m *Metrics) RecordEventProcessed() {
	m.EventsProcessed.Inc()
}

// RecordDropped counts a dropped upstream message.
func (m *Metrics) RecordDropped(reason string) {
	m.MessagesDropped.WithLabelValues(reason).Inc()
}

// RecordReconnect counts a failed connection and the delay before retrying.
func (m *Metrics) RecordReconnect(delay time.Duration) {
	m.Reconnects.Inc()
	m.BackoffSeconds.Set(delay.Seconds())
}

// RecordFeedState records the connection state.
func (m *Metrics) RecordFeedState(state int) {
	m.FeedState.Set(float64(state))
}

// RecordLiveWrite counts a live snapshot write.
func (m *Metrics) RecordLiveWrite() {
	m.LiveWrites.Inc()
}

// RecordCommit records a committed bar.
func (m *Metrics) RecordCommit(latency time.Duration, cumulative float64) {
	m.BarsCommitted.Inc()
	m.CommitLatencyMs.Observe(float64(latency.Milliseconds()))
	m.CumulativeDelta.Set(cumulative)
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
