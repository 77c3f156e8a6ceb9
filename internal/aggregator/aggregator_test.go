package aggregator_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/petersimagin1985-max/crypto-orderflow/internal/aggregator"
	aggregator_mock "github.com/petersimagin1985-max/crypto-orderflow/internal/aggregator/mock"
	"github.com/petersimagin1985-max/crypto-orderflow/internal/feed"
	"github.com/petersimagin1985-max/crypto-orderflow/internal/instrumentation"
	"github.com/petersimagin1985-max/crypto-orderflow/internal/models"
)

type recorder struct {
	lives []models.LiveSnapshot
	bars  []models.IntervalBar
}

func (r *recorder) expectLive(sink *aggregator_mock.MockSink) {
	sink.EXPECT().WriteLive(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, s *models.LiveSnapshot) error {
			r.lives = append(r.lives, *s)
			return nil
		}).AnyTimes()
}

func (r *recorder) expectCommit(sink *aggregator_mock.MockSink, err error) {
	sink.EXPECT().Commit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, b *models.IntervalBar) error {
			r.bars = append(r.bars, *b)
			return err
		}).AnyTimes()
}

func newAggregator(t *testing.T, sink aggregator.Sink, now int64, exporters ...aggregator.BarExporter) (*aggregator.Aggregator, *instrumentation.Metrics) {
	t.Helper()

	decoder, err := feed.NewDecoder()
	require.NoError(t, err)

	m := instrumentation.NewMetrics(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return aggregator.New("btcusdt", 60, decoder, sink, logger, m, time.Unix(now, 0), exporters...), m
}

func trade(qty string, side models.Side, at int64) models.TradeEvent {
	return models.TradeEvent{
		Price:      decimal.RequireFromString("50000"),
		Quantity:   decimal.RequireFromString(qty),
		Side:       side,
		ReceivedAt: time.Unix(at, 0),
	}
}

func TestAggregator_Scenario(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := aggregator_mock.NewMockSink(ctrl)

	rec := &recorder{}
	rec.expectLive(sink)
	rec.expectCommit(sink, nil)
	sink.EXPECT().LoadCumulative(gomock.Any()).Return(0.0, nil)

	agg, m := newAggregator(t, sink, 60)
	ctx := context.Background()
	require.NoError(t, agg.Restore(ctx))

	agg.ProcessTrade(ctx, trade("2", models.SideBuy, 61))
	agg.ProcessTrade(ctx, trade("1", models.SideSell, 70))

	require.Len(t, rec.lives, 2)
	assert.Equal(t, 2.0, rec.lives[0].Delta)
	assert.Equal(t, 1.0, rec.lives[1].Delta)
	assert.Equal(t, 1.0, rec.lives[1].CumulativeDelta)
	assert.Empty(t, rec.bars)

	agg.ProcessTrade(ctx, trade("0.5", models.SideBuy, 120))

	require.Len(t, rec.bars, 1)
	assert.Equal(t, models.IntervalBar{
		Symbol:          "btcusdt",
		IntervalSec:     60,
		Timestamp:       60,
		BuyVolume:       2,
		SellVolume:      1,
		Delta:           1,
		CumulativeDelta: 1,
	}, rec.bars[0])

	require.Len(t, rec.lives, 3)
	last := rec.lives[2]
	assert.Equal(t, int64(120), last.Timestamp)
	assert.Equal(t, 0.5, last.Delta)
	assert.Equal(t, 1.5, last.CumulativeDelta)

	assert.Equal(t, int64(120), agg.LastBucket())
	assert.Equal(t, 1.0, agg.Committed())
	assert.Equal(t, 3.0, testutil.ToFloat64(m.EventsProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BarsCommitted))
}

func TestAggregator_GapsAndEmptyIntervals(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := aggregator_mock.NewMockSink(ctrl)

	rec := &recorder{}
	rec.expectLive(sink)
	rec.expectCommit(sink, nil)

	// Starts inside [0, 60) with no trades there.
	agg, _ := newAggregator(t, sink, 10)
	ctx := context.Background()

	agg.ProcessTrade(ctx, trade("1", models.SideBuy, 65))
	agg.ProcessTrade(ctx, trade("3", models.SideSell, 250))
	agg.ProcessTrade(ctx, trade("1", models.SideBuy, 300))

	require.Len(t, rec.bars, 2)
	assert.Equal(t, int64(60), rec.bars[0].Timestamp)
	assert.Equal(t, int64(240), rec.bars[1].Timestamp)
	assert.Equal(t, 1.0, rec.bars[0].CumulativeDelta)
	assert.Equal(t, -2.0, rec.bars[1].CumulativeDelta)

	for _, bar := range rec.bars {
		assert.Zero(t, bar.Timestamp%bar.IntervalSec)
		assert.NoError(t, models.ValidateBar(&bar))
	}
	assert.Less(t, rec.bars[0].Timestamp, rec.bars[1].Timestamp)
}

func TestAggregator_RestoresCumulativeDelta(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := aggregator_mock.NewMockSink(ctrl)

	rec := &recorder{}
	rec.expectLive(sink)
	rec.expectCommit(sink, nil)
	sink.EXPECT().LoadCumulative(gomock.Any()).Return(100.0, nil)

	agg, _ := newAggregator(t, sink, 60)
	ctx := context.Background()
	require.NoError(t, agg.Restore(ctx))
	assert.Equal(t, 100.0, agg.Committed())

	agg.ProcessTrade(ctx, trade("4", models.SideSell, 90))
	require.Len(t, rec.lives, 1)
	assert.Equal(t, 96.0, rec.lives[0].CumulativeDelta)

	agg.ProcessTrade(ctx, trade("1", models.SideBuy, 125))
	require.Len(t, rec.bars, 1)
	assert.Equal(t, -4.0, rec.bars[0].Delta)
	assert.Equal(t, 96.0, rec.bars[0].CumulativeDelta)
}

func TestAggregator_RestoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := aggregator_mock.NewMockSink(ctrl)
	sink.EXPECT().LoadCumulative(gomock.Any()).Return(0.0, errors.New("connection refused"))

	agg, _ := newAggregator(t, sink, 60)
	err := agg.Restore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAggregator_DropsMalformedMessages(t *testing.T) {
	ctrl := gomock.NewController(t)
	// No expectations: any sink call fails the test.
	sink := aggregator_mock.NewMockSink(ctrl)

	agg, m := newAggregator(t, sink, 60)
	ctx := context.Background()
	at := time.Unix(61, 0)

	agg.HandleMessage(ctx, []byte(`not json`), at)
	agg.HandleMessage(ctx, []byte(`{"p":"1","q":"1","m":"yes"}`), at)
	agg.HandleMessage(ctx, []byte(`{"p":"1","q":"0","m":true}`), at)
	agg.HandleMessage(ctx, []byte(`{"p":"1","m":false}`), at)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesDropped.WithLabelValues(string(feed.ReasonInvalidJSON))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesDropped.WithLabelValues(string(feed.ReasonNonPositiveQty))))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesDropped.WithLabelValues(string(feed.ReasonSchema))))
	assert.Zero(t, testutil.ToFloat64(m.EventsProcessed))
	assert.Equal(t, 0.0, agg.Committed())
}

func TestAggregator_HandleMessage(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := aggregator_mock.NewMockSink(ctrl)

	rec := &recorder{}
	rec.expectLive(sink)

	agg, _ := newAggregator(t, sink, 60)
	agg.HandleMessage(context.Background(), []byte(`{"e":"aggTrade","p":"43000.5","q":"0.25","m":true}`), time.Unix(75, 0))

	require.Len(t, rec.lives, 1)
	assert.Equal(t, 0.25, rec.lives[0].SellVolume)
	assert.Equal(t, -0.25, rec.lives[0].Delta)
	assert.Equal(t, int64(60), rec.lives[0].Timestamp)
}

func TestAggregator_CommitFailureKeepsCumulativeDelta(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := aggregator_mock.NewMockSink(ctrl)
	// No expectations: a bar whose commit failed must not be exported.
	exporter := aggregator_mock.NewMockBarExporter(ctrl)

	rec := &recorder{}
	rec.expectLive(sink)
	rec.expectCommit(sink, errors.New("READONLY"))

	agg, m := newAggregator(t, sink, 60, exporter)
	ctx := context.Background()

	agg.ProcessTrade(ctx, trade("5", models.SideBuy, 61))
	agg.ProcessTrade(ctx, trade("2", models.SideBuy, 121))
	agg.ProcessTrade(ctx, trade("1", models.SideBuy, 181))

	require.Len(t, rec.bars, 2)
	assert.Equal(t, 5.0, rec.bars[0].CumulativeDelta)
	assert.Equal(t, 7.0, rec.bars[1].CumulativeDelta)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("sink", "commit")))
	assert.Zero(t, testutil.ToFloat64(m.BarsCommitted))
}

func TestAggregator_ExportsOnlyCommittedBars(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := aggregator_mock.NewMockSink(ctrl)
	exporter := aggregator_mock.NewMockBarExporter(ctrl)

	rec := &recorder{}
	rec.expectLive(sink)

	gomock.InOrder(
		sink.EXPECT().Commit(gomock.Any(), gomock.Any()).Return(nil),
		sink.EXPECT().Commit(gomock.Any(), gomock.Any()).Return(errors.New("READONLY")),
		sink.EXPECT().Commit(gomock.Any(), gomock.Any()).Return(nil),
	)

	var exported []int64
	exporter.EXPECT().ExportBar(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, b *models.IntervalBar) error {
			exported = append(exported, b.Timestamp)
			return errors.New("broker unavailable")
		}).Times(2)

	agg, m := newAggregator(t, sink, 60, exporter)
	ctx := context.Background()

	agg.ProcessTrade(ctx, trade("1", models.SideBuy, 61))
	agg.ProcessTrade(ctx, trade("1", models.SideBuy, 121))
	agg.ProcessTrade(ctx, trade("1", models.SideBuy, 181))
	agg.ProcessTrade(ctx, trade("1", models.SideBuy, 241))

	assert.Equal(t, []int64{60, 180}, exported)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("exporter", "export_bar")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BarsCommitted))
}

func TestAggregator_LiveWriteFailureIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := aggregator_mock.NewMockSink(ctrl)
	sink.EXPECT().WriteLive(gomock.Any(), gomock.Any()).Return(errors.New("timeout")).Times(2)

	agg, m := newAggregator(t, sink, 60)
	ctx := context.Background()

	agg.ProcessTrade(ctx, trade("1", models.SideBuy, 61))
	agg.ProcessTrade(ctx, trade("1", models.SideBuy, 62))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsProcessed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("sink", "write_live")))
	assert.Zero(t, testutil.ToFloat64(m.LiveWrites))
}
