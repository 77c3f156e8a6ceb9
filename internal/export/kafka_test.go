package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petersimagin1985-max/crypto-orderflow/internal/models"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testExporter(w *fakeWriter) *KafkaExporter {
	return &KafkaExporter{
		writer: w,
		topic:  "delta-bars",
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestKafkaExporter_ExportBar(t *testing.T) {
	w := &fakeWriter{}
	exporter := testExporter(w)

	bar := &models.IntervalBar{
		Symbol:          "btcusdt",
		IntervalSec:     60,
		Timestamp:       1_700_000_040,
		BuyVolume:       3,
		SellVolume:      1,
		Delta:           2,
		CumulativeDelta: 42,
	}
	require.NoError(t, exporter.ExportBar(context.Background(), bar))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, []byte("btcusdt"), msg.Key)
	assert.Equal(t, time.Unix(1_700_000_040, 0), msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "tf_sec", msg.Headers[0].Key)
	assert.Equal(t, []byte("60"), msg.Headers[0].Value)

	var decoded models.IntervalBar
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, *bar, decoded)

	require.NoError(t, exporter.Close())
	assert.True(t, w.closed)
}

func TestKafkaExporter_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unavailable")}
	exporter := testExporter(w)

	err := exporter.ExportBar(context.Background(), &models.IntervalBar{Symbol: "btcusdt", IntervalSec: 60})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delta-bars")
	assert.Contains(t, err.Error(), "broker unavailable")
}

func TestNewKafkaExporter(t *testing.T) {
	exporter := NewKafkaExporter(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "delta-bars"}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	writer, ok := exporter.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "delta-bars", writer.Topic)
	assert.True(t, writer.Async)
	require.NoError(t, exporter.Close())
}
