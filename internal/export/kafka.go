package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/petersimagin1985-max/crypto-orderflow/internal/models"
)

// KafkaConfig holds Kafka producer configuration.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaExporter forwards committed bars to a Kafka topic, keyed by symbol so
// bars of one instrument stay ordered within a partition.
type KafkaExporter struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewKafkaExporter creates an async producer. Delivery errors surface through
// the writer's completion callback and are logged.
func NewKafkaExporter(cfg KafkaConfig, logger *slog.Logger) *KafkaExporter {
	logger = logger.With("component", "kafka_exporter", "topic", cfg.Topic)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("kafka_delivery_failed", "messages", len(messages), "error", err)
			}
		},
	}

	return &KafkaExporter{writer: writer, topic: cfg.Topic, logger: logger}
}

// ExportBar enqueues one bar.
func (e *KafkaExporter) ExportBar(ctx context.Context, bar *models.IntervalBar) error {
	msg, err := barMessage(bar)
	if err != nil {
		return err
	}

	if err := e.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write to %s failed: %w", e.topic, err)
	}
	return nil
}

// Close flushes pending messages.
func (e *KafkaExporter) Close() error {
	return e.writer.Close()
}

func barMessage(bar *models.IntervalBar) (kafka.Message, error) {
	data, err := json.Marshal(bar)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("json marshal failed: %w", err)
	}

	return kafka.Message{
		Key:   []byte(bar.Symbol),
		Value: data,
		Time:  time.Unix(bar.Timestamp, 0),
		Headers: []kafka.Header{
			{Key: "tf_sec", Value: []byte(strconv.FormatInt(bar.IntervalSec, 10))},
		},
	}, nil
}
