package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/pluvia-labs/rainfall-oracle/internal/config"
	"github.com/pluvia-labs/rainfall-oracle/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces ingestion events to the events topic.
// It implements oracle.EventSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured events topic.
// Messages are keyed by location id so all events for one location land on
// one partition, preserving per-location order for downstream consumers.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaEventsTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes and writes one ingestion event.
func (w *Writer) Publish(ctx context.Context, event domain.IngestionEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an IngestionEvent into a Kafka message.
func serializeToMessage(event domain.IngestionEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize ingestion event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.LocationID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "bucket_index", Value: []byte(strconv.FormatInt(event.BucketIndex, 10))},
			{Key: "correction", Value: []byte(strconv.FormatBool(event.Correction))},
			{Key: "ingested_at", Value: []byte(event.IngestedAt.Format(time.RFC3339))},
		},
	}, nil
}
