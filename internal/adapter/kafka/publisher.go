package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/humidity-tiles-etl/internal/config"
	"github.com/couchcryptid/humidity-tiles-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// LayerEvent announces that a monthly layer archive is ready to serve.
type LayerEvent struct {
	Layer   string    `json:"layer"`
	Month   string    `json:"month"`
	Archive string    `json:"archive"`
	BuiltAt time.Time `json:"built_at"`
}

// Publisher produces layer-ready events to a Kafka topic.
// It implements pipeline.Notifier.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured layer topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// NotifyLayers publishes one event per archive in a single WriteMessages call.
func (p *Publisher) NotifyLayers(ctx context.Context, archives []domain.TileArchive) error {
	if len(archives) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(archives))
	for i, a := range archives {
		msg, err := serializeToMessage(newLayerEvent(a))
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish layer events: %w", err)
	}
	p.logger.Debug("layer events published", "count", len(msgs), "topic", p.writer.Topic)
	return nil
}

// Close flushes pending messages and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func newLayerEvent(a domain.TileArchive) LayerEvent {
	return LayerEvent{
		Layer:   a.Layer,
		Month:   a.Key.String(),
		Archive: a.Path,
		BuiltAt: a.BuiltAt.UTC(),
	}
}

// serializeToMessage marshals a LayerEvent into a Kafka message keyed by layer.
func serializeToMessage(event LayerEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize layer event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Layer),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "month", Value: []byte(event.Month)},
			{Key: "built_at", Value: []byte(event.BuiltAt.Format(time.RFC3339))},
		},
	}, nil
}
