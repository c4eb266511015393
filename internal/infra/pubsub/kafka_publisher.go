package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"

	"customer/internal/domain/service"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// kafkaPublisher implements EventPublisher using a Kafka topic. The routing
// key is carried as both the message key (so events for one customer stay
// ordered within a partition) and a header consumers can route on.
type kafkaPublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewKafkaPublisher creates a new Kafka publisher
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) service.EventPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}

	return &kafkaPublisher{
		writer: writer,
		logger: logger,
	}
}

// Publish publishes an event to the Kafka topic
func (p *kafkaPublisher) Publish(ctx context.Context, event *service.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.WithStack(err)
	}

	headers := []kafka.Header{
		{Key: "routing_key", Value: []byte(event.RoutingKey)},
	}
	if event.RequestID != "" {
		headers = append(headers, kafka.Header{Key: "request_id", Value: []byte(event.RequestID)})
	}

	msg := kafka.Message{
		Key:     []byte(event.RoutingKey),
		Value:   data,
		Headers: headers,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, "failed to write kafka message")
	}

	p.logger.Info("[Kafka] Event published successfully",
		slog.String("routing_key", event.RoutingKey),
	)

	return nil
}

// Close flushes pending messages and releases the writer
func (p *kafkaPublisher) Close() error {
	return errors.WithStack(p.writer.Close())
}
