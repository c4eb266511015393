// Package consumer contains the pull-based Kafka delivery for inbound order
// lifecycle events. It is the counterpart of the push-based worker endpoint
// for deployments that run against a Kafka broker instead of Pub/Sub.
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"customer/config"
	"customer/internal/delivery"
	deliverycontext "customer/internal/delivery/context"
	"customer/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
)

// retryBackoff is the pause after a handler failure before the message is
// fetched again.
const retryBackoff = 2 * time.Second

// eventEnvelope mirrors the published message body: routing key, tracing id
// and event payload.
type eventEnvelope struct {
	RoutingKey string          `json:"routing_key"`
	RequestID  string          `json:"request_id"`
	Payload    json.RawMessage `json:"payload"`
}

type kafkaConsumer struct {
	cfg      *config.Config
	logger   *slog.Logger
	orderSvc usecase.OrderEventUsecase
	reader   *kafka.Reader
}

// ConsumerParams holds dependencies for the Kafka consumer
type ConsumerParams struct {
	fx.In

	Lc       fx.Lifecycle
	Cfg      *config.Config
	Logger   *slog.Logger
	OrderSvc usecase.OrderEventUsecase
}

// NewConsumer creates a Kafka consumer-group delivery for order events.
func NewConsumer(params ConsumerParams) (delivery.Delivery, error) {
	cfg := params.Cfg.PubSub
	if cfg == nil || cfg.Kafka == nil || len(cfg.Kafka.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required for the consumer")
	}
	if cfg.Kafka.Topic == "" || cfg.Kafka.GroupID == "" {
		return nil, errors.New("kafka topic and group id are required for the consumer")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topic:   cfg.Kafka.Topic,
	})

	consumer := &kafkaConsumer{
		cfg:      params.Cfg,
		logger:   params.Logger,
		orderSvc: params.OrderSvc,
		reader:   reader,
	}

	params.Lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			params.Logger.Info("Closing Kafka consumer")

			return reader.Close()
		},
	})

	return consumer, nil
}

// Serve fetches and processes messages until the context is cancelled or the
// reader is closed. Commit happens only after the handler succeeds, so a
// crash mid-handling redelivers the message (at-least-once).
func (c *kafkaConsumer) Serve(ctx context.Context) error {
	c.logger.Info("Starting Kafka consumer",
		slog.String("topic", c.cfg.PubSub.Kafka.Topic),
		slog.String("groupID", c.cfg.PubSub.Kafka.GroupID),
	)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}

			return errors.Wrap(err, "failed to fetch kafka message")
		}

		if c.handleMessage(ctx, &msg) {
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Error("Failed to commit kafka message",
					slog.Int64("offset", msg.Offset),
					slog.Any("error", err),
				)
			}

			continue
		}

		// Handler hit an infrastructure failure; leave the offset
		// uncommitted and back off before the next fetch.
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(retryBackoff):
		}
	}
}

// handleMessage processes one message and reports whether it should be
// committed. Malformed messages are logged and committed so they are
// dropped instead of poisoning the partition.
func (c *kafkaConsumer) handleMessage(ctx context.Context, msg *kafka.Message) bool {
	var envelope eventEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		c.logger.Error("[Consumer] Failed to parse event envelope",
			slog.Int64("offset", msg.Offset),
			slog.Any("error", err),
		)

		return true
	}

	routingKey := headerValue(msg, "routing_key")
	if routingKey == "" {
		routingKey = envelope.RoutingKey
	}
	if routingKey == "" {
		c.logger.Error("[Consumer] Message carries no routing key",
			slog.Int64("offset", msg.Offset),
		)

		return true
	}

	var event usecase.OrderEvent
	if len(envelope.Payload) > 0 {
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			c.logger.Error("[Consumer] Failed to parse order event payload",
				slog.String("routing_key", routingKey),
				slog.Any("error", err),
			)

			return true
		}
	}

	requestID := headerValue(msg, "request_id")
	if requestID == "" {
		requestID = envelope.RequestID
	}
	if requestID == "" {
		requestID = uuid.New().String()
	}

	reqLogger := c.logger.With(slog.String("request_id", requestID))
	msgCtx := deliverycontext.WithRequestID(ctx, requestID)
	msgCtx = deliverycontext.WithLogger(msgCtx, reqLogger)

	reqLogger.Info("[Consumer] Processing order event",
		slog.String("routing_key", routingKey),
		slog.Int64("order_id", event.OrderID),
	)

	if err := c.orderSvc.HandleOrderEvent(msgCtx, routingKey, &event); err != nil {
		reqLogger.Error("[Consumer] Failed to process order event",
			slog.String("routing_key", routingKey),
			slog.Int64("order_id", event.OrderID),
			slog.Any("error", err),
		)

		return false
	}

	return true
}

func headerValue(msg *kafka.Message, key string) string {
	for _, header := range msg.Headers {
		if header.Key == key {
			return string(header.Value)
		}
	}

	return ""
}
