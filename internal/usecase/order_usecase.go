package usecase

import (
	"context"
)

// OrderEvent is the decoded payload of an inbound order lifecycle event.
// CustomerID is a pointer because upstream systems sometimes omit it; the
// reconciler treats a missing id as a rejection or a skip depending on the
// event type.
type OrderEvent struct {
	OrderID    int64  `json:"order_id"`
	CustomerID *int64 `json:"customer_id"`

	// CreatedAt is the order date as sent by the order service, RFC 3339.
	// Unparseable or absent dates degrade gracefully; they never fail the
	// event.
	CreatedAt string `json:"created_at"`
}

// OrderEventUsecase reacts to inbound order lifecycle events by adjusting
// customer derived statistics and answering validation requests.
type OrderEventUsecase interface {
	// HandleOrderEvent dispatches one event by routing key. Unknown routing
	// keys are logged and dropped. A returned error means the delivery
	// should be retried by the transport.
	HandleOrderEvent(ctx context.Context, routingKey string, event *OrderEvent) error
}
