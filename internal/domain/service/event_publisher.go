// Package service defines domain-level collaborator contracts that are
// implemented by the infrastructure layer.
package service

import (
	"context"

	"customer/internal/domain/entity"
)

// Routing keys published by this service.
const (
	TopicCustomerCreated = "customer.created"
	TopicCustomerUpdated = "customer.updated"
	TopicCustomerDeleted = "customer.deleted"

	TopicOrderCustomerValidated = "order.customer_validated"
	TopicOrderRejected          = "order.rejected"
)

// Routing keys consumed by the order event reconciler.
const (
	TopicOrderCreated            = "order.created"
	TopicOrderConfirmed          = "order.confirmed"
	TopicOrderCancelled          = "order.cancelled"
	TopicOrderDeleted            = "order.deleted"
	TopicCustomerValidateRequest = "customer.validate_request"
)

// Event is a domain fact published after a state change. Payloads are flat
// JSON-compatible maps; the routing key carries the event type through the
// broker's topic routing.
type Event struct {
	RoutingKey string         `json:"routing_key"`
	RequestID  string         `json:"request_id,omitempty"` // For distributed tracing
	Payload    map[string]any `json:"payload"`
}

// EventPublisher defines the interface for publishing domain events to a
// message broker. Implementations are selected at construction time; a
// no-op implementation stands in when eventing is disabled, so business
// logic never branches on publisher presence.
type EventPublisher interface {
	// Publish sends one event. Delivery is best effort at-least-once;
	// callers decide whether a failure is fatal.
	Publish(ctx context.Context, event *Event) error

	// Close releases any resources held by the publisher
	Close() error
}

// NewCustomerCreatedEvent builds the customer.created fact.
func NewCustomerCreatedEvent(c *entity.Customer) *Event {
	return &Event{
		RoutingKey: TopicCustomerCreated,
		Payload: map[string]any{
			"id":         c.ID,
			"email":      c.Email,
			"first_name": c.FirstName,
			"last_name":  c.LastName,
		},
	}
}

// NewCustomerUpdatedEvent builds the customer.updated fact from the
// post-update snapshot.
func NewCustomerUpdatedEvent(c *entity.Customer) *Event {
	return &Event{
		RoutingKey: TopicCustomerUpdated,
		Payload: map[string]any{
			"id":         c.ID,
			"email":      c.Email,
			"first_name": c.FirstName,
			"last_name":  c.LastName,
			"version":    c.Version,
		},
	}
}

// NewCustomerDeletedEvent builds the customer.deleted fact.
func NewCustomerDeletedEvent(id int64) *Event {
	return &Event{
		RoutingKey: TopicCustomerDeleted,
		Payload: map[string]any{
			"id": id,
		},
	}
}

// NewOrderCustomerValidatedEvent confirms to the order service that the
// referenced customer exists.
func NewOrderCustomerValidatedEvent(orderID, customerID int64) *Event {
	return &Event{
		RoutingKey: TopicOrderCustomerValidated,
		Payload: map[string]any{
			"order_id":    orderID,
			"customer_id": customerID,
		},
	}
}

// NewOrderRejectedEvent tells the order service the order cannot proceed.
func NewOrderRejectedEvent(orderID int64, reason string) *Event {
	return &Event{
		RoutingKey: TopicOrderRejected,
		Payload: map[string]any{
			"order_id": orderID,
			"reason":   reason,
		},
	}
}
