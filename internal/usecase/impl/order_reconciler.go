package impl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	deliverycontext "customer/internal/delivery/context"
	"customer/internal/domain/entity"
	"customer/internal/domain/repository"
	"customer/internal/domain/service"
	"customer/internal/usecase"

	"github.com/pkg/errors"
)

// orderEventReconciler implements the OrderEventUsecase interface. It keeps
// no state of its own: every handler is a reaction function over customer
// rows, with a compensating order.rejected event when a newly created order
// references a customer that does not exist.
type orderEventReconciler struct {
	txManager repository.TransactionManager
	publisher service.EventPublisher
	logger    *slog.Logger
}

// NewOrderEventReconciler is the constructor for orderEventReconciler.
func NewOrderEventReconciler(
	txManager repository.TransactionManager,
	publisher service.EventPublisher,
	logger *slog.Logger,
) usecase.OrderEventUsecase {
	return &orderEventReconciler{
		txManager: txManager,
		publisher: publisher,
		logger:    logger,
	}
}

// HandleOrderEvent dispatches one inbound event by routing key. Business
// outcomes (missing customer, rejection) are handled in place and return
// nil; only infrastructure failures propagate so the transport can retry.
func (rec *orderEventReconciler) HandleOrderEvent(ctx context.Context, routingKey string, event *usecase.OrderEvent) error {
	logger := deliverycontext.GetLoggerOrDefault(ctx, rec.logger)

	switch routingKey {
	case service.TopicOrderCreated:
		return rec.handleOrderCreated(ctx, logger, event)
	case service.TopicOrderConfirmed:
		return rec.handleOrderConfirmed(ctx, logger, event)
	case service.TopicOrderCancelled, service.TopicOrderDeleted:
		return rec.handleOrderDecrement(ctx, logger, routingKey, event)
	case service.TopicOrderRejected:
		// Rejections are terminal; never re-published.
		logger.Info("Order rejected upstream", "orderID", event.OrderID)

		return nil
	case service.TopicCustomerValidateRequest:
		return rec.handleValidateRequest(ctx, logger, event)
	default:
		logger.Warn("Dropping event with unknown routing key", "routingKey", routingKey)

		return nil
	}
}

// handleOrderCreated validates the referenced customer and answers with
// order.customer_validated or order.rejected. This is the only event that
// may produce a rejection; later lifecycle events assume validation already
// passed and only log-and-skip on a now-missing customer.
func (rec *orderEventReconciler) handleOrderCreated(ctx context.Context, logger *slog.Logger, event *usecase.OrderEvent) error {
	if event.CustomerID == nil {
		logger.Warn("Order created without customer_id", "orderID", event.OrderID)
		rec.publish(ctx, logger, service.NewOrderRejectedEvent(event.OrderID, "Missing customer_id"))

		return nil
	}
	customerID := *event.CustomerID

	var customer *entity.Customer

	err := rec.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		customerRepo := repoFactory.CustomerRepo()

		found, err := customerRepo.FindByID(ctx, customerID)
		if err != nil {
			return err
		}

		// Record the order date when the order service supplied one.
		if orderDate := parseOrderDate(event.CreatedAt); orderDate != nil {
			if err := customerRepo.UpdateStatistics(ctx, customerID, found.OrdersCount, orderDate); err != nil {
				return err
			}
		}
		customer = found

		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			logger.Warn("Order references unknown customer",
				"orderID", event.OrderID,
				"customerID", customerID,
			)
			rec.publish(ctx, logger, service.NewOrderRejectedEvent(
				event.OrderID,
				fmt.Sprintf("Customer %d not found", customerID),
			))

			return nil
		}

		return errors.Wrap(err, "failed to process order.created")
	}

	logger.Info("Order customer validated",
		"orderID", event.OrderID,
		"customerID", customer.ID,
	)
	rec.publish(ctx, logger, service.NewOrderCustomerValidatedEvent(event.OrderID, customer.ID))

	return nil
}

// handleOrderConfirmed increments the order counter and stamps the last
// order date. Confirmation never rejects; a missing customer is logged and
// skipped to avoid reject/confirm loops.
func (rec *orderEventReconciler) handleOrderConfirmed(ctx context.Context, logger *slog.Logger, event *usecase.OrderEvent) error {
	if event.CustomerID == nil {
		logger.Warn("Order confirmed without customer_id", "orderID", event.OrderID)

		return nil
	}
	customerID := *event.CustomerID

	err := rec.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		customerRepo := repoFactory.CustomerRepo()

		found, err := customerRepo.FindByID(ctx, customerID)
		if err != nil {
			return err
		}

		orderDate := parseOrderDate(event.CreatedAt)
		if orderDate == nil {
			now := time.Now()
			orderDate = &now
		}

		return customerRepo.UpdateStatistics(ctx, customerID, found.OrdersCount+1, orderDate)
	})
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			logger.Warn("Order confirmed for unknown customer",
				"orderID", event.OrderID,
				"customerID", customerID,
			)

			return nil
		}

		return errors.Wrap(err, "failed to process order.confirmed")
	}

	return nil
}

// handleOrderDecrement reacts to order.cancelled and order.deleted by
// decrementing the order counter. Decrements below zero are no-ops, not
// errors.
func (rec *orderEventReconciler) handleOrderDecrement(ctx context.Context, logger *slog.Logger, routingKey string, event *usecase.OrderEvent) error {
	if event.CustomerID == nil {
		logger.Warn("Order event without customer_id",
			"routingKey", routingKey,
			"orderID", event.OrderID,
		)

		return nil
	}
	customerID := *event.CustomerID

	err := rec.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		customerRepo := repoFactory.CustomerRepo()

		found, err := customerRepo.FindByID(ctx, customerID)
		if err != nil {
			return err
		}

		if found.OrdersCount <= 0 {
			// Counter already at the floor; nothing to undo.
			return nil
		}

		return customerRepo.UpdateStatistics(ctx, customerID, found.OrdersCount-1, found.LastOrderDate)
	})
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			logger.Warn("Order event for unknown customer",
				"routingKey", routingKey,
				"orderID", event.OrderID,
				"customerID", customerID,
			)

			return nil
		}

		return errors.Wrapf(err, "failed to process %s", routingKey)
	}

	return nil
}

// handleValidateRequest answers an existence check without mutating
// anything.
func (rec *orderEventReconciler) handleValidateRequest(ctx context.Context, logger *slog.Logger, event *usecase.OrderEvent) error {
	if event.CustomerID == nil {
		rec.publish(ctx, logger, service.NewOrderRejectedEvent(event.OrderID, "Missing customer_id"))

		return nil
	}
	customerID := *event.CustomerID

	err := rec.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		customerRepo := repoFactory.CustomerRepo()

		_, err := customerRepo.FindByID(ctx, customerID)

		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			rec.publish(ctx, logger, service.NewOrderRejectedEvent(
				event.OrderID,
				fmt.Sprintf("Customer %d not found", customerID),
			))

			return nil
		}

		return errors.Wrap(err, "failed to process customer.validate_request")
	}

	rec.publish(ctx, logger, service.NewOrderCustomerValidatedEvent(event.OrderID, customerID))

	return nil
}

// publish sends a compensating or confirmation event. Failures are logged
// and swallowed; the store commit remains the source of truth.
func (rec *orderEventReconciler) publish(ctx context.Context, logger *slog.Logger, event *service.Event) {
	event.RequestID = deliverycontext.GetRequestIDFromContext(ctx)

	if err := rec.publisher.Publish(ctx, event); err != nil {
		logger.Error("failed to publish order outcome event",
			"routingKey", event.RoutingKey,
			"error", err,
		)
	}
}

// parseOrderDate parses the order date sent by the order service. Returns
// nil when absent or unparseable.
func parseOrderDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}

	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return &parsed
		}
	}

	return nil
}
