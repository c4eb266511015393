package impl

import (
	"context"
	"testing"
	"time"

	"customer/internal/domain/entity"
	"customer/internal/domain/repository"
	"customer/internal/domain/service"
	mocksrepo "customer/internal/mocks/repository"
	mocksservice "customer/internal/mocks/service"
	"customer/internal/usecase"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type reconcilerFixtures struct {
	txManager  *mocksrepo.MockTransactionManager
	factory    *mocksrepo.MockRepositoryFactory
	repo       *mocksrepo.MockCustomerRepository
	publisher  *mocksservice.MockEventPublisher
	reconciler usecase.OrderEventUsecase
}

func createTestOrderReconciler(t *testing.T) *reconcilerFixtures {
	t.Helper()

	txManager := mocksrepo.NewMockTransactionManager(t)
	factory := mocksrepo.NewMockRepositoryFactory(t)
	repo := mocksrepo.NewMockCustomerRepository(t)
	publisher := mocksservice.NewMockEventPublisher(t)

	return &reconcilerFixtures{
		txManager:  txManager,
		factory:    factory,
		repo:       repo,
		publisher:  publisher,
		reconciler: NewOrderEventReconciler(txManager, publisher, newDiscardLogger()),
	}
}

func (f *reconcilerFixtures) expectTransaction(ctx context.Context) {
	f.factory.EXPECT().CustomerRepo().Return(f.repo)
	f.txManager.EXPECT().
		Execute(ctx, mock.AnythingOfType("func(repository.RepositoryFactory) error")).
		RunAndReturn(func(_ context.Context, fn func(repository.RepositoryFactory) error) error {
			return fn(f.factory)
		})
}

// capturePublished records the next published event.
func (f *reconcilerFixtures) capturePublished(ctx context.Context, dest **service.Event) {
	f.publisher.EXPECT().
		Publish(ctx, mock.AnythingOfType("*service.Event")).
		Run(func(_ context.Context, event *service.Event) {
			*dest = event
		}).
		Return(nil)
}

func TestOrderReconciler_OrderCreated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("existing customer is validated", func(t *testing.T) {
		t.Parallel()

		f := createTestOrderReconciler(t)
		f.expectTransaction(ctx)

		f.repo.EXPECT().
			FindByID(ctx, int64(3)).
			Return(&entity.Customer{ID: 3, OrdersCount: 2}, nil)
		f.repo.EXPECT().
			UpdateStatistics(ctx, int64(3), 2, mock.AnythingOfType("*time.Time")).
			Return(nil)

		var published *service.Event
		f.capturePublished(ctx, &published)

		err := f.reconciler.HandleOrderEvent(ctx, service.TopicOrderCreated, &usecase.OrderEvent{
			OrderID:    100,
			CustomerID: int64Ptr(3),
			CreatedAt:  "2026-08-01T10:30:00Z",
		})

		require.NoError(t, err)
		require.NotNil(t, published)
		assert.Equal(t, service.TopicOrderCustomerValidated, published.RoutingKey)
		assert.Equal(t, int64(100), published.Payload["order_id"])
		assert.Equal(t, int64(3), published.Payload["customer_id"])
	})

	t.Run("unparseable date skips the statistics write", func(t *testing.T) {
		t.Parallel()

		f := createTestOrderReconciler(t)
		f.expectTransaction(ctx)

		f.repo.EXPECT().
			FindByID(ctx, int64(3)).
			Return(&entity.Customer{ID: 3, OrdersCount: 2}, nil)

		var published *service.Event
		f.capturePublished(ctx, &published)

		err := f.reconciler.HandleOrderEvent(ctx, service.TopicOrderCreated, &usecase.OrderEvent{
			OrderID:    100,
			CustomerID: int64Ptr(3),
			CreatedAt:  "not-a-date",
		})

		require.NoError(t, err)
		f.repo.AssertNotCalled(t, "UpdateStatistics", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		require.NotNil(t, published)
		assert.Equal(t, service.TopicOrderCustomerValidated, published.RoutingKey)
	})

	t.Run("missing customer_id rejects the order", func(t *testing.T) {
		t.Parallel()

		f := createTestOrderReconciler(t)

		var published *service.Event
		f.capturePublished(ctx, &published)

		err := f.reconciler.HandleOrderEvent(ctx, service.TopicOrderCreated, &usecase.OrderEvent{
			OrderID: 100,
		})

		require.NoError(t, err)
		require.NotNil(t, published)
		assert.Equal(t, service.TopicOrderRejected, published.RoutingKey)
		assert.Equal(t, "Missing customer_id", published.Payload["reason"])
		f.txManager.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	})

	t.Run("unknown customer rejects the order", func(t *testing.T) {
		t.Parallel()

		f := createTestOrderReconciler(t)
		f.expectTransaction(ctx)

		f.repo.EXPECT().
			FindByID(ctx, int64(99)).
			Return(nil, repository.ErrCustomerNotFound)

		var published *service.Event
		f.capturePublished(ctx, &published)

		err := f.reconciler.HandleOrderEvent(ctx, service.TopicOrderCreated, &usecase.OrderEvent{
			OrderID:    100,
			CustomerID: int64Ptr(99),
		})

		require.NoError(t, err)
		require.NotNil(t, published)
		assert.Equal(t, service.TopicOrderRejected, published.RoutingKey)
		assert.Equal(t, "Customer 99 not found", published.Payload["reason"])
	})

	t.Run("infrastructure failure propagates for retry", func(t *testing.T) {
		t.Parallel()

		f := createTestOrderReconciler(t)
		f.expectTransaction(ctx)

		f.repo.EXPECT().
			FindByID(ctx, int64(3)).
			Return(nil, pkgerrors.New("connection reset"))

		err := f.reconciler.HandleOrderEvent(ctx, service.TopicOrderCreated, &usecase.OrderEvent{
			OrderID:    100,
			CustomerID: int64Ptr(3),
		})

		require.Error(t, err)
		f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})
}

func TestOrderReconciler_OrderConfirmed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("increments the counter and stamps the event date", func(t *testing.T) {
		t.Parallel()

		f := createTestOrderReconciler(t)
		f.expectTransaction(ctx)

		f.repo.EXPECT().
			FindByID(ctx, int64(3)).
			Return(&entity.Customer{ID: 3, OrdersCount: 4}, nil)

		var stampedDate *time.Time
		f.repo.EXPECT().
			UpdateStatistics(ctx, int64(3), 5, mock.AnythingOfType("*time.Time")).
			Run(func(_ context.Context, _ int64, _ int, lastOrderDate *time.Time) {
				stampedDate = lastOrderDate
			}).
			Return(nil)

		err := f.reconciler.HandleOrderEvent(ctx, service.TopicOrderConfirmed, &usecase.OrderEvent{
			OrderID:    101,
			CustomerID: int64Ptr(3),
			CreatedAt:  "2026-08-02T09:00:00Z",
		})

		require.NoError(t, err)
		require.NotNil(t, stampedDate)
		assert.Equal(t, 2026, stampedDate.Year())
		assert.Equal(t, time.August, stampedDate.Month())
	})

	t.Run("falls back to now when the event carries no date", func(t *testing.T) {
		t.Parallel()

		f := createTestOrderReconciler(t)
		f.expectTransaction(ctx)

		f.repo.EXPECT().
			FindByID(ctx, int64(3)).
			Return(&entity.Customer{ID: 3, OrdersCount: 0}, nil)

		before := time.Now()
		var stampedDate *time.Time
		f.repo.EXPECT().
			UpdateStatistics(ctx, int64(3), 1, mock.AnythingOfType("*time.Time")).
			Run(func(_ context.Context, _ int64, _ int, lastOrderDate *time.Time) {
				stampedDate = lastOrderDate
			}).
			Return(nil)

		err := f.reconciler.HandleOrderEvent(ctx, service.TopicOrderConfirmed, &usecase.OrderEvent{
			OrderID:    101,
			CustomerID: int64Ptr(3),
		})

		require.NoError(t, err)
		require.NotNil(t, stampedDate)
		assert.False(t, stampedDate.Before(before))
	})

	t.Run("unknown customer is logged and skipped without rejection", func(t *testing.T) {
		t.Parallel()

		f := createTestOrderReconciler(t)
		f.expectTransaction(ctx)

		f.repo.EXPECT().
			FindByID(ctx, int64(99)).
			Return(nil, repository.ErrCustomerNotFound)

		err := f.reconciler.HandleOrderEvent(ctx, service.TopicOrderConfirmed, &usecase.OrderEvent{
			OrderID:    101,
			CustomerID: int64Ptr(99),
		})

		require.NoError(t, err)
		f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("missing customer_id is logged and skipped", func(t *testing.T) {
		t.Parallel()

		f := createTestOrderReconciler(t)

		err := f.reconciler.HandleOrderEvent(ctx, service.TopicOrderConfirmed, &usecase.OrderEvent{
			OrderID: 101,
		})

		require.NoError(t, err)
		f.txManager.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	})
}

func TestOrderReconciler_OrderDecrement(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	lastOrder := time.Date(2026, time.July, 15, 12, 0, 0, 0, time.UTC)

	for _, routingKey := range []string{service.TopicOrderCancelled, service.TopicOrderDeleted} {
		t.Run(routingKey+" decrements the counter", func(t *testing.T) {
			t.Parallel()

			f := createTestOrderReconciler(t)
			f.expectTransaction(ctx)

			f.repo.EXPECT().
				FindByID(ctx, int64(3)).
				Return(&entity.Customer{ID: 3, OrdersCount: 2, LastOrderDate: &lastOrder}, nil)
			f.repo.EXPECT().
				UpdateStatistics(ctx, int64(3), 1, &lastOrder).
				Return(nil)

			err := f.reconciler.HandleOrderEvent(ctx, routingKey, &usecase.OrderEvent{
				OrderID:    102,
				CustomerID: int64Ptr(3),
			})

			require.NoError(t, err)
		})
	}

	t.Run("counter at zero is left untouched", func(t *testing.T) {
		t.Parallel()

		f := createTestOrderReconciler(t)
		f.expectTransaction(ctx)

		f.repo.EXPECT().
			FindByID(ctx, int64(3)).
			Return(&entity.Customer{ID: 3, OrdersCount: 0}, nil)

		err := f.reconciler.HandleOrderEvent(ctx, service.TopicOrderCancelled, &usecase.OrderEvent{
			OrderID:    102,
			CustomerID: int64Ptr(3),
		})

		require.NoError(t, err)
		f.repo.AssertNotCalled(t, "UpdateStatistics", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown customer is logged and skipped", func(t *testing.T) {
		t.Parallel()

		f := createTestOrderReconciler(t)
		f.expectTransaction(ctx)

		f.repo.EXPECT().
			FindByID(ctx, int64(99)).
			Return(nil, repository.ErrCustomerNotFound)

		err := f.reconciler.HandleOrderEvent(ctx, service.TopicOrderDeleted, &usecase.OrderEvent{
			OrderID:    102,
			CustomerID: int64Ptr(99),
		})

		require.NoError(t, err)
	})
}

func TestOrderReconciler_OrderRejected(t *testing.T) {
	t.Parallel()

	f := createTestOrderReconciler(t)

	err := f.reconciler.HandleOrderEvent(context.Background(), service.TopicOrderRejected, &usecase.OrderEvent{
		OrderID: 103,
	})

	require.NoError(t, err)
	f.txManager.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestOrderReconciler_ValidateRequest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("existing customer is validated without mutation", func(t *testing.T) {
		t.Parallel()

		f := createTestOrderReconciler(t)
		f.expectTransaction(ctx)

		f.repo.EXPECT().
			FindByID(ctx, int64(3)).
			Return(&entity.Customer{ID: 3}, nil)

		var published *service.Event
		f.capturePublished(ctx, &published)

		err := f.reconciler.HandleOrderEvent(ctx, service.TopicCustomerValidateRequest, &usecase.OrderEvent{
			OrderID:    104,
			CustomerID: int64Ptr(3),
		})

		require.NoError(t, err)
		require.NotNil(t, published)
		assert.Equal(t, service.TopicOrderCustomerValidated, published.RoutingKey)
		f.repo.AssertNotCalled(t, "UpdateStatistics", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown customer rejects", func(t *testing.T) {
		t.Parallel()

		f := createTestOrderReconciler(t)
		f.expectTransaction(ctx)

		f.repo.EXPECT().
			FindByID(ctx, int64(99)).
			Return(nil, repository.ErrCustomerNotFound)

		var published *service.Event
		f.capturePublished(ctx, &published)

		err := f.reconciler.HandleOrderEvent(ctx, service.TopicCustomerValidateRequest, &usecase.OrderEvent{
			OrderID:    104,
			CustomerID: int64Ptr(99),
		})

		require.NoError(t, err)
		require.NotNil(t, published)
		assert.Equal(t, service.TopicOrderRejected, published.RoutingKey)
		assert.Equal(t, "Customer 99 not found", published.Payload["reason"])
	})
}

func TestOrderReconciler_UnknownRoutingKey(t *testing.T) {
	t.Parallel()

	f := createTestOrderReconciler(t)

	err := f.reconciler.HandleOrderEvent(context.Background(), "order.shipped", &usecase.OrderEvent{
		OrderID: 105,
	})

	require.NoError(t, err)
	f.txManager.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestParseOrderDate(t *testing.T) {
	t.Parallel()

	t.Run("supported layouts", func(t *testing.T) {
		t.Parallel()

		for _, raw := range []string{
			"2026-08-01T10:30:00Z",
			"2026-08-01T10:30:00+02:00",
			"2026-08-01T10:30:00",
			"2026-08-01",
		} {
			parsed := parseOrderDate(raw)
			require.NotNil(t, parsed, "expected %q to parse", raw)
			assert.Equal(t, 2026, parsed.Year())
		}
	})

	t.Run("absent or malformed dates yield nil", func(t *testing.T) {
		t.Parallel()

		assert.Nil(t, parseOrderDate(""))
		assert.Nil(t, parseOrderDate("01/08/2026"))
		assert.Nil(t, parseOrderDate("yesterday"))
	})
}
