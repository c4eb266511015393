package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"customer/config"
	"customer/internal/domain/constants"
	"customer/internal/domain/service"
	mocksusecase "customer/internal/mocks/usecase"
	"customer/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func createTestPushHandler(t *testing.T) (*OrderPushHandler, *mocksusecase.MockOrderEventUsecase) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Env.Env = constants.EnvDevelop

	orderSvc := mocksusecase.NewMockOrderEventUsecase(t)
	h := NewOrderPushHandler(OrderPushHandlerParams{
		Config:   cfg,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		OrderSvc: orderSvc,
	})

	return h, orderSvc
}

// buildPushBody wraps an event envelope in the Pub/Sub push message format.
func buildPushBody(t *testing.T, routingKey string, payload map[string]any, attributes map[string]string) []byte {
	t.Helper()

	envelope := map[string]any{
		"routing_key": routingKey,
		"payload":     payload,
	}
	data, err := json.Marshal(envelope)
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{
		"message": map[string]any{
			"data":       base64.StdEncoding.EncodeToString(data),
			"attributes": attributes,
			"messageId":  "m-1",
		},
		"subscription": "projects/test/subscriptions/order-events",
	})
	require.NoError(t, err)

	return body
}

func doPush(t *testing.T, h *OrderPushHandler, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/push", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, h.HandlePush(e.NewContext(req, rec)))

	return rec
}

func TestOrderPushHandler_HandlePush(t *testing.T) {
	t.Parallel()

	t.Run("acknowledges a processed event", func(t *testing.T) {
		t.Parallel()

		h, orderSvc := createTestPushHandler(t)

		var gotKey string
		var gotEvent *usecase.OrderEvent
		orderSvc.EXPECT().
			HandleOrderEvent(mock.Anything, service.TopicOrderConfirmed, mock.AnythingOfType("*usecase.OrderEvent")).
			Run(func(_ context.Context, routingKey string, event *usecase.OrderEvent) {
				gotKey = routingKey
				gotEvent = event
			}).
			Return(nil)

		body := buildPushBody(t, service.TopicOrderConfirmed, map[string]any{
			"order_id":    int64(55),
			"customer_id": int64(3),
			"created_at":  "2026-08-01T10:30:00Z",
		}, nil)

		rec := doPush(t, h, body)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, service.TopicOrderConfirmed, gotKey)
		require.NotNil(t, gotEvent)
		assert.Equal(t, int64(55), gotEvent.OrderID)
		require.NotNil(t, gotEvent.CustomerID)
		assert.Equal(t, int64(3), *gotEvent.CustomerID)
	})

	t.Run("attributes override the envelope routing key", func(t *testing.T) {
		t.Parallel()

		h, orderSvc := createTestPushHandler(t)

		orderSvc.EXPECT().
			HandleOrderEvent(mock.Anything, service.TopicOrderCancelled, mock.AnythingOfType("*usecase.OrderEvent")).
			Return(nil)

		body := buildPushBody(t, service.TopicOrderConfirmed, map[string]any{
			"order_id": int64(55),
		}, map[string]string{"routing_key": service.TopicOrderCancelled})

		rec := doPush(t, h, body)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("malformed base64 is acknowledged and dropped", func(t *testing.T) {
		t.Parallel()

		h, orderSvc := createTestPushHandler(t)

		body, err := json.Marshal(map[string]any{
			"message": map[string]any{
				"data":      "%%%not-base64%%%",
				"messageId": "m-2",
			},
		})
		require.NoError(t, err)

		rec := doPush(t, h, body)

		assert.Equal(t, http.StatusOK, rec.Code)
		orderSvc.AssertNotCalled(t, "HandleOrderEvent", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed envelope JSON is acknowledged and dropped", func(t *testing.T) {
		t.Parallel()

		h, orderSvc := createTestPushHandler(t)

		body, err := json.Marshal(map[string]any{
			"message": map[string]any{
				"data":      base64.StdEncoding.EncodeToString([]byte("{not json")),
				"messageId": "m-3",
			},
		})
		require.NoError(t, err)

		rec := doPush(t, h, body)

		assert.Equal(t, http.StatusOK, rec.Code)
		orderSvc.AssertNotCalled(t, "HandleOrderEvent", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("message without routing key is acknowledged and dropped", func(t *testing.T) {
		t.Parallel()

		h, orderSvc := createTestPushHandler(t)

		body := buildPushBody(t, "", map[string]any{"order_id": int64(55)}, nil)

		rec := doPush(t, h, body)

		assert.Equal(t, http.StatusOK, rec.Code)
		orderSvc.AssertNotCalled(t, "HandleOrderEvent", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("processing failure asks for redelivery", func(t *testing.T) {
		t.Parallel()

		h, orderSvc := createTestPushHandler(t)

		orderSvc.EXPECT().
			HandleOrderEvent(mock.Anything, service.TopicOrderCreated, mock.AnythingOfType("*usecase.OrderEvent")).
			Return(errors.New("database unavailable"))

		body := buildPushBody(t, service.TopicOrderCreated, map[string]any{
			"order_id":    int64(56),
			"customer_id": int64(4),
		}, nil)

		rec := doPush(t, h, body)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("unparseable request body is rejected", func(t *testing.T) {
		t.Parallel()

		h, orderSvc := createTestPushHandler(t)

		rec := doPush(t, h, []byte("{broken"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		orderSvc.AssertNotCalled(t, "HandleOrderEvent", mock.Anything, mock.Anything, mock.Anything)
	})
}
