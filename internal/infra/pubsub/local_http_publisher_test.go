package pubsub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"customer/internal/domain/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLocalHTTPPublisher_Publish(t *testing.T) {
	t.Parallel()

	t.Run("wraps the event in the push message format", func(t *testing.T) {
		t.Parallel()

		var received PubSubPushMessage
		var requestIDHeader string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestIDHeader = r.Header.Get("X-Request-Id")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		publisher := NewLocalHTTPPublisher(srv.URL, newTestLogger())

		event := &service.Event{
			RoutingKey: service.TopicCustomerCreated,
			RequestID:  "req-123",
			Payload:    map[string]any{"id": int64(1), "email": "ada@example.com"},
		}
		require.NoError(t, publisher.Publish(context.Background(), event))

		assert.Equal(t, service.TopicCustomerCreated, received.Message.Attributes["routing_key"])
		assert.Equal(t, "req-123", received.Message.Attributes["request_id"])
		assert.Equal(t, "req-123", requestIDHeader)
		assert.NotEmpty(t, received.Message.MessageID)

		data, err := base64.StdEncoding.DecodeString(received.Message.Data)
		require.NoError(t, err)

		var decoded service.Event
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, service.TopicCustomerCreated, decoded.RoutingKey)
		assert.Equal(t, "ada@example.com", decoded.Payload["email"])
	})

	t.Run("non-success status is an error", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		publisher := NewLocalHTTPPublisher(srv.URL, newTestLogger())

		err := publisher.Publish(context.Background(), &service.Event{
			RoutingKey: service.TopicCustomerDeleted,
			Payload:    map[string]any{"id": int64(2)},
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("unreachable endpoint is an error", func(t *testing.T) {
		t.Parallel()

		publisher := NewLocalHTTPPublisher("http://127.0.0.1:1", newTestLogger())

		err := publisher.Publish(context.Background(), &service.Event{
			RoutingKey: service.TopicCustomerUpdated,
			Payload:    map[string]any{"id": int64(3)},
		})

		require.Error(t, err)
	})
}
