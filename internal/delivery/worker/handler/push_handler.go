package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"customer/config"
	deliverycontext "customer/internal/delivery/context"
	"customer/internal/domain/constants"
	"customer/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"google.golang.org/api/idtoken"
)

// PubSubMessage represents the structure of a Pub/Sub push message
type PubSubMessage struct {
	Message struct {
		Data        string            `json:"data"`
		Attributes  map[string]string `json:"attributes,omitempty"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// eventEnvelope is the decoded message body: the routing key plus the
// event-specific payload.
type eventEnvelope struct {
	RoutingKey string          `json:"routing_key"`
	RequestID  string          `json:"request_id"`
	Payload    json.RawMessage `json:"payload"`
}

// OrderPushHandler handles Pub/Sub push deliveries of order lifecycle events
type OrderPushHandler struct {
	verifyPushAuth bool
	logger         *slog.Logger
	orderSvc       usecase.OrderEventUsecase
}

// OrderPushHandlerParams holds dependencies for the OrderPushHandler
type OrderPushHandlerParams struct {
	fx.In

	Config   *config.Config
	Logger   *slog.Logger
	OrderSvc usecase.OrderEventUsecase
}

// NewOrderPushHandler creates a new Pub/Sub push handler
func NewOrderPushHandler(params OrderPushHandlerParams) *OrderPushHandler {
	// Determine if we need to verify push auth based on config
	verifyPushAuth := params.Config.PubSub != nil &&
		params.Config.PubSub.Provider == constants.PubSubProviderGoogle &&
		params.Config.Env.Env != constants.EnvDevelop

	return &OrderPushHandler{
		verifyPushAuth: verifyPushAuth,
		logger:         params.Logger,
		orderSvc:       params.OrderSvc,
	}
}

// HandlePush handles incoming Pub/Sub push messages. Delivery is
// at-least-once: a 2xx acknowledges the message, anything else triggers a
// redelivery. Malformed bodies are logged and acknowledged so they are
// dropped instead of retried forever.
func (h *OrderPushHandler) HandlePush(c echo.Context) error {
	ctx := c.Request().Context()

	// Verify Pub/Sub token in production for Google provider
	if h.verifyPushAuth {
		if err := verifyPubSubToken(c.Request()); err != nil {
			h.logger.Warn("[Worker] Invalid Pub/Sub token", slog.Any("error", err))

			return c.NoContent(http.StatusUnauthorized)
		}
	}

	// Parse Pub/Sub message
	var pushMsg PubSubMessage
	if err := c.Bind(&pushMsg); err != nil {
		h.logger.Error("[Worker] Failed to parse push message", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	// Decode base64 message data; malformed data is dropped, not retried
	data, err := base64.StdEncoding.DecodeString(pushMsg.Message.Data)
	if err != nil {
		h.logger.Error("[Worker] Failed to decode message data", slog.Any("error", err))

		return c.NoContent(http.StatusOK)
	}

	var envelope eventEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		h.logger.Error("[Worker] Failed to parse event envelope", slog.Any("error", err))

		return c.NoContent(http.StatusOK)
	}

	// Routing key priority: message attributes > envelope field
	routingKey := pushMsg.Message.Attributes["routing_key"]
	if routingKey == "" {
		routingKey = envelope.RoutingKey
	}
	if routingKey == "" {
		h.logger.Error("[Worker] Message carries no routing key",
			slog.String("message_id", pushMsg.Message.MessageID),
		)

		return c.NoContent(http.StatusOK)
	}

	var event usecase.OrderEvent
	if len(envelope.Payload) > 0 {
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			h.logger.Error("[Worker] Failed to parse order event payload",
				slog.String("routing_key", routingKey),
				slog.Any("error", err),
			)

			return c.NoContent(http.StatusOK)
		}
	}

	// Extract request_id for distributed tracing
	requestID := h.extractRequestID(ctx, &pushMsg, &envelope)

	// Create request-scoped logger with request_id
	reqLogger := h.logger.With(slog.String("request_id", requestID))

	// Update context with request_id and logger
	ctx = deliverycontext.WithRequestID(ctx, requestID)
	ctx = deliverycontext.WithLogger(ctx, reqLogger)

	reqLogger.Info("[Worker] Processing order event",
		slog.String("routing_key", routingKey),
		slog.Int64("order_id", event.OrderID),
	)

	if err := h.orderSvc.HandleOrderEvent(ctx, routingKey, &event); err != nil {
		reqLogger.Error("[Worker] Failed to process order event",
			slog.String("routing_key", routingKey),
			slog.Int64("order_id", event.OrderID),
			slog.Any("error", err),
		)
		// Infrastructure failures are retryable; let Pub/Sub redeliver.
		return c.NoContent(http.StatusServiceUnavailable)
	}

	reqLogger.Info("[Worker] Order event processed successfully",
		slog.String("routing_key", routingKey),
		slog.Int64("order_id", event.OrderID),
	)

	return c.NoContent(http.StatusOK)
}

// extractRequestID extracts request_id from message attributes, envelope, or generates a new one
func (h *OrderPushHandler) extractRequestID(ctx context.Context, pushMsg *PubSubMessage, envelope *eventEnvelope) string {
	// 1. Try message attributes (from Pub/Sub)
	if requestID, ok := pushMsg.Message.Attributes["request_id"]; ok && requestID != "" {
		return requestID
	}

	// 2. Try envelope field (from JSON payload)
	if envelope.RequestID != "" {
		return envelope.RequestID
	}

	// 3. Try existing context (from RequestIDMiddleware via X-Request-Id header)
	if requestID := deliverycontext.GetRequestIDFromContext(ctx); requestID != "" {
		return requestID
	}

	// 4. Generate new UUID as fallback
	return uuid.New().String()
}

// verifyPubSubToken verifies the JWT token from Google Pub/Sub push requests
// Reference: https://cloud.google.com/pubsub/docs/push#authenticating_standard_push_requests
func verifyPubSubToken(req *http.Request) error {
	// Get the Authorization header
	authHeader := req.Header.Get("Authorization")
	if authHeader == "" {
		return errors.New("missing authorization header")
	}

	// Extract Bearer token
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return errors.New("invalid authorization header format")
	}
	token := strings.TrimPrefix(authHeader, bearerPrefix)

	// Construct the expected audience (the push endpoint URL)
	// The audience should be the URL of this endpoint
	scheme := "https"
	if req.TLS == nil {
		scheme = "http" // For local development
	}
	audience := fmt.Sprintf("%s://%s%s", scheme, req.Host, req.URL.Path)

	// Validate the token using Google's ID token validator
	ctx := req.Context()
	payload, err := idtoken.Validate(ctx, token, audience)
	if err != nil {
		return errors.Wrap(err, "failed to validate token")
	}

	// Verify the token is from Google Pub/Sub
	// The issuer should be accounts.google.com
	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return errors.Errorf("invalid issuer: %s", payload.Issuer)
	}

	// Verify email is verified (if email claim exists)
	if emailVerified, ok := payload.Claims["email_verified"].(bool); ok && !emailVerified {
		return errors.New("email not verified")
	}

	return nil
}
