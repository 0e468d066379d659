package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ecomcore/fulfillment/internal/domain"
)

// NotificationHandler turns order events into customer emails. Unknown
// event types are skipped so new producers can roll out ahead of the
// worker.
type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

func (h *NotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var envelope domain.EventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return fmt.Errorf("unmarshal event envelope: %w", err)
	}

	h.logger.Info("processing event", "event_id", envelope.EventID, "type", envelope.Type)

	switch envelope.Type {
	case domain.EventOrderPlaced:
		return h.handleOrderPlaced(ctx, envelope.Payload)
	case domain.EventPaymentSucceeded:
		return h.handlePaymentSucceeded(ctx, envelope.Payload)
	case domain.EventPaymentFailed:
		return h.handlePaymentFailed(ctx, envelope.Payload)
	case domain.EventOrderRefunded:
		return h.handleOrderRefunded(ctx, envelope.Payload)
	default:
		h.logger.Warn("skipping unknown event type", "type", envelope.Type)
		return nil
	}
}

func (h *NotificationHandler) handleOrderPlaced(ctx context.Context, payload json.RawMessage) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order placed event: %w", err)
	}

	return h.sendEmail(ctx, emailMessage{
		To:      event.UserID + "@example.com",
		Subject: "Order Received: " + event.OrderID,
		Body: fmt.Sprintf("We received your order %s (%d items, %s). We will confirm it once payment completes.",
			event.OrderID, len(event.Items), event.Total.String()),
	})
}

func (h *NotificationHandler) handlePaymentSucceeded(ctx context.Context, payload json.RawMessage) error {
	var event domain.PaymentSucceededEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal payment succeeded event: %w", err)
	}

	body := fmt.Sprintf("Payment for order %s was received. Your order is confirmed.", event.OrderID)
	if event.TransactionID != "" {
		body += " Transaction reference: " + event.TransactionID + "."
	}

	return h.sendEmail(ctx, emailMessage{
		To:      event.UserID + "@example.com",
		Subject: "Order Confirmed: " + event.OrderID,
		Body:    body,
	})
}

func (h *NotificationHandler) handlePaymentFailed(ctx context.Context, payload json.RawMessage) error {
	var event domain.PaymentFailedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal payment failed event: %w", err)
	}

	return h.sendEmail(ctx, emailMessage{
		To:      event.UserID + "@example.com",
		Subject: "Order Cancelled: " + event.OrderID,
		Body:    fmt.Sprintf("Payment for order %s did not complete, so the order was cancelled. Reserved items have been returned to stock.", event.OrderID),
	})
}

func (h *NotificationHandler) handleOrderRefunded(ctx context.Context, payload json.RawMessage) error {
	var event domain.OrderRefundedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order refunded event: %w", err)
	}

	return h.sendEmail(ctx, emailMessage{
		To:      event.UserID + "@example.com",
		Subject: "Order Refunded: " + event.OrderID,
		Body:    fmt.Sprintf("Order %s was refunded in full (%s).", event.OrderID, event.Total.String()),
	})
}

type emailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (h *NotificationHandler) sendEmail(ctx context.Context, msg emailMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
