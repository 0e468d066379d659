package domain

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced      = "order.placed"
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventOrderRefunded    = "order.refunded"
)

// EventEnvelope wraps every message on the order-events topic so consumers
// can dispatch on Type without knowing all payload shapes.
type EventEnvelope struct {
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type OrderPlacedEvent struct {
	OrderID string        `json:"order_id"`
	UserID  string        `json:"user_id"`
	Items   []OrderItem   `json:"items"`
	Total   Money         `json:"total"`
	Method  PaymentMethod `json:"method"`
}

type PaymentSucceededEvent struct {
	OrderID       string `json:"order_id"`
	UserID        string `json:"user_id"`
	TransactionID string `json:"transaction_id,omitempty"`
}

type PaymentFailedEvent struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Reason  string `json:"reason,omitempty"`
}

type OrderRefundedEvent struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Total   Money  `json:"total"`
}
