package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ecomcore/fulfillment/internal/domain"
)

type emailRecorder struct {
	mu       sync.Mutex
	messages []emailMessage
	status   int
}

func (r *emailRecorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var msg emailMessage
	if err := json.NewDecoder(req.Body).Decode(&msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
	status := r.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

func (r *emailRecorder) sent() []emailMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]emailMessage(nil), r.messages...)
}

func newTestHandler(t *testing.T) (*NotificationHandler, *emailRecorder) {
	t.Helper()
	recorder := &emailRecorder{}
	server := httptest.NewServer(recorder)
	t.Cleanup(server.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewNotificationHandler(server.URL, server.Client(), logger), recorder
}

func envelope(t *testing.T, eventType string, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	data, err := json.Marshal(domain.EventEnvelope{
		EventID:    "evt-1",
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}

func TestNotificationHandler_OrderPlaced(t *testing.T) {
	handler, recorder := newTestHandler(t)

	total, _ := domain.NewMoney("450.00", "INR")
	payload := envelope(t, domain.EventOrderPlaced, domain.OrderPlacedEvent{
		OrderID: "order-1",
		UserID:  "user-1",
		Items:   []domain.OrderItem{{ProductID: "prod-1", Quantity: 2}},
		Total:   total,
	})

	if err := handler.Handle(context.Background(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := recorder.sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sent))
	}
	if sent[0].To != "user-1@example.com" {
		t.Errorf("unexpected recipient %q", sent[0].To)
	}
	if sent[0].Subject != "Order Received: order-1" {
		t.Errorf("unexpected subject %q", sent[0].Subject)
	}
}

func TestNotificationHandler_PaymentSucceeded(t *testing.T) {
	handler, recorder := newTestHandler(t)

	payload := envelope(t, domain.EventPaymentSucceeded, domain.PaymentSucceededEvent{
		OrderID:       "order-1",
		UserID:        "user-1",
		TransactionID: "txn-42",
	})

	if err := handler.Handle(context.Background(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := recorder.sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sent))
	}
	if sent[0].Subject != "Order Confirmed: order-1" {
		t.Errorf("unexpected subject %q", sent[0].Subject)
	}
}

func TestNotificationHandler_PaymentFailed(t *testing.T) {
	handler, recorder := newTestHandler(t)

	payload := envelope(t, domain.EventPaymentFailed, domain.PaymentFailedEvent{
		OrderID: "order-1",
		UserID:  "user-1",
	})

	if err := handler.Handle(context.Background(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := recorder.sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sent))
	}
	if sent[0].Subject != "Order Cancelled: order-1" {
		t.Errorf("unexpected subject %q", sent[0].Subject)
	}
}

func TestNotificationHandler_UnknownTypeSkipped(t *testing.T) {
	handler, recorder := newTestHandler(t)

	payload := envelope(t, "order.archived", map[string]string{"order_id": "order-1"})

	if err := handler.Handle(context.Background(), payload); err != nil {
		t.Fatalf("unknown event types must not error: %v", err)
	}
	if len(recorder.sent()) != 0 {
		t.Error("unknown event types must not send email")
	}
}

func TestNotificationHandler_EmailFailure(t *testing.T) {
	handler, recorder := newTestHandler(t)
	recorder.status = http.StatusInternalServerError

	payload := envelope(t, domain.EventPaymentFailed, domain.PaymentFailedEvent{
		OrderID: "order-1",
		UserID:  "user-1",
	})

	if err := handler.Handle(context.Background(), payload); err == nil {
		t.Error("expected error when email service fails")
	}
}

func TestNotificationHandler_MalformedEnvelope(t *testing.T) {
	handler, _ := newTestHandler(t)

	if err := handler.Handle(context.Background(), []byte("{not json")); err == nil {
		t.Error("expected error for malformed envelope")
	}
}
