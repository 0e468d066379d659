package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ecomcore/fulfillment/internal/domain"
)

func TestGatewayClient_Charge(t *testing.T) {
	t.Run("returns transaction id", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			if r.URL.Path != "/v1/charges" {
				t.Errorf("expected /v1/charges, got %s", r.URL.Path)
			}
			var req chargeRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if req.OrderID != "order-1" {
				t.Errorf("unexpected order id %q", req.OrderID)
			}
			if req.Amount != "450.00" || req.Currency != "INR" {
				t.Errorf("unexpected amount %s %s", req.Amount, req.Currency)
			}
			_ = json.NewEncoder(w).Encode(chargeResponse{TransactionID: "txn-42"})
		}))
		defer server.Close()

		client := NewGatewayClient(server.URL, server.Client())
		amount, err := domain.NewMoney("450.00", "INR")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		txnID, err := client.Charge(context.Background(), "order-1", amount)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if txnID != "txn-42" {
			t.Errorf("expected txn-42, got %s", txnID)
		}
	})

	t.Run("declined charge is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(chargeResponse{Declined: true, Reason: "insufficient funds"})
		}))
		defer server.Close()

		client := NewGatewayClient(server.URL, server.Client())
		amount, _ := domain.NewMoney("10.00", "INR")

		if _, err := client.Charge(context.Background(), "order-1", amount); err == nil {
			t.Error("expected error for declined charge")
		}
	})

	t.Run("non-2xx status is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		}))
		defer server.Close()

		client := NewGatewayClient(server.URL, server.Client())
		amount, _ := domain.NewMoney("10.00", "INR")

		if _, err := client.Charge(context.Background(), "order-1", amount); err == nil {
			t.Error("expected error for 502 response")
		}
	})
}

func TestGatewayClient_Refund(t *testing.T) {
	t.Run("posts transaction id", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/refunds" {
				t.Errorf("expected /v1/refunds, got %s", r.URL.Path)
			}
			var req refundRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if req.TransactionID != "txn-42" {
				t.Errorf("unexpected transaction id %q", req.TransactionID)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewGatewayClient(server.URL, server.Client())
		if err := client.Refund(context.Background(), "txn-42"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewGatewayClient(server.URL, server.Client())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := client.Refund(ctx, "txn-42"); err == nil {
			t.Error("expected error for cancelled context")
		}
	})
}
