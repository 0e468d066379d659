package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ecomcore/fulfillment/internal/domain"
)

// GatewayClient talks to the external payment provider over HTTP. The
// injected client carries the instrumented transport so downstream spans
// join the request trace.
type GatewayClient struct {
	baseURL string
	client  *http.Client
}

func NewGatewayClient(baseURL string, client *http.Client) *GatewayClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &GatewayClient{
		baseURL: baseURL,
		client:  client,
	}
}

type chargeRequest struct {
	OrderID  string `json:"order_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type chargeResponse struct {
	TransactionID string `json:"transaction_id"`
	Declined      bool   `json:"declined"`
	Reason        string `json:"reason,omitempty"`
}

// Charge asks the provider to capture amount for the given order and
// returns the provider's transaction id.
func (g *GatewayClient) Charge(ctx context.Context, orderID string, amount domain.Money) (string, error) {
	payload := chargeRequest{
		OrderID:  orderID,
		Amount:   amount.Amount.StringFixed(2),
		Currency: amount.Currency,
	}

	var resp chargeResponse
	if err := g.post(ctx, "/v1/charges", payload, &resp); err != nil {
		return "", err
	}
	if resp.Declined {
		return "", fmt.Errorf("charge declined for order %s: %s", orderID, resp.Reason)
	}
	if resp.TransactionID == "" {
		return "", fmt.Errorf("gateway returned no transaction id for order %s", orderID)
	}
	return resp.TransactionID, nil
}

type refundRequest struct {
	TransactionID string `json:"transaction_id"`
}

// Refund reverses a previously captured transaction.
func (g *GatewayClient) Refund(ctx context.Context, transactionID string) error {
	return g.post(ctx, "/v1/refunds", refundRequest{TransactionID: transactionID}, nil)
}

func (g *GatewayClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway %s returned %d: %s", path, resp.StatusCode, bytes.TrimSpace(detail))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
