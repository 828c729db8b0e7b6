package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"lean-protocol-billing/internal/domain"
	"lean-protocol-billing/internal/domain/ports/adapter"
)

const defaultBaseURL = "https://api.razorpay.com/v1"

var _ adapter.PaymentGateway = (*Client)(nil)

// Client implements adapter.PaymentGateway against the Razorpay REST API
// using direct HTTP calls with basic auth (key id / key secret).
type Client struct {
	keyID         string
	keySecret     string
	webhookSecret string
	baseURL       string
	client        *http.Client
}

// NewClient creates a Razorpay gateway client. baseURL may be empty to use
// the production API; tests point it at a httptest server.
func NewClient(keyID, keySecret, webhookSecret, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		baseURL:       baseURL,
		client:        &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) KeyID() string { return c.keyID }

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// CreateOrder implements PaymentGateway.CreateOrder. Amount is in minor units.
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*adapter.GatewayOrder, error) {
	requestData := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		requestData["notes"] = notes
	}

	var resp orderResponse
	if err := c.post(ctx, "/orders", requestData, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("razorpay: order response missing id: %w", domain.ErrGatewayUnavailable)
	}
	return &adapter.GatewayOrder{
		OrderID:  resp.ID,
		Amount:   resp.Amount,
		Currency: resp.Currency,
		Receipt:  resp.Receipt,
	}, nil
}

func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return VerifyPaymentSignature(c.keySecret, orderID, paymentID, signature)
}

func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	return VerifyWebhookSignature(c.webhookSecret, body, signature)
}

type refundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateRefund issues a full or partial refund against a captured payment.
func (c *Client) CreateRefund(ctx context.Context, paymentID string, amount int64) (*adapter.GatewayRefund, error) {
	requestData := map[string]interface{}{}
	if amount > 0 {
		requestData["amount"] = amount
	}

	var resp refundResponse
	if err := c.post(ctx, "/payments/"+paymentID+"/refund", requestData, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("razorpay: refund response missing id: %w", domain.ErrGatewayUnavailable)
	}
	return &adapter.GatewayRefund{RefundID: resp.ID, Status: resp.Status}, nil
}

type paymentListResponse struct {
	Count int `json:"count"`
	Items []struct {
		ID               string `json:"id"`
		Status           string `json:"status"`
		ErrorDescription string `json:"error_description"`
	} `json:"items"`
}

// FetchOrderPayments lists the payment attempts Razorpay recorded for an order.
func (c *Client) FetchOrderPayments(ctx context.Context, orderID string) ([]adapter.GatewayPayment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/orders/"+orderID+"/payments", nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay: create request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp paymentListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("razorpay: unmarshal payments: %w, body: %s", err, string(body))
	}
	out := make([]adapter.GatewayPayment, 0, len(resp.Items))
	for _, it := range resp.Items {
		out = append(out, adapter.GatewayPayment{
			ID:               it.ID,
			Status:           it.Status,
			ErrorDescription: it.ErrorDescription,
		})
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("razorpay: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("razorpay: create request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("razorpay: unmarshal response: %w, body: %s", err, string(body))
	}
	return nil
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("razorpay: %v: %w", err, domain.ErrGatewayUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("razorpay: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var ae apiError
		if json.Unmarshal(body, &ae) == nil && ae.Error.Description != "" {
			return nil, fmt.Errorf("razorpay: %s (%s): %w", ae.Error.Description, ae.Error.Code, domain.ErrGatewayUnavailable)
		}
		return nil, fmt.Errorf("razorpay: http %d: %w", resp.StatusCode, domain.ErrGatewayUnavailable)
	}
	return body, nil
}
