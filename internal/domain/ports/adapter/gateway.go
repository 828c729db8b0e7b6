package adapter

import "context"

// GatewayOrder is the provider-side record for one checkout attempt.
type GatewayOrder struct {
	OrderID  string
	Amount   int64 // minor units
	Currency string
	Receipt  string
}

// GatewayPayment is one payment attempt reported by the provider for an order.
type GatewayPayment struct {
	ID               string
	Status           string // created | authorized | captured | failed
	ErrorDescription string
}

// GatewayRefund is the provider-side result of a refund call.
type GatewayRefund struct {
	RefundID string
	Status   string
}

// PaymentGateway is the port for the payment provider. It is a pure
// adapter: no local state, every call hits the provider.
type PaymentGateway interface {
	// KeyID is the public key the hosted checkout needs.
	KeyID() string

	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*GatewayOrder, error)
	// VerifyPaymentSignature recomputes the per-payment HMAC over
	// orderID|paymentID and compares in constant time.
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	// VerifyWebhookSignature checks the webhook HMAC over the raw body,
	// using the webhook secret (distinct from the key secret).
	VerifyWebhookSignature(body []byte, signature string) bool
	CreateRefund(ctx context.Context, paymentID string, amount int64) (*GatewayRefund, error)
	FetchOrderPayments(ctx context.Context, orderID string) ([]GatewayPayment, error)
}
