package model

import (
	"time"

	"lean-protocol-billing/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusProcessing PaymentStatus = "processing" // gateway order created; awaiting a terminal signal
	PaymentStatusSuccess    PaymentStatus = "success"    // signature verified or capture confirmed
	PaymentStatusFailed     PaymentStatus = "failed"     // gateway or client reported failure
	PaymentStatusRefunded   PaymentStatus = "refunded"   // refund issued against a captured payment
)

// Terminal reports whether the ledger may no longer leave this status via
// the processing-guarded conditional update. success still admits the one
// refund transition, handled by the refund workflow.
func (s PaymentStatus) Terminal() bool { return s != PaymentStatusProcessing }

// PaymentSource identifies which writer produced a ledger transition. Three
// independent writers converge on the same row: the client verification
// callback, the gateway webhook, and the reconciliation sweep.
type PaymentSource string

const (
	PaymentSourceCheckout PaymentSource = "checkout"
	PaymentSourceCallback PaymentSource = "callback"
	PaymentSourceWebhook  PaymentSource = "webhook"
	PaymentSourceSweep    PaymentSource = "sweep"
	PaymentSourceRefund   PaymentSource = "refund"
)

// Payment records one attempt to pay for one subscription via one gateway
// order. GatewayOrderID is globally unique and is the idempotency key for
// the whole attempt.
type Payment struct {
	ID               string
	AccountID        string
	SubscriptionID   string
	GatewayOrderID   string
	GatewayPaymentID *string // set once captured
	GatewaySignature *string
	Amount           int64 // minor units (paise)
	Currency         string
	Status           PaymentStatus
	FailureReason    *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewPayment opens a ledger entry in processing state for a fresh gateway order.
func NewPayment(id, accountID, subscriptionID, gatewayOrderID string, amount int64, currency string) (*Payment, error) {
	if id == "" || accountID == "" || subscriptionID == "" || gatewayOrderID == "" || amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if currency == "" {
		currency = "INR"
	}
	now := time.Now()
	return &Payment{
		ID:             id,
		AccountID:      accountID,
		SubscriptionID: subscriptionID,
		GatewayOrderID: gatewayOrderID,
		Amount:         amount,
		Currency:       currency,
		Status:         PaymentStatusProcessing,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// PaymentEvent is one row of the append-only ledger audit trail. Every
// status transition writes an event in the same transaction.
type PaymentEvent struct {
	ID         string
	PaymentID  string
	At         time.Time
	Source     PaymentSource
	FromStatus PaymentStatus
	ToStatus   PaymentStatus
	Note       string
}
