package model

import (
	"time"

	"lean-protocol-billing/internal/domain"
)

type RefundStatus string

const (
	RefundStatusPending  RefundStatus = "pending"
	RefundStatusApproved RefundStatus = "approved"
	RefundStatusRejected RefundStatus = "rejected"
)

// RefundRequest is an account's request to reverse one subscription's
// payment. At most one exists per subscription; once decided it is never
// re-opened.
type RefundRequest struct {
	ID             string
	AccountID      string
	SubscriptionID string
	Reason         string
	Status         RefundStatus
	RefundAmount   *int64 // set on approval, minor units
	GatewayRefundID *string
	AdminNotes     *string
	RequestedAt    time.Time
	ProcessedAt    *time.Time
}

// NewRefundRequest opens a pending refund request.
func NewRefundRequest(id, accountID, subscriptionID, reason string) (*RefundRequest, error) {
	if id == "" || accountID == "" || subscriptionID == "" || reason == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &RefundRequest{
		ID:             id,
		AccountID:      accountID,
		SubscriptionID: subscriptionID,
		Reason:         reason,
		Status:         RefundStatusPending,
		RequestedAt:    time.Now(),
	}, nil
}

// Approve finalizes the request after the gateway refund succeeded.
func (r *RefundRequest) Approve(amount int64, gatewayRefundID, notes string, now time.Time) error {
	if r.Status != RefundStatusPending {
		return domain.ErrAlreadyProcessed
	}
	r.Status = RefundStatusApproved
	r.RefundAmount = &amount
	r.GatewayRefundID = &gatewayRefundID
	if notes != "" {
		r.AdminNotes = &notes
	}
	r.ProcessedAt = &now
	return nil
}

// Reject closes the request without touching payment or subscription.
func (r *RefundRequest) Reject(notes string, now time.Time) error {
	if r.Status != RefundStatusPending {
		return domain.ErrAlreadyProcessed
	}
	r.Status = RefundStatusRejected
	if notes != "" {
		r.AdminNotes = &notes
	}
	r.ProcessedAt = &now
	return nil
}
