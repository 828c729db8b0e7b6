package model

import (
	"time"

	"lean-protocol-billing/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusPendingApproval SubscriptionStatus = "pending_approval"
	SubscriptionStatusActive          SubscriptionStatus = "active"
	SubscriptionStatusExpired         SubscriptionStatus = "expired"
	SubscriptionStatusCancelled       SubscriptionStatus = "cancelled"
	SubscriptionStatusRefunded        SubscriptionStatus = "refunded"
	SubscriptionStatusRejected        SubscriptionStatus = "rejected"
)

// Blocking reports whether a subscription in this status occupies the
// account's single admission slot.
func (s SubscriptionStatus) Blocking() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusPendingApproval
}

// Terminal reports whether no further transition may leave this status.
func (s SubscriptionStatus) Terminal() bool {
	switch s {
	case SubscriptionStatusExpired, SubscriptionStatusCancelled,
		SubscriptionStatusRefunded, SubscriptionStatusRejected:
		return true
	}
	return false
}

// Subscription is one account's enrollment in one plan instance. It is
// created pending admin approval; dates are only set once an admin approves.
type Subscription struct {
	ID              string
	AccountID       string
	PlanID          string
	Status          SubscriptionStatus
	StartDate       *time.Time
	EndDate         *time.Time
	AutoRenew       bool
	ApprovedBy      *string
	RejectionReason *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewSubscription creates a subscription awaiting admin approval.
func NewSubscription(id, accountID string, plan *Plan) (*Subscription, error) {
	if id == "" || accountID == "" || plan.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Subscription{
		ID:        id,
		AccountID: accountID,
		PlanID:    plan.ID,
		Status:    SubscriptionStatusPendingApproval,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Approve activates the subscription and computes its validity window from
// the plan duration. Only valid from pending_approval.
func (s *Subscription) Approve(adminID string, plan *Plan, now time.Time) error {
	if s.Status != SubscriptionStatusPendingApproval {
		return domain.ErrInvalidTransition
	}
	end := now.AddDate(0, 0, plan.DurationDays)
	s.Status = SubscriptionStatusActive
	s.StartDate = &now
	s.EndDate = &end
	s.ApprovedBy = &adminID
	s.UpdatedAt = now
	return nil
}

// Reject closes a pending subscription with a reason. Terminal.
func (s *Subscription) Reject(adminID, reason string, now time.Time) error {
	if s.Status != SubscriptionStatusPendingApproval {
		return domain.ErrInvalidTransition
	}
	s.Status = SubscriptionStatusRejected
	s.RejectionReason = &reason
	s.ApprovedBy = &adminID
	s.UpdatedAt = now
	return nil
}

// RejectForFailedPayment closes a pending subscription when its payment
// fails at the gateway, reopening the admission slot so the account can
// retry. Unlike Reject there is no deciding admin.
func (s *Subscription) RejectForFailedPayment(reason string, now time.Time) error {
	if s.Status != SubscriptionStatusPendingApproval {
		return domain.ErrInvalidTransition
	}
	s.Status = SubscriptionStatusRejected
	s.RejectionReason = &reason
	s.UpdatedAt = now
	return nil
}

// Cancel ends the subscription. Valid from active, and from pending_approval
// on the payment-failure path so the admission slot reopens.
func (s *Subscription) Cancel(now time.Time) error {
	if s.Status != SubscriptionStatusActive && s.Status != SubscriptionStatusPendingApproval {
		return domain.ErrInvalidTransition
	}
	s.Status = SubscriptionStatusCancelled
	s.EndDate = &now
	s.UpdatedAt = now
	return nil
}

// MarkRefunded ends an active subscription after a refund has been issued.
func (s *Subscription) MarkRefunded(now time.Time) error {
	if s.Status != SubscriptionStatusActive {
		return domain.ErrInvalidTransition
	}
	s.Status = SubscriptionStatusRefunded
	s.EndDate = &now
	s.UpdatedAt = now
	return nil
}

// Expire ends an active subscription whose validity window has passed.
func (s *Subscription) Expire(now time.Time) error {
	if s.Status != SubscriptionStatusActive {
		return domain.ErrInvalidTransition
	}
	s.Status = SubscriptionStatusExpired
	s.EndDate = &now
	s.UpdatedAt = now
	return nil
}

// SetAutoRenew toggles renewal. Only meaningful on an active subscription
// whose plan allows it.
func (s *Subscription) SetAutoRenew(enabled bool, plan *Plan) error {
	if s.Status != SubscriptionStatusActive || !plan.AllowAutoRenew {
		return domain.ErrFeatureUnavailable
	}
	s.AutoRenew = enabled
	s.UpdatedAt = time.Now()
	return nil
}
