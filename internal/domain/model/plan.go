package model

import (
	"time"

	"lean-protocol-billing/internal/domain"
)

// Plan represents a purchasable program tier with a fixed duration and a
// price in minor units (paise). "Deleting" a plan only flips IsActive so
// existing subscriptions keep a valid reference.
type Plan struct {
	ID                    string
	Name                  string
	Price                 int64  // minor units (paise)
	OriginalPrice         *int64 // strike-through display price, optional
	DurationDays          int
	Features              []string
	IsActive              bool
	IsDefault             bool // at most one plan is default at a time
	DisplayOrder          int
	AllowMultiplePurchase bool
	IsRefundable          bool
	AllowAutoRenew        bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// NewPlan validates and constructs a plan.
func NewPlan(id, name string, price int64, durationDays int) (*Plan, error) {
	if id == "" || name == "" || price <= 0 || durationDays < 1 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Plan{
		ID:           id,
		Name:         name,
		Price:        price,
		DurationDays: durationDays,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
