package repository

import (
	"context"
	"time"

	"lean-protocol-billing/internal/domain/model"
)

// SubscriptionRepository is the port for subscription persistence.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, sub *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	// FindBlockingByAccount returns the account's subscription occupying the
	// admission slot (active or pending_approval), or ErrNotFound.
	FindBlockingByAccount(ctx context.Context, tx Tx, accountID string) (*model.Subscription, error)
	ListByAccount(ctx context.Context, tx Tx, accountID string) ([]*model.Subscription, error)
	// ListActiveEndedBefore returns active subscriptions whose end date passed
	// before the cutoff, oldest first, up to limit rows.
	ListActiveEndedBefore(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.Subscription, error)
}
