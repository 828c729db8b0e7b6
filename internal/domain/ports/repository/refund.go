package repository

import (
	"context"

	"lean-protocol-billing/internal/domain/model"
)

// RefundRequestRepository is the port for refund request persistence.
type RefundRequestRepository interface {
	Save(ctx context.Context, tx Tx, r *model.RefundRequest) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.RefundRequest, error)
	FindBySubscription(ctx context.Context, tx Tx, subscriptionID string) (*model.RefundRequest, error)
	ListPending(ctx context.Context, tx Tx) ([]*model.RefundRequest, error)
}
