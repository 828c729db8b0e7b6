package repository

import (
	"context"

	"lean-protocol-billing/internal/domain/model"
)

// PlanRepository is the port for plan catalog persistence.
type PlanRepository interface {
	Save(ctx context.Context, tx Tx, plan *model.Plan) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Plan, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.Plan, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.Plan, error)
	// ClearDefault unsets is_default on every plan except the given id.
	// Called inside the same tx that sets a new default.
	ClearDefault(ctx context.Context, tx Tx, exceptID string) error
}
