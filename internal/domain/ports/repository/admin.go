package repository

import (
	"context"

	"lean-protocol-billing/internal/domain/model"
)

// AdminRepository is the port for back-office operator accounts.
type AdminRepository interface {
	Save(ctx context.Context, tx Tx, a *model.Admin) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Admin, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.Admin, error)
	CountActive(ctx context.Context, tx Tx) (int, error)
}
