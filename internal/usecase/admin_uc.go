package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"lean-protocol-billing/internal/domain"
	"lean-protocol-billing/internal/domain/model"
	"lean-protocol-billing/internal/domain/ports/repository"
)

// AdminUseCase manages back-office operator accounts.
type AdminUseCase interface {
	Create(ctx context.Context, email, name string) (*model.Admin, error)
	List(ctx context.Context) ([]*model.Admin, error)
	// Deactivate disables an admin unless it is the last active one. The
	// count check and the write share a transaction so concurrent
	// deactivations cannot empty the admin pool.
	Deactivate(ctx context.Context, id string) error
}

var _ AdminUseCase = (*adminUC)(nil)

type adminUC struct {
	admins repository.AdminRepository
	tm     repository.TransactionManager
	log    *zerolog.Logger
}

func NewAdminUseCase(admins repository.AdminRepository, tm repository.TransactionManager, logger *zerolog.Logger) *adminUC {
	return &adminUC{admins: admins, tm: tm, log: logger}
}

func (uc *adminUC) Create(ctx context.Context, email, name string) (*model.Admin, error) {
	a, err := model.NewAdmin(uuid.NewString(), email, name)
	if err != nil {
		return nil, err
	}
	if err := uc.admins.Save(ctx, nil, a); err != nil {
		return nil, err
	}
	uc.log.Info().Str("admin_id", a.ID).Msg("admin created")
	return a, nil
}

func (uc *adminUC) List(ctx context.Context) ([]*model.Admin, error) {
	return uc.admins.ListAll(ctx, nil)
}

func (uc *adminUC) Deactivate(ctx context.Context, id string) error {
	return uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		a, err := uc.admins.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if !a.IsActive {
			return nil
		}
		active, err := uc.admins.CountActive(ctx, tx)
		if err != nil {
			return err
		}
		if active <= 1 {
			return domain.ErrLastActiveAdmin
		}
		a.IsActive = false
		a.UpdatedAt = time.Now()
		return uc.admins.Save(ctx, tx, a)
	})
}
