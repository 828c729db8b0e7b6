package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"lean-protocol-billing/internal/domain/model"
	"lean-protocol-billing/internal/domain/ports/repository"
)

// PlanInput carries the admin-editable plan fields.
type PlanInput struct {
	Name                  string
	Price                 int64
	OriginalPrice         *int64
	DurationDays          int
	Features              []string
	IsDefault             bool
	DisplayOrder          int
	AllowMultiplePurchase bool
	IsRefundable          bool
	AllowAutoRenew        bool
}

// PlanUseCase manages the plan catalog.
type PlanUseCase interface {
	Create(ctx context.Context, in PlanInput) (*model.Plan, error)
	Update(ctx context.Context, id string, in PlanInput) (*model.Plan, error)
	// Deactivate soft-deletes: the plan stays referenced by existing
	// subscriptions but disappears from the catalog.
	Deactivate(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*model.Plan, error)
	ListActive(ctx context.Context) ([]*model.Plan, error)
	ListAll(ctx context.Context) ([]*model.Plan, error)
}

var _ PlanUseCase = (*planUC)(nil)

type planUC struct {
	plans repository.PlanRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
}

func NewPlanUseCase(plans repository.PlanRepository, tm repository.TransactionManager, logger *zerolog.Logger) *planUC {
	return &planUC{plans: plans, tm: tm, log: logger}
}

func (uc *planUC) Create(ctx context.Context, in PlanInput) (*model.Plan, error) {
	plan, err := model.NewPlan(uuid.NewString(), in.Name, in.Price, in.DurationDays)
	if err != nil {
		return nil, err
	}
	applyInput(plan, in)
	if err := uc.save(ctx, plan); err != nil {
		return nil, err
	}
	uc.log.Info().Str("plan_id", plan.ID).Str("name", plan.Name).Msg("plan created")
	return plan, nil
}

func (uc *planUC) Update(ctx context.Context, id string, in PlanInput) (*model.Plan, error) {
	var out *model.Plan
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		plan, err := uc.plans.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		plan.Name = in.Name
		plan.Price = in.Price
		plan.DurationDays = in.DurationDays
		applyInput(plan, in)
		if in.IsDefault {
			if err := uc.plans.ClearDefault(ctx, tx, plan.ID); err != nil {
				return err
			}
		}
		if err := uc.plans.Save(ctx, tx, plan); err != nil {
			return err
		}
		out = plan
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (uc *planUC) Deactivate(ctx context.Context, id string) error {
	return uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		plan, err := uc.plans.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		plan.IsActive = false
		plan.IsDefault = false
		plan.UpdatedAt = time.Now()
		return uc.plans.Save(ctx, tx, plan)
	})
}

func (uc *planUC) Get(ctx context.Context, id string) (*model.Plan, error) {
	return uc.plans.FindByID(ctx, nil, id)
}

func (uc *planUC) ListActive(ctx context.Context) ([]*model.Plan, error) {
	return uc.plans.ListActive(ctx, nil)
}

func (uc *planUC) ListAll(ctx context.Context) ([]*model.Plan, error) {
	return uc.plans.ListAll(ctx, nil)
}

// save persists a plan, demoting any previous default inside one tx so at
// most one default plan exists at a time.
func (uc *planUC) save(ctx context.Context, plan *model.Plan) error {
	return uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if plan.IsDefault {
			if err := uc.plans.ClearDefault(ctx, tx, plan.ID); err != nil {
				return err
			}
		}
		return uc.plans.Save(ctx, tx, plan)
	})
}

func applyInput(plan *model.Plan, in PlanInput) {
	plan.OriginalPrice = in.OriginalPrice
	plan.Features = in.Features
	plan.IsDefault = in.IsDefault
	plan.DisplayOrder = in.DisplayOrder
	plan.AllowMultiplePurchase = in.AllowMultiplePurchase
	plan.IsRefundable = in.IsRefundable
	plan.AllowAutoRenew = in.AllowAutoRenew
	plan.UpdatedAt = time.Now()
}
