package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"lean-protocol-billing/internal/domain"
	"lean-protocol-billing/internal/domain/model"
	"lean-protocol-billing/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.PlanRepository = (*planRepo)(nil)

type planRepo struct {
	pool *pgxpool.Pool
}

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

const planColumns = `id, name, price, original_price, duration_days, features, is_active, is_default, display_order, allow_multiple_purchase, is_refundable, allow_auto_renew, created_at, updated_at`

func (r *planRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	const q = `
INSERT INTO plans (` + planColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
  name=$2, price=$3, original_price=$4, duration_days=$5, features=$6,
  is_active=$7, is_default=$8, display_order=$9, allow_multiple_purchase=$10,
  is_refundable=$11, allow_auto_renew=$12, updated_at=$14;`

	_, err := execSQL(ctx, r.pool, tx, q,
		plan.ID, plan.Name, plan.Price, plan.OriginalPrice, plan.DurationDays, plan.Features,
		plan.IsActive, plan.IsDefault, plan.DisplayOrder, plan.AllowMultiplePurchase,
		plan.IsRefundable, plan.AllowAutoRenew, plan.CreatedAt, plan.UpdatedAt,
	)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return fmt.Errorf("save plan: %w", domain.ErrOperationFailed)
	}
	return nil
}

func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	const q = `SELECT ` + planColumns + ` FROM plans WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPlan(row)
}

func (r *planRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	const q = `SELECT ` + planColumns + ` FROM plans WHERE is_active=TRUE ORDER BY display_order, created_at;`
	return r.list(ctx, tx, q)
}

func (r *planRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	const q = `SELECT ` + planColumns + ` FROM plans ORDER BY display_order, created_at;`
	return r.list(ctx, tx, q)
}

func (r *planRepo) ClearDefault(ctx context.Context, tx repository.Tx, exceptID string) error {
	const q = `UPDATE plans SET is_default=FALSE, updated_at=NOW() WHERE is_default=TRUE AND id<>$1;`
	if _, err := execSQL(ctx, r.pool, tx, q, exceptID); err != nil {
		return fmt.Errorf("clear default plan: %w", domain.ErrOperationFailed)
	}
	return nil
}

func (r *planRepo) list(ctx context.Context, tx repository.Tx, q string) ([]*model.Plan, error) {
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPlan(row pgx.Row) (*model.Plan, error) {
	p := &model.Plan{}
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.OriginalPrice, &p.DurationDays, &p.Features,
		&p.IsActive, &p.IsDefault, &p.DisplayOrder, &p.AllowMultiplePurchase,
		&p.IsRefundable, &p.AllowAutoRenew, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}
