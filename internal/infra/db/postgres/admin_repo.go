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

var _ repository.AdminRepository = (*adminRepo)(nil)

type adminRepo struct {
	pool *pgxpool.Pool
}

func NewAdminRepo(pool *pgxpool.Pool) *adminRepo {
	return &adminRepo{pool: pool}
}

func (r *adminRepo) Save(ctx context.Context, tx repository.Tx, a *model.Admin) error {
	const q = `
INSERT INTO admins (id, email, name, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET email=$2, name=$3, is_active=$4, updated_at=$6;`
	_, err := execSQL(ctx, r.pool, tx, q, a.ID, a.Email, a.Name, a.IsActive, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return fmt.Errorf("save admin: %w", domain.ErrOperationFailed)
	}
	return nil
}

func (r *adminRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Admin, error) {
	q := `SELECT id, email, name, is_active, created_at, updated_at FROM admins WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	a := &model.Admin{}
	if err := row.Scan(&a.ID, &a.Email, &a.Name, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return a, nil
}

func (r *adminRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Admin, error) {
	const q = `SELECT id, email, name, is_active, created_at, updated_at FROM admins ORDER BY created_at;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Admin
	for rows.Next() {
		a := &model.Admin{}
		if err := rows.Scan(&a.ID, &a.Email, &a.Name, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *adminRepo) CountActive(ctx context.Context, tx repository.Tx) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM admins WHERE is_active=TRUE;`)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}
