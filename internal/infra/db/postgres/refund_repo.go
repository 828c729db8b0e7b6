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

var _ repository.RefundRequestRepository = (*refundRepo)(nil)

type refundRepo struct {
	pool *pgxpool.Pool
}

func NewRefundRepo(pool *pgxpool.Pool) *refundRepo {
	return &refundRepo{pool: pool}
}

const refundColumns = `id, account_id, subscription_id, reason, status, refund_amount, gateway_refund_id, admin_notes, requested_at, processed_at`

func (r *refundRepo) Save(ctx context.Context, tx repository.Tx, rr *model.RefundRequest) error {
	const q = `
INSERT INTO refund_requests (` + refundColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
  status=$5, refund_amount=$6, gateway_refund_id=$7, admin_notes=$8, processed_at=$10;`

	_, err := execSQL(ctx, r.pool, tx, q,
		rr.ID, rr.AccountID, rr.SubscriptionID, rr.Reason, rr.Status,
		rr.RefundAmount, rr.GatewayRefundID, rr.AdminNotes, rr.RequestedAt, rr.ProcessedAt,
	)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return fmt.Errorf("save refund request: %w", domain.ErrOperationFailed)
	}
	return nil
}

func (r *refundRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.RefundRequest, error) {
	q := `SELECT ` + refundColumns + ` FROM refund_requests WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanRefund(row)
}

func (r *refundRepo) FindBySubscription(ctx context.Context, tx repository.Tx, subscriptionID string) (*model.RefundRequest, error) {
	const q = `SELECT ` + refundColumns + ` FROM refund_requests WHERE subscription_id=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, subscriptionID)
	if err != nil {
		return nil, err
	}
	return scanRefund(row)
}

func (r *refundRepo) ListPending(ctx context.Context, tx repository.Tx) ([]*model.RefundRequest, error) {
	const q = `SELECT ` + refundColumns + ` FROM refund_requests WHERE status='pending' ORDER BY requested_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.RefundRequest
	for rows.Next() {
		rr, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}

func scanRefund(row pgx.Row) (*model.RefundRequest, error) {
	rr := &model.RefundRequest{}
	err := row.Scan(&rr.ID, &rr.AccountID, &rr.SubscriptionID, &rr.Reason, &rr.Status,
		&rr.RefundAmount, &rr.GatewayRefundID, &rr.AdminNotes, &rr.RequestedAt, &rr.ProcessedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return rr, nil
}
