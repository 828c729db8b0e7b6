package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"lean-protocol-billing/internal/domain"
	"lean-protocol-billing/internal/domain/model"
	"lean-protocol-billing/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, account_id, subscription_id, gateway_order_id, gateway_payment_id, gateway_signature, amount, currency, status, failure_reason, created_at, updated_at`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12);`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.AccountID, p.SubscriptionID, p.GatewayOrderID, p.GatewayPaymentID,
		p.GatewaySignature, p.Amount, p.Currency, p.Status, p.FailureReason,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return fmt.Errorf("save payment: %w", domain.ErrOperationFailed)
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByGatewayOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_order_id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindLatestCapturedBySubscription(ctx context.Context, tx repository.Tx, subscriptionID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments
WHERE subscription_id=$1 AND status='success'
ORDER BY created_at DESC LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, subscriptionID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) ListProcessingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments
WHERE status='processing' AND created_at < $1
ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Finalize is the single conditional update every terminal writer goes
// through. The WHERE status='processing' guard makes the race between the
// callback, webhook, and sweep harmless: losers see zero affected rows.
func (r *paymentRepo) Finalize(ctx context.Context, tx repository.Tx, id string, to model.PaymentStatus, gatewayPaymentID, signature, failureReason *string) (repository.FinalizeResult, error) {
	const q = `UPDATE payments SET
  status=$2,
  gateway_payment_id=COALESCE($3, gateway_payment_id),
  gateway_signature=COALESCE($4, gateway_signature),
  failure_reason=$5,
  updated_at=NOW()
WHERE id=$1 AND status='processing';`

	tag, err := execSQL(ctx, r.pool, tx, q, id, to, gatewayPaymentID, signature, failureReason)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return repository.FinalizeResult{}, err
		}
		return repository.FinalizeResult{}, fmt.Errorf("finalize payment: %w", domain.ErrOperationFailed)
	}
	if tag.RowsAffected() > 0 {
		return repository.FinalizeResult{Applied: true, CurrentStatus: to}, nil
	}
	cur, err := r.currentStatus(ctx, tx, id)
	if err != nil {
		return repository.FinalizeResult{}, err
	}
	return repository.FinalizeResult{Applied: false, CurrentStatus: cur}, nil
}

func (r *paymentRepo) MarkRefunded(ctx context.Context, tx repository.Tx, id string) (repository.FinalizeResult, error) {
	const q = `UPDATE payments SET status='refunded', updated_at=NOW() WHERE id=$1 AND status='success';`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return repository.FinalizeResult{}, err
		}
		return repository.FinalizeResult{}, fmt.Errorf("mark payment refunded: %w", domain.ErrOperationFailed)
	}
	if tag.RowsAffected() > 0 {
		return repository.FinalizeResult{Applied: true, CurrentStatus: model.PaymentStatusRefunded}, nil
	}
	cur, err := r.currentStatus(ctx, tx, id)
	if err != nil {
		return repository.FinalizeResult{}, err
	}
	return repository.FinalizeResult{Applied: false, CurrentStatus: cur}, nil
}

func (r *paymentRepo) currentStatus(ctx context.Context, tx repository.Tx, id string) (model.PaymentStatus, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT status FROM payments WHERE id=$1;`, id)
	if err != nil {
		return "", err
	}
	var st model.PaymentStatus
	if err := row.Scan(&st); err != nil {
		if err == pgx.ErrNoRows {
			return "", domain.ErrNotFound
		}
		return "", domain.ErrReadDatabaseRow
	}
	return st, nil
}

func (r *paymentRepo) AppendEvent(ctx context.Context, tx repository.Tx, ev *model.PaymentEvent) error {
	const q = `
INSERT INTO payment_events (id, payment_id, at, source, from_status, to_status, note)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	_, err := execSQL(ctx, r.pool, tx, q, ev.ID, ev.PaymentID, ev.At, ev.Source, ev.FromStatus, ev.ToStatus, ev.Note)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return fmt.Errorf("append payment event: %w", domain.ErrOperationFailed)
	}
	return nil
}

func (r *paymentRepo) ListEvents(ctx context.Context, tx repository.Tx, paymentID string) ([]*model.PaymentEvent, error) {
	const q = `SELECT id, payment_id, at, source, from_status, to_status, note
FROM payment_events WHERE payment_id=$1 ORDER BY at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PaymentEvent
	for rows.Next() {
		ev := &model.PaymentEvent{}
		if err := rows.Scan(&ev.ID, &ev.PaymentID, &ev.At, &ev.Source, &ev.FromStatus, &ev.ToStatus, &ev.Note); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	err := row.Scan(&p.ID, &p.AccountID, &p.SubscriptionID, &p.GatewayOrderID,
		&p.GatewayPaymentID, &p.GatewaySignature, &p.Amount, &p.Currency,
		&p.Status, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}
