package usecase

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"lean-protocol-billing/internal/domain"
	"lean-protocol-billing/internal/domain/model"
	"lean-protocol-billing/internal/domain/ports/adapter"
	"lean-protocol-billing/internal/domain/ports/repository"
	"lean-protocol-billing/internal/infra/metrics"
)

// OrderSession is everything the hosted checkout needs to take a payment.
type OrderSession struct {
	OrderID        string
	Amount         int64
	Currency       string
	KeyID          string
	SubscriptionID string
	PaymentID      string
}

// OrderUseCase opens checkout sessions: it admits the purchase against the
// one-blocking-subscription rule, creates the gateway order, and records the
// pending subscription and processing payment in one transaction.
type OrderUseCase interface {
	CreateOrder(ctx context.Context, ident model.Identity, planID string) (*OrderSession, error)
}

var _ OrderUseCase = (*orderUC)(nil)

type orderUC struct {
	plans   repository.PlanRepository
	subs    repository.SubscriptionRepository
	pays    repository.PaymentRepository
	gateway adapter.PaymentGateway
	tm      repository.TransactionManager
	log     *zerolog.Logger
}

func NewOrderUseCase(
	plans repository.PlanRepository,
	subs repository.SubscriptionRepository,
	pays repository.PaymentRepository,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *orderUC {
	return &orderUC{plans: plans, subs: subs, pays: pays, gateway: gateway, tm: tm, log: logger}
}

func hashToInt64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64() & ((1 << 63) - 1))
}

// lockAccount serializes admission checks per account for the duration
// of the transaction. A no-op for non-pgx handles (unit tests).
func lockAccount(ctx context.Context, tx repository.Tx, accountID string) error {
	px, ok := tx.(pgx.Tx)
	if !ok {
		return nil
	}
	_, err := px.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", hashToInt64(accountID))
	return err
}

func (uc *orderUC) CreateOrder(ctx context.Context, ident model.Identity, planID string) (*OrderSession, error) {
	if !ident.CanOwn() {
		return nil, domain.ErrUnauthorized
	}
	accountID := ident.OwnerID()

	plan, err := uc.plans.FindByID(ctx, nil, planID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, domain.ErrNotFound
	}

	var session *OrderSession
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := lockAccount(ctx, tx, accountID); err != nil {
			return err
		}

		// Admission check and creation happen inside one transaction so two
		// concurrent orders cannot both see an empty slot.
		if !plan.AllowMultiplePurchase {
			blocking, err := uc.subs.FindBlockingByAccount(ctx, tx, accountID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			if blocking != nil {
				blockingPlanName := ""
				if bp, err := uc.plans.FindByID(ctx, tx, blocking.PlanID); err == nil {
					blockingPlanName = bp.Name
				}
				metrics.IncAdmissionConflict()
				return &domain.AdmissionConflictError{
					SubscriptionID: blocking.ID,
					Status:         string(blocking.Status),
					PlanName:       blockingPlanName,
					EndDate:        blocking.EndDate,
				}
			}
		}

		sub, err := model.NewSubscription(uuid.NewString(), accountID, plan)
		if err != nil {
			return err
		}

		receipt := "rcpt_" + ulid.Make().String()
		order, err := uc.gateway.CreateOrder(ctx, plan.Price, "INR", receipt, map[string]string{
			"subscription_id": sub.ID,
			"plan_id":         plan.ID,
		})
		if err != nil {
			return fmt.Errorf("create gateway order: %w", err)
		}

		pay, err := model.NewPayment(uuid.NewString(), accountID, sub.ID, order.OrderID, plan.Price, order.Currency)
		if err != nil {
			return err
		}

		if err := uc.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		if err := uc.pays.Save(ctx, tx, pay); err != nil {
			return err
		}
		ev := &model.PaymentEvent{
			ID:         uuid.NewString(),
			PaymentID:  pay.ID,
			At:         time.Now(),
			Source:     model.PaymentSourceCheckout,
			FromStatus: model.PaymentStatusProcessing,
			ToStatus:   model.PaymentStatusProcessing,
			Note:       "gateway order " + order.OrderID + " created",
		}
		if err := uc.pays.AppendEvent(ctx, tx, ev); err != nil {
			return err
		}

		session = &OrderSession{
			OrderID:        order.OrderID,
			Amount:         pay.Amount,
			Currency:       pay.Currency,
			KeyID:          uc.gateway.KeyID(),
			SubscriptionID: sub.ID,
			PaymentID:      pay.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info().
		Str("account_id", accountID).
		Str("plan_id", planID).
		Str("order_id", session.OrderID).
		Str("subscription_id", session.SubscriptionID).
		Msg("checkout order created")
	return session, nil
}
