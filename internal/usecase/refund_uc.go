package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"lean-protocol-billing/internal/domain"
	"lean-protocol-billing/internal/domain/model"
	"lean-protocol-billing/internal/domain/ports/adapter"
	"lean-protocol-billing/internal/domain/ports/repository"
	"lean-protocol-billing/internal/infra/metrics"
)

// RefundUseCase owns the refund request lifecycle: account-initiated
// request, admin decision, gateway execution, and the cascade onto the
// payment ledger and subscription.
type RefundUseCase interface {
	Request(ctx context.Context, ident model.Identity, subscriptionID, reason string) (*model.RefundRequest, error)
	Decide(ctx context.Context, refundRequestID, adminID string, approve bool, notes string) (*model.RefundRequest, error)
	ListPending(ctx context.Context) ([]*model.RefundRequest, error)
}

var _ RefundUseCase = (*refundUC)(nil)

type refundUC struct {
	refunds repository.RefundRequestRepository
	subs    repository.SubscriptionRepository
	plans   repository.PlanRepository
	pays    repository.PaymentRepository
	gateway adapter.PaymentGateway
	tm      repository.TransactionManager
	log     *zerolog.Logger
}

func NewRefundUseCase(
	refunds repository.RefundRequestRepository,
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	pays repository.PaymentRepository,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *refundUC {
	return &refundUC{refunds: refunds, subs: subs, plans: plans, pays: pays, gateway: gateway, tm: tm, log: logger}
}

func (uc *refundUC) Request(ctx context.Context, ident model.Identity, subscriptionID, reason string) (*model.RefundRequest, error) {
	if !ident.CanOwn() {
		return nil, domain.ErrUnauthorized
	}

	var out *model.RefundRequest
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.FindByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if sub.AccountID != ident.OwnerID() {
			return domain.ErrForbidden
		}
		plan, err := uc.plans.FindByID(ctx, tx, sub.PlanID)
		if err != nil {
			return err
		}
		if !plan.IsRefundable {
			return domain.ErrNotRefundable
		}

		// One request per subscription, checked inside the tx.
		if existing, err := uc.refunds.FindBySubscription(ctx, tx, subscriptionID); err == nil && existing != nil {
			return domain.ErrDuplicateRequest
		} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		rr, err := model.NewRefundRequest(uuid.NewString(), sub.AccountID, subscriptionID, reason)
		if err != nil {
			return err
		}
		if err := uc.refunds.Save(ctx, tx, rr); err != nil {
			return err
		}
		out = rr
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info().
		Str("subscription_id", subscriptionID).
		Str("refund_request_id", out.ID).
		Msg("refund requested")
	return out, nil
}

func (uc *refundUC) Decide(ctx context.Context, refundRequestID, adminID string, approve bool, notes string) (*model.RefundRequest, error) {
	rr, err := uc.refunds.FindByID(ctx, nil, refundRequestID)
	if err != nil {
		return nil, err
	}
	if rr.Status != model.RefundStatusPending {
		return nil, domain.ErrAlreadyProcessed
	}

	if !approve {
		err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			fresh, err := uc.refunds.FindByID(ctx, tx, refundRequestID)
			if err != nil {
				return err
			}
			if err := fresh.Reject(notes, time.Now()); err != nil {
				return err
			}
			rr = fresh
			return uc.refunds.Save(ctx, tx, fresh)
		})
		if err != nil {
			return nil, err
		}
		metrics.IncRefundDecision("rejected")
		return rr, nil
	}

	// Approval path: the captured payment must exist before we touch the
	// gateway, and nothing local is mutated until the gateway refund
	// succeeded.
	payment, err := uc.pays.FindLatestCapturedBySubscription(ctx, nil, rr.SubscriptionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoCapturedPayment
		}
		return nil, err
	}
	if payment.GatewayPaymentID == nil || *payment.GatewayPaymentID == "" {
		return nil, domain.ErrNoCapturedPayment
	}

	refund, err := uc.gateway.CreateRefund(ctx, *payment.GatewayPaymentID, payment.Amount)
	if err != nil {
		return nil, fmt.Errorf("gateway refund: %w", err)
	}

	// Gateway refund is issued; the three local writes below must land
	// together. If this transaction fails the money has already moved, so
	// the error log carries everything needed for manual reconciliation.
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		fresh, err := uc.refunds.FindByID(ctx, tx, refundRequestID)
		if err != nil {
			return err
		}
		now := time.Now()
		if err := fresh.Approve(payment.Amount, refund.RefundID, notes, now); err != nil {
			return err
		}
		if err := uc.refunds.Save(ctx, tx, fresh); err != nil {
			return err
		}

		res, err := uc.pays.MarkRefunded(ctx, tx, payment.ID)
		if err != nil {
			return err
		}
		if !res.Applied {
			return domain.ErrInvalidTransition
		}
		ev := &model.PaymentEvent{
			ID:         newEventID(),
			PaymentID:  payment.ID,
			At:         now,
			Source:     model.PaymentSourceRefund,
			FromStatus: model.PaymentStatusSuccess,
			ToStatus:   model.PaymentStatusRefunded,
			Note:       "refund " + refund.RefundID,
		}
		if err := uc.pays.AppendEvent(ctx, tx, ev); err != nil {
			return err
		}

		sub, err := uc.subs.FindByID(ctx, tx, rr.SubscriptionID)
		if err != nil {
			return err
		}
		if sub.Status == model.SubscriptionStatusActive {
			if err := sub.Expire(now); err != nil {
				return err
			}
			if err := uc.subs.Save(ctx, tx, sub); err != nil {
				return err
			}
		}
		rr = fresh
		return nil
	})
	if err != nil {
		metrics.IncRefundDrift()
		uc.log.Error().
			Err(err).
			Str("refund_request_id", refundRequestID).
			Str("gateway_refund_id", refund.RefundID).
			Str("gateway_payment_id", *payment.GatewayPaymentID).
			Int64("amount", payment.Amount).
			Msg("refund issued at gateway but local commit failed; reconcile manually")
		return nil, err
	}

	metrics.IncRefundDecision("approved")
	uc.log.Info().
		Str("refund_request_id", refundRequestID).
		Str("admin_id", adminID).
		Str("gateway_refund_id", refund.RefundID).
		Msg("refund approved")
	return rr, nil
}

func (uc *refundUC) ListPending(ctx context.Context) ([]*model.RefundRequest, error) {
	return uc.refunds.ListPending(ctx, nil)
}
