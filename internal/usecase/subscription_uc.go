package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"lean-protocol-billing/internal/domain"
	"lean-protocol-billing/internal/domain/model"
	"lean-protocol-billing/internal/domain/ports/repository"
	"lean-protocol-billing/internal/infra/metrics"
)

// SubscriptionUseCase owns the subscription lifecycle around the admin
// approval gate and the account portal views.
type SubscriptionUseCase interface {
	// Decide applies an admin approval or rejection to a pending subscription.
	Decide(ctx context.Context, subscriptionID, adminID string, approve bool, rejectionReason string) (*model.Subscription, error)
	ToggleAutoRenew(ctx context.Context, ident model.Identity, subscriptionID string, enabled bool) (*model.Subscription, error)
	ListByAccount(ctx context.Context, ident model.Identity) ([]*model.Subscription, error)
	// FinishExpired moves active subscriptions whose end date has passed to
	// expired, returning how many were touched.
	FinishExpired(ctx context.Context) (int, error)
}

var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type subscriptionUC struct {
	subs  repository.SubscriptionRepository
	plans repository.PlanRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
}

func NewSubscriptionUseCase(
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *subscriptionUC {
	return &subscriptionUC{subs: subs, plans: plans, tm: tm, log: logger}
}

func (uc *subscriptionUC) Decide(ctx context.Context, subscriptionID, adminID string, approve bool, rejectionReason string) (*model.Subscription, error) {
	var out *model.Subscription
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.FindByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}

		now := time.Now()
		if approve {
			plan, err := uc.plans.FindByID(ctx, tx, sub.PlanID)
			if err != nil {
				return err
			}
			if err := sub.Approve(adminID, plan, now); err != nil {
				return err
			}
		} else {
			if err := sub.Reject(adminID, rejectionReason, now); err != nil {
				return err
			}
		}
		if err := uc.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	decision := "rejected"
	if approve {
		decision = "approved"
	}
	metrics.IncSubscriptionDecision(decision)
	uc.log.Info().
		Str("subscription_id", subscriptionID).
		Str("admin_id", adminID).
		Str("decision", decision).
		Msg("subscription decision applied")
	return out, nil
}

func (uc *subscriptionUC) ToggleAutoRenew(ctx context.Context, ident model.Identity, subscriptionID string, enabled bool) (*model.Subscription, error) {
	var out *model.Subscription
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.FindByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if !ident.CanOwn() || sub.AccountID != ident.OwnerID() {
			return domain.ErrForbidden
		}
		plan, err := uc.plans.FindByID(ctx, tx, sub.PlanID)
		if err != nil {
			return err
		}
		if err := sub.SetAutoRenew(enabled, plan); err != nil {
			return err
		}
		if err := uc.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (uc *subscriptionUC) FinishExpired(ctx context.Context) (int, error) {
	count := 0
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		due, err := uc.subs.ListActiveEndedBefore(ctx, tx, time.Now(), 200)
		if err != nil {
			return err
		}
		for _, sub := range due {
			if err := sub.Expire(time.Now()); err != nil {
				continue
			}
			if err := uc.subs.Save(ctx, tx, sub); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (uc *subscriptionUC) ListByAccount(ctx context.Context, ident model.Identity) ([]*model.Subscription, error) {
	if !ident.CanOwn() {
		return nil, domain.ErrUnauthorized
	}
	return uc.subs.ListByAccount(ctx, nil, ident.OwnerID())
}
