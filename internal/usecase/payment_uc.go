package usecase

import (
	"context"
	"encoding/json"
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

// PaymentUseCase converges the three independent terminal signals (client
// verification callback, gateway webhook, reconciliation sweep) onto the
// payment ledger. Every terminal write goes through the repository's
// conditional update, so a late or duplicate signal can never overwrite a
// finalized row.
type PaymentUseCase interface {
	// Verify handles the client-side checkout callback. Idempotent when the
	// payment is already success.
	Verify(ctx context.Context, ident model.Identity, orderID, paymentID, signature string) (subscriptionID string, err error)
	// ReportFailure handles the client reporting a failed/dismissed checkout.
	ReportFailure(ctx context.Context, ident model.Identity, orderID, reason string) error
	// HandleWebhook processes a signed gateway event body.
	HandleWebhook(ctx context.Context, body []byte, signature string) error
}

var _ PaymentUseCase = (*paymentUC)(nil)

type paymentUC struct {
	pays    repository.PaymentRepository
	subs    repository.SubscriptionRepository
	gateway adapter.PaymentGateway
	tm      repository.TransactionManager
	log     *zerolog.Logger
}

func NewPaymentUseCase(
	pays repository.PaymentRepository,
	subs repository.SubscriptionRepository,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *paymentUC {
	return &paymentUC{pays: pays, subs: subs, gateway: gateway, tm: tm, log: logger}
}

func (uc *paymentUC) Verify(ctx context.Context, ident model.Identity, orderID, paymentID, signature string) (string, error) {
	p, err := uc.pays.FindByGatewayOrderID(ctx, nil, orderID)
	if err != nil {
		return "", err
	}
	if !ident.CanOwn() || p.AccountID != ident.OwnerID() {
		return "", domain.ErrForbidden
	}
	if !uc.gateway.VerifyPaymentSignature(orderID, paymentID, signature) {
		return "", domain.ErrSignatureInvalid
	}
	if p.Status == model.PaymentStatusSuccess {
		// Duplicate callback; nothing to write.
		return p.SubscriptionID, nil
	}

	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		res, err := uc.pays.Finalize(ctx, tx, p.ID, model.PaymentStatusSuccess, &paymentID, &signature, nil)
		if err != nil {
			return err
		}
		if !res.Applied {
			metrics.IncPaymentRaceLost(string(model.PaymentSourceCallback))
			if res.CurrentStatus == model.PaymentStatusSuccess {
				return nil // another writer already confirmed capture
			}
			return domain.ErrAlreadyProcessed
		}
		metrics.IncPaymentFinalized(string(model.PaymentStatusSuccess), string(model.PaymentSourceCallback))
		return uc.appendEvent(ctx, tx, p.ID, model.PaymentSourceCallback,
			model.PaymentStatusProcessing, model.PaymentStatusSuccess, "signature verified")
	})
	if err != nil {
		return "", err
	}

	uc.log.Info().Str("order_id", orderID).Str("payment_id", p.ID).Msg("payment verified")
	return p.SubscriptionID, nil
}

func (uc *paymentUC) ReportFailure(ctx context.Context, ident model.Identity, orderID, reason string) error {
	p, err := uc.pays.FindByGatewayOrderID(ctx, nil, orderID)
	if err != nil {
		return err
	}
	if !ident.CanOwn() || p.AccountID != ident.OwnerID() {
		return domain.ErrForbidden
	}
	if p.Status == model.PaymentStatusSuccess {
		// A capture signal already won; the client-side failure is stale.
		return nil
	}
	if reason == "" {
		reason = "payment failed during checkout"
	}

	return uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		res, err := uc.pays.Finalize(ctx, tx, p.ID, model.PaymentStatusFailed, nil, nil, &reason)
		if err != nil {
			return err
		}
		if !res.Applied {
			metrics.IncPaymentRaceLost(string(model.PaymentSourceCallback))
			return nil // already finalized by another writer either way
		}
		metrics.IncPaymentFinalized(string(model.PaymentStatusFailed), string(model.PaymentSourceCallback))
		if err := uc.appendEvent(ctx, tx, p.ID, model.PaymentSourceCallback,
			model.PaymentStatusProcessing, model.PaymentStatusFailed, reason); err != nil {
			return err
		}
		return uc.closeSubscriptionForFailure(ctx, tx, p.SubscriptionID, reason, false)
	})
}

// razorpayEvent is the subset of the webhook envelope this service consumes.
type razorpayEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

func (uc *paymentUC) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !uc.gateway.VerifyWebhookSignature(body, signature) {
		metrics.IncWebhookEvent("unknown", "bad_signature")
		return domain.ErrUnauthorized
	}

	var ev razorpayEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("parse webhook body: %w", domain.ErrInvalidArgument)
	}

	switch ev.Event {
	case "payment.captured":
		return uc.webhookCaptured(ctx, ev)
	case "payment.failed":
		return uc.webhookFailed(ctx, ev)
	default:
		// Unhandled event types are acked so the gateway stops retrying.
		metrics.IncWebhookEvent(ev.Event, "ignored")
		return nil
	}
}

func (uc *paymentUC) webhookCaptured(ctx context.Context, ev razorpayEvent) error {
	entity := ev.Payload.Payment.Entity
	if entity.OrderID == "" {
		return fmt.Errorf("captured event missing order_id: %w", domain.ErrInvalidArgument)
	}
	p, err := uc.pays.FindByGatewayOrderID(ctx, nil, entity.OrderID)
	if err != nil {
		metrics.IncWebhookEvent(ev.Event, "unknown_order")
		return err
	}

	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		gwPaymentID := entity.ID
		res, err := uc.pays.Finalize(ctx, tx, p.ID, model.PaymentStatusSuccess, &gwPaymentID, nil, nil)
		if err != nil {
			return err
		}
		if !res.Applied {
			metrics.IncPaymentRaceLost(string(model.PaymentSourceWebhook))
			return nil // ledger already terminal; webhook is a duplicate or late
		}
		metrics.IncPaymentFinalized(string(model.PaymentStatusSuccess), string(model.PaymentSourceWebhook))
		return uc.appendEvent(ctx, tx, p.ID, model.PaymentSourceWebhook,
			model.PaymentStatusProcessing, model.PaymentStatusSuccess, "payment.captured")
	})
	if err != nil {
		return err
	}
	metrics.IncWebhookEvent(ev.Event, "ok")
	return nil
}

func (uc *paymentUC) webhookFailed(ctx context.Context, ev razorpayEvent) error {
	entity := ev.Payload.Payment.Entity
	if entity.OrderID == "" {
		return fmt.Errorf("failed event missing order_id: %w", domain.ErrInvalidArgument)
	}
	p, err := uc.pays.FindByGatewayOrderID(ctx, nil, entity.OrderID)
	if err != nil {
		metrics.IncWebhookEvent(ev.Event, "unknown_order")
		return err
	}
	reason := entity.ErrorDescription
	if reason == "" {
		reason = "payment failed at gateway"
	}

	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		res, err := uc.pays.Finalize(ctx, tx, p.ID, model.PaymentStatusFailed, nil, nil, &reason)
		if err != nil {
			return err
		}
		if !res.Applied {
			metrics.IncPaymentRaceLost(string(model.PaymentSourceWebhook))
			return nil
		}
		metrics.IncPaymentFinalized(string(model.PaymentStatusFailed), string(model.PaymentSourceWebhook))
		if err := uc.appendEvent(ctx, tx, p.ID, model.PaymentSourceWebhook,
			model.PaymentStatusProcessing, model.PaymentStatusFailed, reason); err != nil {
			return err
		}
		return uc.closeSubscriptionForFailure(ctx, tx, p.SubscriptionID, reason, true)
	})
	if err != nil {
		return err
	}
	metrics.IncWebhookEvent(ev.Event, "ok")
	return nil
}

func newEventID() string { return uuid.NewString() }

func (uc *paymentUC) appendEvent(ctx context.Context, tx repository.Tx, paymentID string, source model.PaymentSource, from, to model.PaymentStatus, note string) error {
	return uc.pays.AppendEvent(ctx, tx, &model.PaymentEvent{
		ID:         uuid.NewString(),
		PaymentID:  paymentID,
		At:         time.Now(),
		Source:     source,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
	})
}

// closeSubscriptionForFailure cascades a failed payment onto its pending
// subscription so the admission slot reopens. Gateway-reported failures
// reject; client-reported ones cancel.
func (uc *paymentUC) closeSubscriptionForFailure(ctx context.Context, tx repository.Tx, subscriptionID, reason string, gatewayReported bool) error {
	sub, err := uc.subs.FindByID(ctx, tx, subscriptionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if sub.Status != model.SubscriptionStatusPendingApproval {
		return nil
	}
	now := time.Now()
	if gatewayReported {
		if err := sub.RejectForFailedPayment(reason, now); err != nil {
			return err
		}
	} else {
		if err := sub.Cancel(now); err != nil {
			return err
		}
	}
	return uc.subs.Save(ctx, tx, sub)
}
