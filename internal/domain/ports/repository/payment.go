package repository

import (
	"context"
	"time"

	"lean-protocol-billing/internal/domain/model"
)

// FinalizeResult reports whether the guarded terminal write was applied or
// lost the race to another writer.
type FinalizeResult struct {
	Applied bool
	// Status the row held when the write was attempted. Equal to the target
	// status when Applied is false because another writer already got there.
	CurrentStatus model.PaymentStatus
}

// PaymentRepository is the port for the payment ledger. All terminal
// transitions out of processing go through Finalize, a single conditional
// update (WHERE status='processing') shared by every writer so a losing
// racer can never clobber a terminal state.
type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByGatewayOrderID(ctx context.Context, tx Tx, orderID string) (*model.Payment, error)
	// FindLatestCapturedBySubscription returns the most recent success
	// payment for a subscription, or ErrNotFound.
	FindLatestCapturedBySubscription(ctx context.Context, tx Tx, subscriptionID string) (*model.Payment, error)
	// ListProcessingOlderThan returns processing payments created before the
	// cutoff, oldest first, bounded by limit.
	ListProcessingOlderThan(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.Payment, error)
	// Finalize conditionally moves a processing payment to a terminal status,
	// storing the gateway payment id/signature or failure reason as given.
	Finalize(ctx context.Context, tx Tx, id string, to model.PaymentStatus, gatewayPaymentID, signature, failureReason *string) (FinalizeResult, error)
	// MarkRefunded moves a success payment to refunded; same conditional
	// pattern, guarded on status='success'.
	MarkRefunded(ctx context.Context, tx Tx, id string) (FinalizeResult, error)
	AppendEvent(ctx context.Context, tx Tx, ev *model.PaymentEvent) error
	ListEvents(ctx context.Context, tx Tx, paymentID string) ([]*model.PaymentEvent, error)
}
