package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"lean-protocol-billing/internal/domain"
	"lean-protocol-billing/internal/domain/model"
	"lean-protocol-billing/internal/domain/ports/adapter"
	"lean-protocol-billing/internal/domain/ports/repository"
	"lean-protocol-billing/internal/infra/metrics"
)

// Sweep actions, one per candidate payment.
const (
	SweepActionUnchanged     = "unchanged"
	SweepActionMarkedSuccess = "marked_success"
	SweepActionMarkedFailed  = "marked_failed"
	SweepActionSkipped       = "skipped"
)

type SweepResult struct {
	PaymentID string `json:"paymentId"`
	Action    string `json:"action"`
	Note      string `json:"note,omitempty"`
}

type SweepReport struct {
	Processed int           `json:"processed"`
	Results   []SweepResult `json:"results"`
}

// SweepLocker guards against two sweeps running at once (the admin endpoint
// racing the background ticker). Satisfied by redis.RedisLocker.
type SweepLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

const sweepLockKey = "reconcile:sweep"

// ReconcileUseCase resolves stuck processing payments by asking the gateway
// directly. One gateway query per candidate, sequentially, bounded by the
// batch size; a bad row is reported in its result and never aborts the sweep.
type ReconcileUseCase interface {
	Sweep(ctx context.Context, olderThan time.Duration, batchSize int) (*SweepReport, error)
}

var _ ReconcileUseCase = (*reconcileUC)(nil)

type reconcileUC struct {
	payUC   *paymentSweeper
	pays    repository.PaymentRepository
	locker  SweepLocker
	log     *zerolog.Logger
	defaultStale time.Duration
	defaultBatch int
}

// paymentSweeper bundles what a sweep item needs to apply a terminal mapping.
type paymentSweeper struct {
	pays    repository.PaymentRepository
	subs    repository.SubscriptionRepository
	gateway adapter.PaymentGateway
	tm      repository.TransactionManager
}

func NewReconcileUseCase(
	pays repository.PaymentRepository,
	subs repository.SubscriptionRepository,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	locker SweepLocker,
	defaultStale time.Duration,
	defaultBatch int,
	logger *zerolog.Logger,
) *reconcileUC {
	if defaultStale <= 0 {
		defaultStale = 10 * time.Minute
	}
	if defaultBatch <= 0 {
		defaultBatch = 50
	}
	return &reconcileUC{
		payUC:        &paymentSweeper{pays: pays, subs: subs, gateway: gateway, tm: tm},
		pays:         pays,
		locker:       locker,
		log:          logger,
		defaultStale: defaultStale,
		defaultBatch: defaultBatch,
	}
}

func (uc *reconcileUC) Sweep(ctx context.Context, olderThan time.Duration, batchSize int) (*SweepReport, error) {
	if olderThan <= 0 {
		olderThan = uc.defaultStale
	}
	if batchSize <= 0 {
		batchSize = uc.defaultBatch
	}

	if uc.locker != nil {
		token, err := uc.locker.TryLock(ctx, sweepLockKey, 5*time.Minute)
		if err != nil {
			return nil, err
		}
		defer func() { _ = uc.locker.Unlock(ctx, sweepLockKey, token) }()
	}

	started := time.Now()
	cutoff := started.Add(-olderThan)
	candidates, err := uc.pays.ListProcessingOlderThan(ctx, nil, cutoff, batchSize)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Results: make([]SweepResult, 0, len(candidates))}
	for _, p := range candidates {
		res := uc.payUC.resolve(ctx, p)
		metrics.IncReconcileResult(res.Action)
		report.Results = append(report.Results, res)
		report.Processed++
	}
	metrics.ObserveReconcileSweep(time.Since(started).Seconds())

	uc.log.Info().
		Int("processed", report.Processed).
		Dur("older_than", olderThan).
		Msg("reconciliation sweep finished")
	return report, nil
}

// resolve queries the gateway for one stuck payment and applies the
// success/failed mapping through the same conditional update every other
// writer uses. Per-item failures are reported, never propagated.
func (s *paymentSweeper) resolve(ctx context.Context, p *model.Payment) SweepResult {
	attempts, err := s.gateway.FetchOrderPayments(ctx, p.GatewayOrderID)
	if err != nil {
		return SweepResult{PaymentID: p.ID, Action: SweepActionUnchanged, Note: "gateway query failed: " + err.Error()}
	}
	if len(attempts) == 0 {
		return SweepResult{PaymentID: p.ID, Action: SweepActionUnchanged, Note: "no payment attempts at gateway"}
	}

	best := pickAttempt(attempts)
	switch best.Status {
	case "captured":
		return s.apply(ctx, p, model.PaymentStatusSuccess, best, "")
	case "failed":
		reason := best.ErrorDescription
		if reason == "" {
			reason = "payment failed at gateway"
		}
		return s.apply(ctx, p, model.PaymentStatusFailed, best, reason)
	default:
		return SweepResult{PaymentID: p.ID, Action: SweepActionUnchanged, Note: "gateway status " + best.Status}
	}
}

// pickAttempt prefers a captured attempt, then a failed one, else the first.
func pickAttempt(attempts []adapter.GatewayPayment) adapter.GatewayPayment {
	for _, a := range attempts {
		if a.Status == "captured" {
			return a
		}
	}
	for _, a := range attempts {
		if a.Status == "failed" {
			return a
		}
	}
	return attempts[0]
}

func (s *paymentSweeper) apply(ctx context.Context, p *model.Payment, to model.PaymentStatus, attempt adapter.GatewayPayment, reason string) SweepResult {
	var action string
	err := s.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var gwPaymentID, failureReason *string
		note := "sweep: gateway reports " + attempt.Status
		if to == model.PaymentStatusSuccess {
			gwPaymentID = &attempt.ID
		} else {
			failureReason = &reason
			note = "sweep: " + reason
		}

		res, err := s.pays.Finalize(ctx, tx, p.ID, to, gwPaymentID, nil, failureReason)
		if err != nil {
			return err
		}
		if !res.Applied {
			// Resolved by the callback or webhook between our read and write.
			metrics.IncPaymentRaceLost(string(model.PaymentSourceSweep))
			action = SweepActionSkipped
			return nil
		}
		metrics.IncPaymentFinalized(string(to), string(model.PaymentSourceSweep))

		ev := &model.PaymentEvent{
			ID:         newEventID(),
			PaymentID:  p.ID,
			At:         time.Now(),
			Source:     model.PaymentSourceSweep,
			FromStatus: model.PaymentStatusProcessing,
			ToStatus:   to,
			Note:       note,
		}
		if err := s.pays.AppendEvent(ctx, tx, ev); err != nil {
			return err
		}

		if to == model.PaymentStatusFailed {
			if err := s.closeSubscription(ctx, tx, p.SubscriptionID, reason); err != nil {
				return err
			}
			action = SweepActionMarkedFailed
		} else {
			action = SweepActionMarkedSuccess
		}
		return nil
	})
	if err != nil {
		return SweepResult{PaymentID: p.ID, Action: SweepActionUnchanged, Note: "apply failed: " + err.Error()}
	}
	return SweepResult{PaymentID: p.ID, Action: action}
}

func (s *paymentSweeper) closeSubscription(ctx context.Context, tx repository.Tx, subscriptionID, reason string) error {
	sub, err := s.subs.FindByID(ctx, tx, subscriptionID)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil
		}
		return err
	}
	if sub.Status != model.SubscriptionStatusPendingApproval {
		return nil
	}
	if err := sub.RejectForFailedPayment(reason, time.Now()); err != nil {
		return err
	}
	return s.subs.Save(ctx, tx, sub)
}
