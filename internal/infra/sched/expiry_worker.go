package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"lean-protocol-billing/internal/infra/metrics"
	"lean-protocol-billing/internal/usecase"
)

// ExpiryWorker periodically finishes active subscriptions whose end date has
// passed.
type ExpiryWorker struct {
	subUC    usecase.SubscriptionUseCase
	interval time.Duration
	log      *zerolog.Logger
}

func NewExpiryWorker(subUC usecase.SubscriptionUseCase, interval time.Duration, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	exLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{subUC: subUC, interval: interval, log: &exLog}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.subUC.FinishExpired(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("expiry worker error")
				continue
			}
			if n > 0 {
				metrics.IncSubscriptionsExpired(n)
				w.log.Info().Int("count", n).Msg("expired subscriptions finished")
			}
		}
	}
}
