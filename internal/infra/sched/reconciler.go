package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"lean-protocol-billing/internal/usecase"
)

// SweepWorker periodically runs the payment reconciliation sweep. It covers
// payments whose callback and webhook both went missing, e.g. after a crash
// mid-checkout or a dropped gateway delivery.
type SweepWorker struct {
	uc       usecase.ReconcileUseCase
	interval time.Duration
	log      *zerolog.Logger
}

func NewSweepWorker(uc usecase.ReconcileUseCase, interval time.Duration, logger *zerolog.Logger) *SweepWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	swLog := logger.With().Str("component", "SweepWorker").Logger()
	return &SweepWorker{uc: uc, interval: interval, log: &swLog}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting reconcile sweep worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping reconcile sweep worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *SweepWorker) tick(ctx context.Context) {
	report, err := w.uc.Sweep(ctx, 0, 0)
	if err != nil {
		// Another instance holding the sweep lock is not an error worth noise.
		w.log.Warn().Err(err).Msg("reconcile sweep skipped")
		return
	}
	if report.Processed > 0 {
		w.log.Info().Int("processed", report.Processed).Msg("reconcile sweep finished")
	}
}
