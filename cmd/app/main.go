package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lean-protocol-billing/internal/config"
	pg "lean-protocol-billing/internal/infra/db/postgres"
	"lean-protocol-billing/internal/infra/gateway/razorpay"
	"lean-protocol-billing/internal/infra/logging"
	"lean-protocol-billing/internal/infra/metrics"
	red "lean-protocol-billing/internal/infra/redis"
	"lean-protocol-billing/internal/infra/sched"
	"lean-protocol-billing/internal/infra/web"
	"lean-protocol-billing/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	limiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Gateway ----
	gw := razorpay.NewClient(
		cfg.Gateway.Razorpay.KeyID,
		cfg.Gateway.Razorpay.KeySecret,
		cfg.Gateway.Razorpay.WebhookSecret,
		cfg.Gateway.Razorpay.BaseURL,
	)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	planRepo := pg.NewPlanRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	payRepo := pg.NewPaymentRepo(pool)
	refundRepo := pg.NewRefundRepo(pool)
	adminRepo := pg.NewAdminRepo(pool)

	// ---- Use cases ----
	orderUC := usecase.NewOrderUseCase(planRepo, subRepo, payRepo, gw, tm, logger)
	payUC := usecase.NewPaymentUseCase(payRepo, subRepo, gw, tm, logger)
	subUC := usecase.NewSubscriptionUseCase(subRepo, planRepo, tm, logger)
	refundUC := usecase.NewRefundUseCase(refundRepo, subRepo, planRepo, payRepo, gw, tm, logger)
	planUC := usecase.NewPlanUseCase(planRepo, tm, logger)
	adminUC := usecase.NewAdminUseCase(adminRepo, tm, logger)
	reconcileUC := usecase.NewReconcileUseCase(
		payRepo, subRepo, gw, tm, locker,
		cfg.Reconcile.StaleAfter, cfg.Reconcile.BatchSize, logger,
	)

	// ---- Background workers ----
	if cfg.Reconcile.Interval > 0 {
		sweeper := sched.NewSweepWorker(reconcileUC, cfg.Reconcile.Interval, logger)
		go func() { _ = sweeper.Run(ctx) }()
	}
	expiry := sched.NewExpiryWorker(subUC, time.Hour, logger)
	go func() { _ = expiry.Run(ctx) }()

	// ---- HTTP server ----
	srv := web.NewServer(orderUC, payUC, subUC, refundUC, planUC, adminUC, reconcileUC,
		cfg.Auth, cfg.RateLimit, limiter, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := server.Shutdown(shutCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
