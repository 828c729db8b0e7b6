package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"lean-protocol-billing/internal/config"
	"lean-protocol-billing/internal/infra/redis"
	"lean-protocol-billing/internal/usecase"
)

// Server wires the account, webhook, and admin HTTP surfaces to the usecases.
type Server struct {
	orderUC   usecase.OrderUseCase
	payUC     usecase.PaymentUseCase
	subUC     usecase.SubscriptionUseCase
	refundUC  usecase.RefundUseCase
	planUC    usecase.PlanUseCase
	adminUC   usecase.AdminUseCase
	reconcile usecase.ReconcileUseCase

	auth      config.AuthConfig
	rateCfg   config.RateLimitConfig
	limiter   *redis.RateLimiter
	log       *zerolog.Logger
}

func NewServer(
	orderUC usecase.OrderUseCase,
	payUC usecase.PaymentUseCase,
	subUC usecase.SubscriptionUseCase,
	refundUC usecase.RefundUseCase,
	planUC usecase.PlanUseCase,
	adminUC usecase.AdminUseCase,
	reconcile usecase.ReconcileUseCase,
	auth config.AuthConfig,
	rateCfg config.RateLimitConfig,
	limiter *redis.RateLimiter,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		orderUC:   orderUC,
		payUC:     payUC,
		subUC:     subUC,
		refundUC:  refundUC,
		planUC:    planUC,
		adminUC:   adminUC,
		reconcile: reconcile,
		auth:      auth,
		rateCfg:   rateCfg,
		limiter:   limiter,
		log:       logger,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Raw-body webhook sits outside the identity chain.
		r.Post("/webhooks/razorpay", s.handleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(s.identityMiddleware)

			r.Get("/plans", s.handlePlansList)

			r.Group(func(r chi.Router) {
				r.Use(s.requireOwner)
				r.With(s.rateLimit("order", s.rateCfg.OrderPerMinute)).
					Post("/payment/create-order", s.handleCreateOrder)
				r.Post("/payment/verify", s.handleVerifyPayment)
				r.Post("/payment/fail", s.handleFailPayment)
				r.With(s.rateLimit("refund", s.rateCfg.RefundPerMinute)).
					Post("/refund/request", s.handleRefundRequest)
				r.Get("/subscription", s.handleSubscriptionList)
				r.Post("/subscription/{id}/auto-renew", s.handleAutoRenew)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.adminMiddleware)
			r.Post("/subscriptions/{id}/decision", s.handleSubscriptionDecision)
			r.Post("/refunds/{id}/decision", s.handleRefundDecision)
			r.Get("/refunds", s.handleRefundsPending)
			r.Post("/payments/reconcile", s.handleReconcile)
			r.Get("/plans", s.handleAdminPlansList)
			r.Post("/plans", s.handlePlanCreate)
			r.Put("/plans/{id}", s.handlePlanUpdate)
			r.Delete("/plans/{id}", s.handlePlanDelete)
			r.Get("/admins", s.handleAdminsList)
			r.Post("/admins", s.handleAdminCreate)
			r.Post("/admins/{id}/deactivate", s.handleAdminDeactivate)
		})
	})

	return r
}

// rateLimit applies a fixed-window per-identity limit. Skipped when no
// redis client is configured (unit tests).
func (s *Server) rateLimit(action string, perMinute int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			ident := IdentityFrom(r.Context())
			key := redis.ActionKey(ident.OwnerID(), action)
			ok, err := s.limiter.Allow(r.Context(), key, perMinute, time.Minute)
			if err != nil {
				// Redis being down should not block payments.
				s.log.Warn().Err(err).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
