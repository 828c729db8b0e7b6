//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"lean-protocol-billing/internal/domain"
	"lean-protocol-billing/internal/domain/model"
	"lean-protocol-billing/internal/domain/ports/adapter"
	"lean-protocol-billing/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger so test output stays clean.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	KeyIDVal string

	CreateOrderFunc            func(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*adapter.GatewayOrder, error)
	VerifyPaymentSignatureFunc func(orderID, paymentID, signature string) bool
	VerifyWebhookSignatureFunc func(body []byte, signature string) bool
	CreateRefundFunc           func(ctx context.Context, paymentID string, amount int64) (*adapter.GatewayRefund, error)
	FetchOrderPaymentsFunc     func(ctx context.Context, orderID string) ([]adapter.GatewayPayment, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) KeyID() string {
	if m.KeyIDVal == "" {
		return "rzp_test_mock"
	}
	return m.KeyIDVal
}

func (m *MockPaymentGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*adapter.GatewayOrder, error) {
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, amount, currency, receipt, notes)
	}
	return &adapter.GatewayOrder{
		OrderID:  "order_" + uuid.NewString()[:8],
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	}, nil
}

func (m *MockPaymentGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if m.VerifyPaymentSignatureFunc != nil {
		return m.VerifyPaymentSignatureFunc(orderID, paymentID, signature)
	}
	return true
}

func (m *MockPaymentGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	if m.VerifyWebhookSignatureFunc != nil {
		return m.VerifyWebhookSignatureFunc(body, signature)
	}
	return true
}

func (m *MockPaymentGateway) CreateRefund(ctx context.Context, paymentID string, amount int64) (*adapter.GatewayRefund, error) {
	if m.CreateRefundFunc != nil {
		return m.CreateRefundFunc(ctx, paymentID, amount)
	}
	return &adapter.GatewayRefund{RefundID: "rfnd_" + paymentID, Status: "processed"}, nil
}

func (m *MockPaymentGateway) FetchOrderPayments(ctx context.Context, orderID string) ([]adapter.GatewayPayment, error) {
	if m.FetchOrderPaymentsFunc != nil {
		return m.FetchOrderPaymentsFunc(ctx, orderID)
	}
	return nil, nil
}

// =============================
// Repositories
// =============================

// ---- Mock PlanRepository ----

type MockPlanRepo struct {
	mu    sync.Mutex
	plans map[string]*model.Plan

	SaveFunc         func(ctx context.Context, tx repository.Tx, plan *model.Plan) error
	FindByIDFunc     func(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error)
	ClearDefaultFunc func(ctx context.Context, tx repository.Tx, exceptID string) error
}

var _ repository.PlanRepository = (*MockPlanRepo)(nil)

func NewMockPlanRepo() *MockPlanRepo {
	return &MockPlanRepo{plans: map[string]*model.Plan{}}
}

func (r *MockPlanRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, plan)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *plan
	r.plans[plan.ID] = &cp
	return nil
}

func (r *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MockPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Plan
	for _, p := range r.plans {
		if p.IsActive {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockPlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Plan
	for _, p := range r.plans {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MockPlanRepo) ClearDefault(ctx context.Context, tx repository.Tx, exceptID string) error {
	if r.ClearDefaultFunc != nil {
		return r.ClearDefaultFunc(ctx, tx, exceptID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.plans {
		if p.ID != exceptID {
			p.IsDefault = false
		}
	}
	return nil
}

// ---- Mock SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu   sync.Mutex
	subs map[string]*model.Subscription

	SaveFunc                  func(ctx context.Context, tx repository.Tx, sub *model.Subscription) error
	FindByIDFunc              func(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error)
	FindBlockingByAccountFunc func(ctx context.Context, tx repository.Tx, accountID string) (*model.Subscription, error)
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{subs: map[string]*model.Subscription{}}
}

func (r *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, sub)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sub
	r.subs[sub.ID] = &cp
	return nil
}

func (r *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *MockSubscriptionRepo) FindBlockingByAccount(ctx context.Context, tx repository.Tx, accountID string) (*model.Subscription, error) {
	if r.FindBlockingByAccountFunc != nil {
		return r.FindBlockingByAccountFunc(ctx, tx, accountID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.AccountID == accountID && s.Status.Blocking() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockSubscriptionRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string) ([]*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Subscription
	for _, s := range r.subs {
		if s.AccountID == accountID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockSubscriptionRepo) ListActiveEndedBefore(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Subscription
	for _, s := range r.subs {
		if s.Status == model.SubscriptionStatusActive && s.EndDate != nil && s.EndDate.Before(cutoff) {
			cp := *s
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// ---- Mock PaymentRepository ----

// MockPaymentRepo keeps real in-memory state so the conditional-update
// semantics of Finalize can be exercised, with Func hooks for overrides.
type MockPaymentRepo struct {
	mu     sync.Mutex
	pays   map[string]*model.Payment
	events []*model.PaymentEvent

	SaveFunc        func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	FinalizeFunc    func(ctx context.Context, tx repository.Tx, id string, to model.PaymentStatus, gatewayPaymentID, signature, failureReason *string) (repository.FinalizeResult, error)
	AppendEventFunc func(ctx context.Context, tx repository.Tx, ev *model.PaymentEvent) error
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{pays: map[string]*model.Payment{}}
}

func (r *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.pays[p.ID] = &cp
	return nil
}

func (r *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pays[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MockPaymentRepo) FindByGatewayOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pays {
		if p.GatewayOrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) FindLatestCapturedBySubscription(ctx context.Context, tx repository.Tx, subscriptionID string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *model.Payment
	for _, p := range r.pays {
		if p.SubscriptionID != subscriptionID || p.Status != model.PaymentStatusSuccess {
			continue
		}
		if best == nil || p.CreatedAt.After(best.CreatedAt) {
			best = p
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *MockPaymentRepo) ListProcessingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.pays {
		if p.Status == model.PaymentStatusProcessing && p.CreatedAt.Before(cutoff) {
			cp := *p
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *MockPaymentRepo) Finalize(ctx context.Context, tx repository.Tx, id string, to model.PaymentStatus, gatewayPaymentID, signature, failureReason *string) (repository.FinalizeResult, error) {
	if r.FinalizeFunc != nil {
		return r.FinalizeFunc(ctx, tx, id, to, gatewayPaymentID, signature, failureReason)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pays[id]
	if !ok {
		return repository.FinalizeResult{}, domain.ErrNotFound
	}
	if p.Status != model.PaymentStatusProcessing {
		return repository.FinalizeResult{Applied: false, CurrentStatus: p.Status}, nil
	}
	p.Status = to
	if gatewayPaymentID != nil {
		p.GatewayPaymentID = gatewayPaymentID
	}
	if signature != nil {
		p.GatewaySignature = signature
	}
	p.FailureReason = failureReason
	p.UpdatedAt = time.Now()
	return repository.FinalizeResult{Applied: true, CurrentStatus: to}, nil
}

func (r *MockPaymentRepo) MarkRefunded(ctx context.Context, tx repository.Tx, id string) (repository.FinalizeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pays[id]
	if !ok {
		return repository.FinalizeResult{}, domain.ErrNotFound
	}
	if p.Status != model.PaymentStatusSuccess {
		return repository.FinalizeResult{Applied: false, CurrentStatus: p.Status}, nil
	}
	p.Status = model.PaymentStatusRefunded
	p.UpdatedAt = time.Now()
	return repository.FinalizeResult{Applied: true, CurrentStatus: model.PaymentStatusRefunded}, nil
}

func (r *MockPaymentRepo) AppendEvent(ctx context.Context, tx repository.Tx, ev *model.PaymentEvent) error {
	if r.AppendEventFunc != nil {
		return r.AppendEventFunc(ctx, tx, ev)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *ev
	r.events = append(r.events, &cp)
	return nil
}

func (r *MockPaymentRepo) ListEvents(ctx context.Context, tx repository.Tx, paymentID string) ([]*model.PaymentEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PaymentEvent
	for _, ev := range r.events {
		if ev.PaymentID == paymentID {
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- Mock RefundRequestRepository ----

type MockRefundRepo struct {
	mu      sync.Mutex
	refunds map[string]*model.RefundRequest

	SaveFunc func(ctx context.Context, tx repository.Tx, rr *model.RefundRequest) error
}

var _ repository.RefundRequestRepository = (*MockRefundRepo)(nil)

func NewMockRefundRepo() *MockRefundRepo {
	return &MockRefundRepo{refunds: map[string]*model.RefundRequest{}}
}

func (r *MockRefundRepo) Save(ctx context.Context, tx repository.Tx, rr *model.RefundRequest) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, rr)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rr
	r.refunds[rr.ID] = &cp
	return nil
}

func (r *MockRefundRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.RefundRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rr, ok := r.refunds[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rr
	return &cp, nil
}

func (r *MockRefundRepo) FindBySubscription(ctx context.Context, tx repository.Tx, subscriptionID string) (*model.RefundRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rr := range r.refunds {
		if rr.SubscriptionID == subscriptionID {
			cp := *rr
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockRefundRepo) ListPending(ctx context.Context, tx repository.Tx) ([]*model.RefundRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.RefundRequest
	for _, rr := range r.refunds {
		if rr.Status == model.RefundStatusPending {
			cp := *rr
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- Mock AdminRepository ----

type MockAdminRepo struct {
	mu     sync.Mutex
	admins map[string]*model.Admin
}

var _ repository.AdminRepository = (*MockAdminRepo)(nil)

func NewMockAdminRepo() *MockAdminRepo {
	return &MockAdminRepo{admins: map[string]*model.Admin{}}
}

func (r *MockAdminRepo) Save(ctx context.Context, tx repository.Tx, a *model.Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.admins[a.ID] = &cp
	return nil
}

func (r *MockAdminRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.admins[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MockAdminRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Admin
	for _, a := range r.admins {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MockAdminRepo) CountActive(ctx context.Context, tx repository.Tx) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.admins {
		if a.IsActive {
			n++
		}
	}
	return n, nil
}

// =============================
// Transaction manager and locker
// =============================

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

// WithTx runs fn immediately with a nil handle unless a test installs
// WithTxFunc to control transactional behavior.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, nil)
}

type MockLocker struct {
	mu   sync.Mutex
	held map[string]string

	TryLockFunc func(ctx context.Context, key string, ttl time.Duration) (string, error)
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if l.TryLockFunc != nil {
		return l.TryLockFunc(ctx, key, ttl)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[key]; taken {
		return "", domain.ErrSweepInProgress
	}
	token := uuid.NewString()
	l.held[key] = token
	return token, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}
