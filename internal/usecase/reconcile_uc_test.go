//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"lean-protocol-billing/internal/domain"
	"lean-protocol-billing/internal/domain/model"
	"lean-protocol-billing/internal/domain/ports/adapter"
	"lean-protocol-billing/internal/domain/ports/repository"
	"lean-protocol-billing/internal/usecase"
)

type reconcileUCTestDeps struct {
	pays    *MockPaymentRepo
	subs    *MockSubscriptionRepo
	gateway *MockPaymentGateway
	tm      *MockTxManager
	locker  *MockLocker
}

func newReconcileUCDeps() *reconcileUCTestDeps {
	return &reconcileUCTestDeps{
		pays:    NewMockPaymentRepo(),
		subs:    NewMockSubscriptionRepo(),
		gateway: &MockPaymentGateway{},
		tm:      NewMockTxManager(),
		locker:  NewMockLocker(),
	}
}

func (d *reconcileUCTestDeps) newUC(t *testing.T) usecase.ReconcileUseCase {
	t.Helper()
	return usecase.NewReconcileUseCase(d.pays, d.subs, d.gateway, d.tm, d.locker, 10*time.Minute, 50, newTestLogger())
}

// seedStale installs a pending subscription and a processing payment old
// enough to be a sweep candidate.
func (d *reconcileUCTestDeps) seedStale(ctx context.Context, id, orderID string) {
	sub := &model.Subscription{ID: "sub-" + id, AccountID: "acct-1", PlanID: "plan-1", Status: model.SubscriptionStatusPendingApproval}
	d.subs.Save(ctx, nil, sub)
	p, _ := model.NewPayment(id, "acct-1", sub.ID, orderID, 99900, "INR")
	p.CreatedAt = time.Now().Add(-time.Hour)
	d.pays.Save(ctx, nil, p)
}

func TestReconcileUseCase_Sweep(t *testing.T) {
	ctx := context.Background()

	t.Run("marks a captured payment success", func(t *testing.T) {
		deps := newReconcileUCDeps()
		deps.seedStale(ctx, "pay-1", "order_abc")
		deps.gateway.FetchOrderPaymentsFunc = func(ctx context.Context, orderID string) ([]adapter.GatewayPayment, error) {
			return []adapter.GatewayPayment{{ID: "pay_gw1", Status: "captured"}}, nil
		}

		report, err := deps.newUC(t).Sweep(ctx, 0, 0)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if report.Processed != 1 {
			t.Fatalf("expected 1 processed, got %d", report.Processed)
		}
		if report.Results[0].Action != usecase.SweepActionMarkedSuccess {
			t.Errorf("expected marked_success, got %s", report.Results[0].Action)
		}

		p, _ := deps.pays.FindByID(ctx, nil, "pay-1")
		if p.Status != model.PaymentStatusSuccess {
			t.Errorf("expected success, got %s", p.Status)
		}
		events, _ := deps.pays.ListEvents(ctx, nil, "pay-1")
		if len(events) != 1 || events[0].Source != model.PaymentSourceSweep {
			t.Errorf("expected one sweep audit event, got %v", events)
		}
	})

	t.Run("marks a failed payment and rejects its subscription", func(t *testing.T) {
		deps := newReconcileUCDeps()
		deps.seedStale(ctx, "pay-1", "order_abc")
		deps.gateway.FetchOrderPaymentsFunc = func(ctx context.Context, orderID string) ([]adapter.GatewayPayment, error) {
			return []adapter.GatewayPayment{{ID: "pay_gw1", Status: "failed", ErrorDescription: "expired card"}}, nil
		}

		report, err := deps.newUC(t).Sweep(ctx, 0, 0)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if report.Results[0].Action != usecase.SweepActionMarkedFailed {
			t.Errorf("expected marked_failed, got %s", report.Results[0].Action)
		}

		sub, _ := deps.subs.FindByID(ctx, nil, "sub-pay-1")
		if sub.Status != model.SubscriptionStatusRejected {
			t.Errorf("expected rejected, got %s", sub.Status)
		}
		if sub.RejectionReason == nil || *sub.RejectionReason != "expired card" {
			t.Error("expected the gateway error description as the rejection reason")
		}
	})

	t.Run("prefers a captured attempt over a failed one", func(t *testing.T) {
		deps := newReconcileUCDeps()
		deps.seedStale(ctx, "pay-1", "order_abc")
		deps.gateway.FetchOrderPaymentsFunc = func(ctx context.Context, orderID string) ([]adapter.GatewayPayment, error) {
			return []adapter.GatewayPayment{
				{ID: "pay_a", Status: "failed", ErrorDescription: "first try failed"},
				{ID: "pay_b", Status: "captured"},
			}, nil
		}

		report, _ := deps.newUC(t).Sweep(ctx, 0, 0)
		if report.Results[0].Action != usecase.SweepActionMarkedSuccess {
			t.Errorf("expected marked_success, got %s", report.Results[0].Action)
		}
		p, _ := deps.pays.FindByID(ctx, nil, "pay-1")
		if p.GatewayPaymentID == nil || *p.GatewayPaymentID != "pay_b" {
			t.Error("expected the captured attempt's id to be stored")
		}
	})

	t.Run("leaves a payment with no terminal gateway state unchanged", func(t *testing.T) {
		deps := newReconcileUCDeps()
		deps.seedStale(ctx, "pay-1", "order_abc")
		deps.gateway.FetchOrderPaymentsFunc = func(ctx context.Context, orderID string) ([]adapter.GatewayPayment, error) {
			return []adapter.GatewayPayment{{ID: "pay_gw1", Status: "authorized"}}, nil
		}

		report, _ := deps.newUC(t).Sweep(ctx, 0, 0)
		if report.Results[0].Action != usecase.SweepActionUnchanged {
			t.Errorf("expected unchanged, got %s", report.Results[0].Action)
		}
		p, _ := deps.pays.FindByID(ctx, nil, "pay-1")
		if p.Status != model.PaymentStatusProcessing {
			t.Errorf("expected processing, got %s", p.Status)
		}
	})

	t.Run("a race lost to another writer is reported as skipped", func(t *testing.T) {
		deps := newReconcileUCDeps()
		deps.seedStale(ctx, "pay-1", "order_abc")
		deps.gateway.FetchOrderPaymentsFunc = func(ctx context.Context, orderID string) ([]adapter.GatewayPayment, error) {
			return []adapter.GatewayPayment{{ID: "pay_gw1", Status: "captured"}}, nil
		}
		deps.pays.FinalizeFunc = func(ctx context.Context, tx repository.Tx, id string, to model.PaymentStatus, gwPaymentID, sig, reason *string) (repository.FinalizeResult, error) {
			return repository.FinalizeResult{Applied: false, CurrentStatus: model.PaymentStatusSuccess}, nil
		}

		report, _ := deps.newUC(t).Sweep(ctx, 0, 0)
		if report.Results[0].Action != usecase.SweepActionSkipped {
			t.Errorf("expected skipped, got %s", report.Results[0].Action)
		}
	})

	t.Run("a gateway error on one item never aborts the sweep", func(t *testing.T) {
		deps := newReconcileUCDeps()
		deps.seedStale(ctx, "pay-1", "order_bad")
		deps.seedStale(ctx, "pay-2", "order_good")
		deps.gateway.FetchOrderPaymentsFunc = func(ctx context.Context, orderID string) ([]adapter.GatewayPayment, error) {
			if orderID == "order_bad" {
				return nil, errors.New("gateway timeout")
			}
			return []adapter.GatewayPayment{{ID: "pay_gw2", Status: "captured"}}, nil
		}

		report, err := deps.newUC(t).Sweep(ctx, 0, 0)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if report.Processed != 2 {
			t.Fatalf("expected both candidates processed, got %d", report.Processed)
		}
		actions := map[string]int{}
		for _, r := range report.Results {
			actions[r.Action]++
		}
		if actions[usecase.SweepActionUnchanged] != 1 || actions[usecase.SweepActionMarkedSuccess] != 1 {
			t.Errorf("expected one unchanged and one marked_success, got %v", actions)
		}
	})

	t.Run("ignores payments newer than the cutoff", func(t *testing.T) {
		deps := newReconcileUCDeps()
		sub := &model.Subscription{ID: "sub-1", AccountID: "acct-1", PlanID: "plan-1", Status: model.SubscriptionStatusPendingApproval}
		deps.subs.Save(ctx, nil, sub)
		p, _ := model.NewPayment("pay-fresh", "acct-1", "sub-1", "order_new", 99900, "INR")
		deps.pays.Save(ctx, nil, p)

		report, err := deps.newUC(t).Sweep(ctx, 10*time.Minute, 0)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if report.Processed != 0 {
			t.Errorf("expected no candidates, got %d", report.Processed)
		}
	})

	t.Run("a held lock turns the sweep away", func(t *testing.T) {
		deps := newReconcileUCDeps()
		if _, err := deps.locker.TryLock(ctx, "reconcile:sweep", time.Minute); err != nil {
			t.Fatalf("seeding the lock failed: %v", err)
		}

		_, err := deps.newUC(t).Sweep(ctx, 0, 0)
		if !errors.Is(err, domain.ErrSweepInProgress) {
			t.Errorf("expected ErrSweepInProgress, got %v", err)
		}
	})

	t.Run("the lock is released after the sweep", func(t *testing.T) {
		deps := newReconcileUCDeps()
		uc := deps.newUC(t)

		if _, err := uc.Sweep(ctx, 0, 0); err != nil {
			t.Fatalf("first sweep failed: %v", err)
		}
		if _, err := uc.Sweep(ctx, 0, 0); err != nil {
			t.Errorf("expected the second sweep to acquire the lock, got %v", err)
		}
	})
}
