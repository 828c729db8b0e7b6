//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"lean-protocol-billing/internal/domain"
	"lean-protocol-billing/internal/domain/model"
)

func TestRefundRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewRefundRepo(testPool)
	subRepo := NewSubscriptionRepo(testPool)
	planRepo := NewPlanRepo(testPool)

	plan, _ := model.NewPlan(uuid.NewString(), "Monthly", 99900, 30)

	newSub := func(t *testing.T, accountID string) *model.Subscription {
		t.Helper()
		sub, err := model.NewSubscription(uuid.NewString(), accountID, plan)
		if err != nil {
			t.Fatalf("new subscription: %v", err)
		}
		if err := subRepo.Save(ctx, nil, sub); err != nil {
			t.Fatalf("save subscription: %v", err)
		}
		return sub
	}

	setupPrerequisites := func(t *testing.T) {
		cleanup(t)
		if err := planRepo.Save(ctx, nil, plan); err != nil {
			t.Fatalf("failed to save plan: %v", err)
		}
	}

	t.Run("approval fields round-trip", func(t *testing.T) {
		setupPrerequisites(t)
		sub := newSub(t, "acc-1")
		rr, _ := model.NewRefundRequest(uuid.NewString(), "acc-1", sub.ID, "not what I expected")
		if err := repo.Save(ctx, nil, rr); err != nil {
			t.Fatalf("save refund request: %v", err)
		}

		if err := rr.Approve(99900, "rfnd_1", "verified", time.Now()); err != nil {
			t.Fatalf("approve: %v", err)
		}
		if err := repo.Save(ctx, nil, rr); err != nil {
			t.Fatalf("save approved request: %v", err)
		}

		found, err := repo.FindByID(ctx, nil, rr.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if found.Status != model.RefundStatusApproved {
			t.Fatalf("status = %s, want approved", found.Status)
		}
		if found.RefundAmount == nil || *found.RefundAmount != 99900 {
			t.Fatal("refund amount did not round-trip")
		}
		if found.GatewayRefundID == nil || *found.GatewayRefundID != "rfnd_1" || found.ProcessedAt == nil {
			t.Fatalf("approval fields did not round-trip: %+v", found)
		}
	})

	t.Run("lookup by subscription backs the one-request guard", func(t *testing.T) {
		setupPrerequisites(t)
		sub := newSub(t, "acc-1")
		other := newSub(t, "acc-2")
		rr, _ := model.NewRefundRequest(uuid.NewString(), "acc-1", sub.ID, "changed my mind")
		if err := repo.Save(ctx, nil, rr); err != nil {
			t.Fatalf("save refund request: %v", err)
		}

		found, err := repo.FindBySubscription(ctx, nil, sub.ID)
		if err != nil {
			t.Fatalf("FindBySubscription failed: %v", err)
		}
		if found.ID != rr.ID {
			t.Fatal("did not find the request for its subscription")
		}
		if _, err := repo.FindBySubscription(ctx, nil, other.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("untouched subscription lookup = %v, want ErrNotFound", err)
		}
	})

	t.Run("pending listing is oldest first and excludes decided", func(t *testing.T) {
		setupPrerequisites(t)
		older, _ := model.NewRefundRequest(uuid.NewString(), "acc-1", newSub(t, "acc-1").ID, "first")
		older.RequestedAt = time.Now().Add(-time.Hour)
		newer, _ := model.NewRefundRequest(uuid.NewString(), "acc-2", newSub(t, "acc-2").ID, "second")
		decided, _ := model.NewRefundRequest(uuid.NewString(), "acc-3", newSub(t, "acc-3").ID, "third")
		if err := decided.Reject("no grounds", time.Now()); err != nil {
			t.Fatalf("reject: %v", err)
		}
		for _, rr := range []*model.RefundRequest{newer, older, decided} {
			if err := repo.Save(ctx, nil, rr); err != nil {
				t.Fatalf("save refund request: %v", err)
			}
		}

		pending, err := repo.ListPending(ctx, nil)
		if err != nil {
			t.Fatalf("ListPending failed: %v", err)
		}
		if len(pending) != 2 || pending[0].ID != older.ID || pending[1].ID != newer.ID {
			t.Fatalf("pending listing wrong: %d rows", len(pending))
		}
	})
}
