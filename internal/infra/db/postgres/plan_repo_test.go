//go:build integration

package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"lean-protocol-billing/internal/domain/model"
)

func TestPlanRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewPlanRepo(testPool)

	t.Run("active listing honours display order and hides deactivated", func(t *testing.T) {
		cleanup(t)
		second, _ := model.NewPlan(uuid.NewString(), "Quarterly", 249900, 90)
		second.DisplayOrder = 2
		first, _ := model.NewPlan(uuid.NewString(), "Monthly", 99900, 30)
		first.DisplayOrder = 1
		hidden, _ := model.NewPlan(uuid.NewString(), "Legacy", 49900, 30)
		hidden.IsActive = false
		for _, p := range []*model.Plan{second, first, hidden} {
			if err := repo.Save(ctx, nil, p); err != nil {
				t.Fatalf("save plan: %v", err)
			}
		}

		active, err := repo.ListActive(ctx, nil)
		if err != nil {
			t.Fatalf("ListActive failed: %v", err)
		}
		if len(active) != 2 || active[0].ID != first.ID || active[1].ID != second.ID {
			t.Fatalf("active listing wrong: %d rows", len(active))
		}

		all, err := repo.ListAll(ctx, nil)
		if err != nil {
			t.Fatalf("ListAll failed: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("ListAll = %d rows, want 3", len(all))
		}
	})

	t.Run("clear default leaves only the named plan flagged", func(t *testing.T) {
		cleanup(t)
		old, _ := model.NewPlan(uuid.NewString(), "Old Default", 99900, 30)
		old.IsDefault = true
		next, _ := model.NewPlan(uuid.NewString(), "New Default", 149900, 30)
		next.IsDefault = true
		for _, p := range []*model.Plan{old, next} {
			if err := repo.Save(ctx, nil, p); err != nil {
				t.Fatalf("save plan: %v", err)
			}
		}

		if err := repo.ClearDefault(ctx, nil, next.ID); err != nil {
			t.Fatalf("ClearDefault failed: %v", err)
		}

		oldRow, err := repo.FindByID(ctx, nil, old.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if oldRow.IsDefault {
			t.Fatal("old default was not cleared")
		}
		nextRow, err := repo.FindByID(ctx, nil, next.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if !nextRow.IsDefault {
			t.Fatal("named plan lost its default flag")
		}
	})
}
