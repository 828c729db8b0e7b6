package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"lean-protocol-billing/internal/config"
	pg "lean-protocol-billing/internal/infra/db/postgres"
	"lean-protocol-billing/internal/infra/logging"
	"lean-protocol-billing/internal/usecase"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	tm := pg.NewTxManager(pool)
	planRepo := pg.NewPlanRepo(pool)
	adminRepo := pg.NewAdminRepo(pool)
	planUC := usecase.NewPlanUseCase(planRepo, tm, logger)
	adminUC := usecase.NewAdminUseCase(adminRepo, tm, logger)

	// Plans: skip if any already exist.
	plans, err := planUC.ListAll(ctx)
	if err != nil {
		log.Fatalf("list plans: %v", err)
	}
	if len(plans) > 0 {
		fmt.Printf("%d plans already present. No changes.\n", len(plans))
	} else {
		monthlyOriginal := int64(149_900)
		seed := []usecase.PlanInput{
			{
				Name:          "Monthly",
				Price:         99_900, // paise
				OriginalPrice: &monthlyOriginal,
				DurationDays:  30,
				Features:      []string{"All premium content", "Priority support"},
				IsDefault:     true,
				DisplayOrder:  1,
				IsRefundable:  true,
			},
			{
				Name:         "Quarterly",
				Price:        249_900,
				DurationDays: 90,
				Features:     []string{"All premium content", "Priority support"},
				DisplayOrder: 2,
				IsRefundable: true,
			},
			{
				Name:                  "Day Pass",
				Price:                 19_900,
				DurationDays:          1,
				Features:              []string{"24h access"},
				DisplayOrder:          3,
				AllowMultiplePurchase: true,
			},
		}
		for _, in := range seed {
			p, err := planUC.Create(ctx, in)
			if err != nil {
				log.Fatalf("create plan %q: %v", in.Name, err)
			}
			fmt.Printf("seeded plan: %s (id=%s, days=%d, price=%d paise)\n", p.Name, p.ID, p.DurationDays, p.Price)
		}
	}

	// Bootstrap admin: skip if any exist.
	admins, err := adminUC.List(ctx)
	if err != nil {
		log.Fatalf("list admins: %v", err)
	}
	if len(admins) > 0 {
		fmt.Printf("%d admins already present. No changes.\n", len(admins))
		return
	}
	a, err := adminUC.Create(ctx, "admin@example.com", "Bootstrap Admin")
	if err != nil {
		log.Fatalf("create admin: %v", err)
	}
	fmt.Printf("seeded admin: %s (id=%s)\n", a.Email, a.ID)

	fmt.Println("Seeding complete.")
}
