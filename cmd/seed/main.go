package main

import (
	"context"
	"flag"
	"log"

	"mealsnap-backend/internal/config"
	"mealsnap-backend/internal/domain/model"
	pg "mealsnap-backend/internal/infra/db/postgres"
)

// Seeds the subscription plans. Safe to rerun: plan rows upsert by id.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	repo := pg.NewPlanRepo(pool)

	seeds := []struct {
		id, name, description string
		price                 int64
		features              []string
	}{
		{"basic", "Basic", "Meal logging with daily analysis", 4900, []string{
			"10 photo analyses per day",
			"Nutrition summary",
		}},
		{"premium", "Premium", "Unlimited analysis and meal history", 9900, []string{
			"Unlimited photo analyses",
			"Full meal history",
			"Weekly nutrition report",
		}},
		{"pro", "Pro", "Everything in Premium plus coaching", 19900, []string{
			"Everything in Premium",
			"Personalized coaching",
			"Priority analysis queue",
		}},
	}

	for _, s := range seeds {
		plan, err := model.NewSubscriptionPlan(s.id, s.name, s.description, s.price, "monthly", s.features)
		if err != nil {
			log.Fatalf("plan %s: %v", s.id, err)
		}
		if err := repo.Save(ctx, nil, plan); err != nil {
			log.Fatalf("save plan %s: %v", s.id, err)
		}
		log.Printf("seeded plan %s (%d KRW)", s.id, s.price)
	}
}
