package repository

import (
	"context"

	"mealsnap-backend/internal/domain/model"
)

type SubscriptionPlanRepository interface {
	Save(ctx context.Context, tx Tx, p *model.SubscriptionPlan) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.SubscriptionPlan, error)
	// ListActive returns active plans ordered by ascending price.
	ListActive(ctx context.Context, tx Tx) ([]*model.SubscriptionPlan, error)
}
