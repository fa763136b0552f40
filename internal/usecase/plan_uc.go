package usecase

import (
	"context"

	"mealsnap-backend/internal/domain/model"
	"mealsnap-backend/internal/domain/ports/repository"
)

var _ PlanUseCase = (*planUC)(nil)

type PlanUseCase interface {
	// ListActive returns purchasable plans, cheapest first.
	ListActive(ctx context.Context) ([]*model.SubscriptionPlan, error)
}

type planUC struct {
	plans repository.SubscriptionPlanRepository
}

func NewPlanUseCase(plans repository.SubscriptionPlanRepository) *planUC {
	return &planUC{plans: plans}
}

func (u *planUC) ListActive(ctx context.Context) ([]*model.SubscriptionPlan, error) {
	return u.plans.ListActive(ctx, nil)
}
