package model

import (
	"time"

	"mealsnap-backend/internal/domain"
)

// SubscriptionPlan is a purchasable plan with a monthly price in KRW.
type SubscriptionPlan struct {
	ID           string
	Name         string
	Description  string
	Price        int64 // KRW per billing cycle
	BillingCycle string
	Features     []string
	IsActive     bool
	CreatedAt    time.Time
}

func (p *SubscriptionPlan) IsZero() bool { return p == nil || p.ID == "" }

// NewSubscriptionPlan validates and constructs a plan.
func NewSubscriptionPlan(id, name, description string, price int64, billingCycle string, features []string) (*SubscriptionPlan, error) {
	if id == "" || name == "" || price <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if billingCycle == "" {
		billingCycle = "monthly"
	}
	return &SubscriptionPlan{
		ID:           id,
		Name:         name,
		Description:  description,
		Price:        price,
		BillingCycle: billingCycle,
		Features:     features,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}, nil
}
