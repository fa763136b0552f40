package model

import (
	"time"

	"mealsnap-backend/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "ACTIVE"
	SubscriptionStatusCanceled SubscriptionStatus = "CANCELED"
)

// UserSubscription is a user's entitlement to a plan. At most one ACTIVE
// row may exist per user; activating a new one cancels the previous row
// in the same transaction.
type UserSubscription struct {
	ID         string // UUID
	UserID     string
	PlanID     string
	Status     SubscriptionStatus
	ExpiresAt  time.Time
	CanceledAt *time.Time
	CreatedAt  time.Time
}

// NewUserSubscription creates an ACTIVE subscription expiring one calendar
// month from now.
func NewUserSubscription(id, userID, planID string) (*UserSubscription, error) {
	if id == "" || userID == "" || planID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &UserSubscription{
		ID:        id,
		UserID:    userID,
		PlanID:    planID,
		Status:    SubscriptionStatusActive,
		ExpiresAt: now.AddDate(0, 1, 0),
		CreatedAt: now,
	}, nil
}
