package repository

import (
	"context"
	"time"

	"mealsnap-backend/internal/domain/model"
)

// SubscriptionRepository is the port for user subscriptions.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.UserSubscription) error
	FindActiveByUser(ctx context.Context, tx Tx, userID string) (*model.UserSubscription, error)
	// CancelActiveByUser transitions every ACTIVE row of the user to
	// CANCELED and returns the number of rows touched.
	CancelActiveByUser(ctx context.Context, tx Tx, userID string, canceledAt time.Time) (int64, error)
}
