package repository

import (
	"context"

	"mealsnap-backend/internal/domain/model"
)

type MealLogRepository interface {
	Save(ctx context.Context, tx Tx, m *model.MealLog) error
	ListByUser(ctx context.Context, tx Tx, userID string, limit int) ([]*model.MealLog, error)
}
