package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"mealsnap-backend/internal/domain"
	"mealsnap-backend/internal/domain/model"
	"mealsnap-backend/internal/domain/ports/repository"
)

var _ repository.MealLogRepository = (*mealLogRepo)(nil)

type mealLogRepo struct{ pool *pgxpool.Pool }

func NewMealLogRepo(pool *pgxpool.Pool) *mealLogRepo {
	return &mealLogRepo{pool: pool}
}

func (r *mealLogRepo) Save(ctx context.Context, tx repository.Tx, m *model.MealLog) error {
	const q = `
INSERT INTO meal_logs (id, user_id, food_name, calories, image_name, analysis, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`

	_, err := execSQL(ctx, r.pool, tx, q, m.ID, m.UserID, m.FoodName, m.Calories, m.ImageName, m.Analysis, m.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *mealLogRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.MealLog, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `SELECT id, user_id, food_name, calories, image_name, analysis, created_at
FROM meal_logs WHERE user_id=$1 ORDER BY id DESC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.MealLog
	for rows.Next() {
		m := &model.MealLog{}
		if err := rows.Scan(&m.ID, &m.UserID, &m.FoodName, &m.Calories, &m.ImageName, &m.Analysis, &m.CreatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.ErrNotFound
			}
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, m)
	}
	return out, nil
}
