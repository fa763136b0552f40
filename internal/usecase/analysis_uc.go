package usecase

import (
	"context"
	"errors"
	"io"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"mealsnap-backend/internal/domain/model"
	"mealsnap-backend/internal/domain/ports/adapter"
	"mealsnap-backend/internal/domain/ports/repository"
	"mealsnap-backend/internal/infra/logging"
	"mealsnap-backend/internal/infra/metrics"
)

var _ AnalysisUseCase = (*analysisUC)(nil)

type AnalysisUseCase interface {
	// Analyze forwards the image to the workflow service and, on success,
	// records a meal log. A failed log write never fails the analysis:
	// the user already has their result, same asymmetry as payments.
	Analyze(ctx context.Context, image io.Reader, filename, contentType, userID string) (map[string]interface{}, error)
	RecentMeals(ctx context.Context, userID string, limit int) ([]*model.MealLog, error)
}

type analysisUC struct {
	analyzer adapter.AnalysisService
	meals    repository.MealLogRepository
	logger   *zerolog.Logger
}

func NewAnalysisUseCase(analyzer adapter.AnalysisService, meals repository.MealLogRepository, logger *zerolog.Logger) *analysisUC {
	return &analysisUC{analyzer: analyzer, meals: meals, logger: logger}
}

func (u *analysisUC) Analyze(ctx context.Context, image io.Reader, filename, contentType, userID string) (map[string]interface{}, error) {
	log := logging.With(logging.WithUserID(ctx, userID), u.logger)

	data, err := u.analyzer.Analyze(ctx, image, filename, contentType, userID)
	if err != nil {
		var ae *adapter.AnalysisError
		if errors.As(err, &ae) {
			metrics.IncAnalysis(ae.Code)
		}
		return nil, err
	}
	metrics.IncAnalysis("success")

	if userID != "" && userID != "anonymous" {
		meal, mErr := model.NewMealLog(ulid.Make().String(), userID, filename, data)
		if mErr == nil {
			mErr = u.meals.Save(ctx, nil, meal)
		}
		if mErr != nil {
			log.Error().Err(mErr).Msg("analysis succeeded but meal log write failed")
		}
	}
	return data, nil
}

func (u *analysisUC) RecentMeals(ctx context.Context, userID string, limit int) ([]*model.MealLog, error) {
	return u.meals.ListByUser(ctx, nil, userID, limit)
}
