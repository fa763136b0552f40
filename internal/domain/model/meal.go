package model

import (
	"time"

	"mealsnap-backend/internal/domain"
)

// MealLog is one analyzed meal photo. Analysis holds the workflow service's
// structured nutrition payload as returned; the named fields are lifted out
// for listing without unpacking JSON.
type MealLog struct {
	ID        string // ULID, sorts by creation time
	UserID    string
	FoodName  string
	Calories  float64
	ImageName string
	Analysis  map[string]interface{}
	CreatedAt time.Time
}

func NewMealLog(id, userID, imageName string, analysis map[string]interface{}) (*MealLog, error) {
	if id == "" || userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	m := &MealLog{
		ID:        id,
		UserID:    userID,
		ImageName: imageName,
		Analysis:  analysis,
		CreatedAt: time.Now(),
	}
	if v, ok := analysis["food_name"].(string); ok {
		m.FoodName = v
	}
	if v, ok := analysis["calories"].(float64); ok {
		m.Calories = v
	}
	return m, nil
}
