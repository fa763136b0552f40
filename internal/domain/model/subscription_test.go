//go:build !integration

package model

import (
	"errors"
	"testing"
	"time"

	"mealsnap-backend/internal/domain"
)

func TestNewUserSubscription(t *testing.T) {
	sub, err := NewUserSubscription("sub-1", "user-1", "premium")
	if err != nil {
		t.Fatalf("new subscription: %v", err)
	}
	if sub.Status != SubscriptionStatusActive {
		t.Fatalf("want ACTIVE, got %s", sub.Status)
	}
	if sub.CanceledAt != nil {
		t.Fatal("canceled_at must start unset")
	}

	// one calendar month, not 30 days
	want := sub.CreatedAt.AddDate(0, 1, 0)
	if !sub.ExpiresAt.Equal(want) {
		t.Fatalf("want expiry %s, got %s", want, sub.ExpiresAt)
	}
	if d := time.Until(sub.ExpiresAt); d < 27*24*time.Hour || d > 32*24*time.Hour {
		t.Fatalf("expiry not roughly a month out: %s", sub.ExpiresAt)
	}

	if _, err := NewUserSubscription("", "user-1", "premium"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
	if _, err := NewUserSubscription("sub-1", "user-1", ""); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}

func TestNewMealLog(t *testing.T) {
	m, err := NewMealLog("01J5ZX", "user-1", "lunch.jpg", map[string]interface{}{
		"food_name": "bibimbap",
		"calories":  float64(560),
		"protein":   float64(21),
	})
	if err != nil {
		t.Fatalf("new meal log: %v", err)
	}
	if m.FoodName != "bibimbap" || m.Calories != 560 {
		t.Fatalf("named fields not lifted: %+v", m)
	}
	if m.Analysis["protein"] != float64(21) {
		t.Fatal("full analysis payload must be kept")
	}

	// payload without the known keys still logs
	m, err = NewMealLog("01J5ZY", "user-1", "x.jpg", map[string]interface{}{"note": "unknown dish"})
	if err != nil {
		t.Fatalf("new meal log: %v", err)
	}
	if m.FoodName != "" || m.Calories != 0 {
		t.Fatalf("missing keys must stay zero: %+v", m)
	}
}
