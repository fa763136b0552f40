package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"mealsnap-backend/internal/domain"
	"mealsnap-backend/internal/domain/model"
	"mealsnap-backend/internal/domain/ports/repository"
	"mealsnap-backend/internal/infra/logging"
)

var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// CheckoutSession carries everything the provider's hosted checkout UI
// needs. The PENDING payment row already exists when this is returned.
type CheckoutSession struct {
	OrderID    string `json:"orderId"`
	OrderName  string `json:"orderName"`
	Amount     int64  `json:"amount"`
	SuccessURL string `json:"successUrl"`
	FailURL    string `json:"failUrl"`
}

type SubscriptionUseCase interface {
	// Checkout generates an order id and write-ahead inserts the PENDING
	// payment row before the provider is ever contacted, so an audit row
	// exists even if the user abandons the hosted checkout.
	Checkout(ctx context.Context, userID, planID string) (*CheckoutSession, error)
	// Activate cancels any existing ACTIVE subscription and inserts a new
	// one expiring a calendar month out, in a single transaction.
	Activate(ctx context.Context, userID, planID string) (*model.UserSubscription, error)
	ActiveForUser(ctx context.Context, userID string) (*model.UserSubscription, error)
}

type subscriptionUC struct {
	subs       repository.SubscriptionRepository
	plans      repository.SubscriptionPlanRepository
	payments   repository.PaymentRepository
	tm         repository.TransactionManager
	successURL string
	failURL    string
	logger     *zerolog.Logger
}

func NewSubscriptionUseCase(
	subs repository.SubscriptionRepository,
	plans repository.SubscriptionPlanRepository,
	payments repository.PaymentRepository,
	tm repository.TransactionManager,
	successURL, failURL string,
	logger *zerolog.Logger,
) *subscriptionUC {
	return &subscriptionUC{
		subs:       subs,
		plans:      plans,
		payments:   payments,
		tm:         tm,
		successURL: successURL,
		failURL:    failURL,
		logger:     logger,
	}
}

func (u *subscriptionUC) Checkout(ctx context.Context, userID, planID string) (*CheckoutSession, error) {
	if userID == "" || planID == "" {
		return nil, domain.ErrInvalidArgument
	}
	log := logging.With(logging.WithUserID(ctx, userID), u.logger)

	plan, err := u.plans.FindByID(ctx, nil, planID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, domain.ErrPlanInactive
	}

	orderID := model.NewOrderID()
	p, err := model.NewPendingPayment(uuid.NewString(), userID, orderID, plan.Price, map[string]interface{}{
		"plan_id":   plan.ID,
		"plan_name": plan.Name,
	})
	if err != nil {
		return nil, err
	}
	if err := u.payments.Save(ctx, nil, p); err != nil {
		return nil, err
	}
	log.Info().Str("order_id", orderID).Str("plan_id", plan.ID).Msg("checkout session opened")

	return &CheckoutSession{
		OrderID:    orderID,
		OrderName:  fmt.Sprintf("%s subscription", plan.Name),
		Amount:     plan.Price,
		SuccessURL: fmt.Sprintf("%s?orderId=%s", u.successURL, orderID),
		FailURL:    fmt.Sprintf("%s?orderId=%s", u.failURL, orderID),
	}, nil
}

func (u *subscriptionUC) Activate(ctx context.Context, userID, planID string) (*model.UserSubscription, error) {
	if userID == "" || planID == "" {
		return nil, domain.ErrInvalidArgument
	}
	log := logging.With(logging.WithUserID(ctx, userID), u.logger)

	sub, err := model.NewUserSubscription(uuid.NewString(), userID, planID)
	if err != nil {
		return nil, err
	}

	// Cancel-then-insert in one transaction keeps "at most one ACTIVE row
	// per user" crash-safe; the partial unique index backs it up.
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		canceled, err := u.subs.CancelActiveByUser(ctx, tx, userID, time.Now())
		if err != nil {
			return err
		}
		if canceled > 0 {
			log.Info().Int64("canceled", canceled).Msg("previous subscription canceled")
		}
		return u.subs.Save(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("plan_id", planID).Time("expires_at", sub.ExpiresAt).Msg("subscription activated")
	return sub, nil
}

func (u *subscriptionUC) ActiveForUser(ctx context.Context, userID string) (*model.UserSubscription, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	sub, err := u.subs.FindActiveByUser(ctx, nil, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNoActiveSubscription
	}
	return sub, err
}
