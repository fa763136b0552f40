package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"mealsnap-backend/internal/domain"
	"mealsnap-backend/internal/domain/model"
	"mealsnap-backend/internal/domain/ports/adapter"
	"mealsnap-backend/internal/domain/ports/repository"
	"mealsnap-backend/internal/infra/logging"
	"mealsnap-backend/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

type PaymentUseCase interface {
	// Confirm settles the payment at the provider and mirrors the outcome
	// into the local payment row. The provider's payload is returned even
	// when the local mirror write fails: once the provider has settled,
	// reporting failure to the caller would be a lie about money.
	Confirm(ctx context.Context, paymentKey, orderID string, amount int64) (*adapter.ProviderPayment, error)
	// Cancel voids the payment (fully when cancelAmount is nil) and mirrors
	// the resulting status by payment key.
	Cancel(ctx context.Context, paymentKey, cancelReason string, cancelAmount *int64) (*adapter.ProviderPayment, error)
	// Get is a read-through proxy for the provider's payment object.
	Get(ctx context.Context, paymentKey string) (*adapter.ProviderPayment, error)
}

type paymentUC struct {
	payments repository.PaymentRepository
	provider adapter.PaymentProvider
	subs     SubscriptionUseCase
	logger   *zerolog.Logger
}

func NewPaymentUseCase(payments repository.PaymentRepository, provider adapter.PaymentProvider, subs SubscriptionUseCase, logger *zerolog.Logger) *paymentUC {
	return &paymentUC{payments: payments, provider: provider, subs: subs, logger: logger}
}

func (u *paymentUC) Confirm(ctx context.Context, paymentKey, orderID string, amount int64) (*adapter.ProviderPayment, error) {
	if paymentKey == "" || orderID == "" || amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	log := logging.With(logging.WithOrderID(ctx, orderID), u.logger)
	defer logging.TraceDuration(log, "PaymentUC.Confirm")()

	pp, err := u.provider.Confirm(ctx, paymentKey, orderID, amount)
	if err != nil {
		var pe *adapter.ProviderError
		if errors.As(err, &pe) {
			// The key is not trustworthy on a rejected confirmation; the
			// failure is recorded against our own order id.
			if dbErr := u.payments.MarkFailed(ctx, nil, orderID, pe.Code, pe.Message); dbErr != nil {
				log.Error().Err(dbErr).Str("failure_code", pe.Code).Msg("failed to record payment failure")
			}
			metrics.IncPayment(string(model.PaymentStatusFailed))
			log.Warn().Int("provider_status", pe.StatusCode).Str("code", pe.Code).Msg("provider rejected confirmation")
		}
		return nil, err
	}

	now := time.Now()
	if dbErr := u.payments.MarkConfirmed(ctx, nil, orderID, pp.PaymentKey, pp.Method, pp.Fields, now); dbErr != nil {
		// Money has moved; the local mirror lagging is the lesser fault.
		// Logged for out-of-band reconciliation, never surfaced.
		metrics.IncMirrorLag("confirm")
		log.Error().Err(dbErr).Str("payment_key", pp.PaymentKey).Msg("payment confirmed at provider but local update failed")
	}
	metrics.IncPayment(string(model.PaymentStatusDone))
	metrics.AddPaymentRevenue("KRW", amount)

	u.activateSubscription(ctx, log, orderID, pp)
	return pp, nil
}

// activateSubscription swaps the buyer's subscription after a DONE
// confirmation. Like the mirror write, a failure here is logged only: the
// reconciler picks the payment up later.
func (u *paymentUC) activateSubscription(ctx context.Context, log *zerolog.Logger, orderID string, pp *adapter.ProviderPayment) {
	if pp.Status != "" && pp.Status != "DONE" {
		return
	}
	p, err := u.payments.FindByOrderID(ctx, nil, orderID)
	if err != nil {
		log.Error().Err(err).Msg("confirmed payment row not found for activation")
		return
	}
	planID, _ := p.Metadata["plan_id"].(string)
	if p.UserID == "" || planID == "" {
		log.Warn().Msg("payment has no user/plan context, skipping activation")
		return
	}
	if _, err := u.subs.Activate(ctx, p.UserID, planID); err != nil {
		log.Error().Err(err).Str("plan_id", planID).Msg("subscription activation failed after confirmed payment")
	}
}

func (u *paymentUC) Cancel(ctx context.Context, paymentKey, cancelReason string, cancelAmount *int64) (*adapter.ProviderPayment, error) {
	if paymentKey == "" || cancelReason == "" {
		return nil, domain.ErrInvalidArgument
	}
	// An explicit zero amount is a full cancellation, same as omitting it.
	if cancelAmount != nil && *cancelAmount == 0 {
		cancelAmount = nil
	}
	log := logging.With(ctx, u.logger)
	defer logging.TraceDuration(log, "PaymentUC.Cancel")()

	pp, err := u.provider.Cancel(ctx, paymentKey, cancelReason, cancelAmount)
	if err != nil {
		// Provider refused; no local state changed, nothing to mirror.
		return nil, err
	}

	status := model.PaymentStatusCanceled
	if cancelAmount != nil {
		status = model.PaymentStatusPartialCanceled
	}
	if dbErr := u.payments.MarkCanceled(ctx, nil, paymentKey, status, pp.Fields); dbErr != nil {
		metrics.IncMirrorLag("cancel")
		log.Error().Err(dbErr).Str("payment_key", paymentKey).Msg("payment canceled at provider but local update failed")
	}
	metrics.IncPayment(string(status))
	return pp, nil
}

func (u *paymentUC) Get(ctx context.Context, paymentKey string) (*adapter.ProviderPayment, error) {
	if paymentKey == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.provider.Get(ctx, paymentKey)
}
