package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"mealsnap-backend/internal/domain/model"
	"mealsnap-backend/internal/domain/ports/adapter"
	"mealsnap-backend/internal/domain/ports/repository"
	"mealsnap-backend/internal/infra/metrics"
	"mealsnap-backend/internal/infra/worker"
)

// SubscriptionActivator grants the plan a settled payment paid for.
// Satisfied by usecase.SubscriptionUseCase.
type SubscriptionActivator interface {
	Activate(ctx context.Context, userID, planID string) (*model.UserSubscription, error)
	ActiveForUser(ctx context.Context, userID string) (*model.UserSubscription, error)
}

// PaymentReconciler periodically scans for stale PENDING payments and
// mirrors the provider's authoritative state. This covers abandoned
// checkouts, crashed confirmations and the logged-only mirror failures:
// the request path never retries, reconciliation happens here. Mirroring
// a DONE payment also runs the subscription activation the request path
// may have lost.
type PaymentReconciler struct {
	payments   repository.PaymentRepository
	provider   adapter.PaymentProvider
	subs       SubscriptionActivator
	pool       *worker.Pool
	interval   time.Duration
	staleAfter time.Duration
	logger     *zerolog.Logger
}

func NewPaymentReconciler(payments repository.PaymentRepository, provider adapter.PaymentProvider, subs SubscriptionActivator, pool *worker.Pool, interval, staleAfter time.Duration, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &PaymentReconciler{
		payments:   payments,
		provider:   provider,
		subs:       subs,
		pool:       pool,
		interval:   interval,
		staleAfter: staleAfter,
		logger:     logger,
	}
}

func (w *PaymentReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.payments.ListPendingOlderThan(ctx, nil, cutoff, 200)
	if err != nil {
		w.logger.Error().Err(err).Msg("reconciler: list pending failed")
		return
	}
	for _, p := range pending {
		p := p
		if err := w.pool.Submit(func(ctx context.Context) error {
			return w.reconcile(ctx, p)
		}); err != nil {
			w.logger.Warn().Err(err).Str("order_id", p.OrderID).Msg("reconciler: submit failed")
		}
	}
}

func (w *PaymentReconciler) reconcile(ctx context.Context, p *model.Payment) error {
	pp, err := w.provider.GetByOrderID(ctx, p.OrderID)
	if err != nil {
		var pe *adapter.ProviderError
		if errors.As(err, &pe) && pe.StatusCode == 404 {
			// The provider never saw this order: checkout was abandoned
			// before authorization. Close the row so it stops rescanning.
			if dbErr := w.payments.MarkFailed(ctx, nil, p.OrderID, "PAY_PROCESS_ABORTED", "checkout abandoned before authorization"); dbErr != nil {
				return dbErr
			}
			metrics.IncReconcilerSweep("abandoned")
			w.logger.Info().Str("order_id", p.OrderID).Msg("reconciler: abandoned checkout closed")
			return nil
		}
		metrics.IncReconcilerSweep("provider_error")
		return err
	}

	switch pp.Status {
	case "DONE":
		if dbErr := w.payments.MarkConfirmed(ctx, nil, p.OrderID, pp.PaymentKey, pp.Method, pp.Fields, time.Now()); dbErr != nil {
			return dbErr
		}
		metrics.IncReconcilerSweep("confirmed")
		w.logger.Info().Str("order_id", p.OrderID).Msg("reconciler: mirrored DONE payment")
		w.activateSubscription(ctx, p)
	case "CANCELED":
		if dbErr := w.payments.MarkCanceled(ctx, nil, pp.PaymentKey, model.PaymentStatusCanceled, pp.Fields); dbErr != nil {
			return dbErr
		}
		metrics.IncReconcilerSweep("canceled")
	case "PARTIAL_CANCELED":
		if dbErr := w.payments.MarkCanceled(ctx, nil, pp.PaymentKey, model.PaymentStatusPartialCanceled, pp.Fields); dbErr != nil {
			return dbErr
		}
		metrics.IncReconcilerSweep("partial_canceled")
	case "ABORTED", "EXPIRED":
		if dbErr := w.payments.MarkFailed(ctx, nil, p.OrderID, pp.Status, "closed by provider"); dbErr != nil {
			return dbErr
		}
		metrics.IncReconcilerSweep("failed")
	default:
		// still in progress at the provider; next sweep will see it again
		metrics.IncReconcilerSweep("still_pending")
	}
	return nil
}

// activateSubscription finishes what a confirmed payment started. The
// request path may already have activated before its mirror write failed,
// so a subscription already ACTIVE on the same plan is left untouched.
func (w *PaymentReconciler) activateSubscription(ctx context.Context, p *model.Payment) {
	planID, _ := p.Metadata["plan_id"].(string)
	if p.UserID == "" || planID == "" {
		w.logger.Warn().Str("order_id", p.OrderID).Msg("reconciler: payment has no user/plan context, skipping activation")
		return
	}
	if cur, err := w.subs.ActiveForUser(ctx, p.UserID); err == nil && cur.PlanID == planID {
		return
	}
	if _, err := w.subs.Activate(ctx, p.UserID, planID); err != nil {
		w.logger.Error().Err(err).Str("order_id", p.OrderID).Str("plan_id", planID).Msg("reconciler: subscription activation failed")
		return
	}
	w.logger.Info().Str("order_id", p.OrderID).Str("plan_id", planID).Msg("reconciler: subscription activated")
}
