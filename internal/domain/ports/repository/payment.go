package repository

import (
	"context"
	"time"

	"mealsnap-backend/internal/domain/model"
)

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.Payment, error)
	FindByPaymentKey(ctx context.Context, tx Tx, paymentKey string) (*model.Payment, error)

	// MarkFailed records a rejected confirmation, matched by order id: on
	// failure the provider key is not yet trustworthy.
	MarkFailed(ctx context.Context, tx Tx, orderID, failureCode, failureMessage string) error
	// MarkConfirmed transitions the row to DONE, matched by order id.
	// Replaying the same confirmation updates the existing row.
	MarkConfirmed(ctx context.Context, tx Tx, orderID, paymentKey, method string, meta map[string]interface{}, approvedAt time.Time) error
	// MarkCanceled records a (partial) cancellation, matched by payment key.
	MarkCanceled(ctx context.Context, tx Tx, paymentKey string, status model.PaymentStatus, meta map[string]interface{}) error

	// ListPendingOlderThan feeds the background reconciler.
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
}
