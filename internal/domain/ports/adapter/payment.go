package adapter

import (
	"context"
	"encoding/json"
	"fmt"
)

// ProviderPayment is the provider's payment object. Raw carries the exact
// response body so handlers can relay it verbatim; Fields is the decoded
// form persisted into the payment row's metadata column.
type ProviderPayment struct {
	PaymentKey  string
	OrderID     string
	OrderName   string
	Status      string
	Method      string
	TotalAmount int64
	Raw         json.RawMessage
	Fields      map[string]interface{}
}

// ProviderError is a non-2xx answer from the payment provider. Handlers
// relay StatusCode and Raw to the caller instead of translating to 500.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
	Raw        json.RawMessage
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider: %s (%s, http %d)", e.Message, e.Code, e.StatusCode)
}

// PaymentProvider is the hex port for the payment gateway.
type PaymentProvider interface {
	Name() string

	// Confirm settles an authorized payment. The triple must match what the
	// provider issued during checkout.
	Confirm(ctx context.Context, paymentKey, orderID string, amount int64) (*ProviderPayment, error)
	// Cancel voids a settled payment. A nil amount means full cancellation.
	Cancel(ctx context.Context, paymentKey, cancelReason string, cancelAmount *int64) (*ProviderPayment, error)
	// Get fetches the payment object by provider key.
	Get(ctx context.Context, paymentKey string) (*ProviderPayment, error)
	// GetByOrderID fetches by our order id; used to reconcile PENDING rows
	// that never received a payment key.
	GetByOrderID(ctx context.Context, orderID string) (*ProviderPayment, error)
}
