package model

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"mealsnap-backend/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending         PaymentStatus = "PENDING"          // row written ahead of checkout; provider not yet contacted or not yet settled
	PaymentStatusDone            PaymentStatus = "DONE"             // confirmed and settled at the provider
	PaymentStatusCanceled        PaymentStatus = "CANCELED"         // fully canceled at the provider
	PaymentStatusPartialCanceled PaymentStatus = "PARTIAL_CANCELED" // partially canceled at the provider
	PaymentStatusFailed          PaymentStatus = "FAILED"           // provider rejected confirmation
)

// Payment mirrors one provider transaction. The row is created PENDING with
// OrderID set before the provider is ever contacted; PaymentKey and a
// terminal status are written only after a provider round trip. Rows are
// never deleted, the status column is the audit trail.
type Payment struct {
	ID             string // UUID
	UserID         string
	OrderID        string  // locally generated, unique, known before checkout
	PaymentKey     *string // provider-issued, set on successful confirmation
	Amount         int64   // whole currency units (KRW has no minor unit)
	Status         PaymentStatus
	Method         *string                // provider payment method, set on confirmation
	Metadata       map[string]interface{} // full provider response plus local context (plan_id, plan_name)
	FailureCode    *string
	FailureMessage *string
	ApprovedAt     *time.Time
	FailedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewPendingPayment builds the write-ahead row inserted before redirecting
// the user to the provider's hosted checkout.
func NewPendingPayment(id, userID, orderID string, amount int64, meta map[string]interface{}) (*Payment, error) {
	if id == "" || orderID == "" || amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Payment{
		ID:        id,
		UserID:    userID,
		OrderID:   orderID,
		Amount:    amount,
		Status:    PaymentStatusPending,
		Metadata:  meta,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NewOrderID returns "ORDER_<unix millis>_<random base36 suffix>".
// Uniqueness is additionally enforced by the order_id unique constraint.
func NewOrderID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	suffix := strconv.FormatUint(binary.BigEndian.Uint64(b[:]), 36)
	return fmt.Sprintf("ORDER_%d_%s", time.Now().UnixMilli(), suffix)
}
