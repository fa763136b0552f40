//go:build !integration

package usecase

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"mealsnap-backend/internal/domain"
	"mealsnap-backend/internal/domain/model"
	"mealsnap-backend/internal/domain/ports/adapter"
)

type paymentUCTestDeps struct {
	payments *memPaymentRepo
	subs     *memSubRepo
	plans    *memPlanRepo
	provider *mockProvider
	subUC    SubscriptionUseCase
}

func newPaymentUCDeps() *paymentUCTestDeps {
	deps := &paymentUCTestDeps{
		payments: newMemPaymentRepo(),
		subs:     newMemSubRepo(),
		plans:    newMemPlanRepo(),
		provider: &mockProvider{},
	}
	deps.subUC = NewSubscriptionUseCase(deps.subs, deps.plans, deps.payments, &mockTxManager{}, "https://app/success", "https://app/fail", newTestLogger())
	return deps
}

func (d *paymentUCTestDeps) seedPending(t *testing.T, orderID, userID string, amount int64) {
	t.Helper()
	p, err := model.NewPendingPayment("pay-"+orderID, userID, orderID, amount, map[string]interface{}{
		"plan_id":   "premium",
		"plan_name": "Premium",
	})
	if err != nil {
		t.Fatalf("pending payment: %v", err)
	}
	if err := d.payments.Save(context.Background(), nil, p); err != nil {
		t.Fatalf("save pending: %v", err)
	}
}

func TestPaymentUC_Confirm_Validation(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name       string
		paymentKey string
		orderID    string
		amount     int64
	}{
		{"missing paymentKey", "", "ORDER_1", 9900},
		{"missing orderId", "pk_1", "", 9900},
		{"missing amount", "pk_1", "ORDER_1", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deps := newPaymentUCDeps()
			uc := NewPaymentUseCase(deps.payments, deps.provider, deps.subUC, newTestLogger())

			_, err := uc.Confirm(ctx, tc.paymentKey, tc.orderID, tc.amount)
			if !errors.Is(err, domain.ErrInvalidArgument) {
				t.Fatalf("want ErrInvalidArgument, got %v", err)
			}
			if deps.provider.confirmCalls != 0 {
				t.Fatalf("provider must not be called on invalid input, got %d calls", deps.provider.confirmCalls)
			}
		})
	}
}

func TestPaymentUC_Confirm_ProviderFailure(t *testing.T) {
	ctx := context.Background()
	deps := newPaymentUCDeps()
	deps.seedPending(t, "ORDER_FAIL", "user-1", 9900)

	deps.provider.ConfirmFunc = func(ctx context.Context, paymentKey, orderID string, amount int64) (*adapter.ProviderPayment, error) {
		return nil, &adapter.ProviderError{
			StatusCode: http.StatusForbidden,
			Code:       "REJECT_CARD_COMPANY",
			Message:    "card rejected",
		}
	}
	uc := NewPaymentUseCase(deps.payments, deps.provider, deps.subUC, newTestLogger())

	_, err := uc.Confirm(ctx, "pk_bad", "ORDER_FAIL", 9900)
	var pe *adapter.ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != http.StatusForbidden {
		t.Fatalf("want provider error relayed, got %v", err)
	}

	p, err := deps.payments.FindByOrderID(ctx, nil, "ORDER_FAIL")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if p.Status != model.PaymentStatusFailed {
		t.Fatalf("want FAILED, got %s", p.Status)
	}
	if p.FailureCode == nil || *p.FailureCode != "REJECT_CARD_COMPANY" {
		t.Fatalf("failure_code not recorded: %+v", p)
	}
	if p.FailureMessage == nil || *p.FailureMessage != "card rejected" {
		t.Fatalf("failure_message not recorded: %+v", p)
	}
	if p.PaymentKey != nil {
		t.Fatalf("payment key must not be trusted on failure, got %v", *p.PaymentKey)
	}
}

func TestPaymentUC_Confirm_Success(t *testing.T) {
	ctx := context.Background()
	deps := newPaymentUCDeps()
	deps.seedPending(t, "ORDER_1700000000000_ab12cd", "user-1", 9900)

	deps.provider.ConfirmFunc = func(ctx context.Context, paymentKey, orderID string, amount int64) (*adapter.ProviderPayment, error) {
		return &adapter.ProviderPayment{
			PaymentKey:  paymentKey,
			OrderID:     orderID,
			Status:      "DONE",
			Method:      "카드",
			TotalAmount: amount,
			Fields:      map[string]interface{}{"status": "DONE", "method": "카드"},
		}, nil
	}
	uc := NewPaymentUseCase(deps.payments, deps.provider, deps.subUC, newTestLogger())

	pp, err := uc.Confirm(ctx, "pk_1", "ORDER_1700000000000_ab12cd", 9900)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if pp.Status != "DONE" {
		t.Fatalf("want DONE payload, got %s", pp.Status)
	}

	p, err := deps.payments.FindByOrderID(ctx, nil, "ORDER_1700000000000_ab12cd")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if p.Status != model.PaymentStatusDone {
		t.Fatalf("want DONE, got %s", p.Status)
	}
	if p.PaymentKey == nil || *p.PaymentKey != "pk_1" {
		t.Fatalf("payment_key not persisted: %+v", p)
	}
	if p.Method == nil || *p.Method != "카드" {
		t.Fatalf("method not persisted: %+v", p)
	}
	if p.ApprovedAt == nil {
		t.Fatal("approved_at not set")
	}

	// the confirmed payment activates the plan embedded in metadata
	if got := deps.subs.activeCount("user-1"); got != 1 {
		t.Fatalf("want 1 active subscription, got %d", got)
	}
}

func TestPaymentUC_Confirm_Replay_UpdatesNotInserts(t *testing.T) {
	ctx := context.Background()
	deps := newPaymentUCDeps()
	deps.seedPending(t, "ORDER_REPLAY", "user-1", 9900)
	uc := NewPaymentUseCase(deps.payments, deps.provider, deps.subUC, newTestLogger())

	savesBefore := deps.payments.saveCalls
	for i := 0; i < 2; i++ {
		if _, err := uc.Confirm(ctx, "pk_replay", "ORDER_REPLAY", 9900); err != nil {
			t.Fatalf("confirm %d: %v", i, err)
		}
	}
	if deps.payments.saveCalls != savesBefore {
		t.Fatalf("replay must update by order id, not insert: %d new inserts", deps.payments.saveCalls-savesBefore)
	}
	if deps.payments.confirmCalls != 2 {
		t.Fatalf("want 2 update calls, got %d", deps.payments.confirmCalls)
	}
}

func TestPaymentUC_Confirm_MirrorFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	deps := newPaymentUCDeps()
	deps.seedPending(t, "ORDER_LAG", "user-1", 9900)
	deps.payments.confirmErr = domain.ErrOperationFailed
	uc := NewPaymentUseCase(deps.payments, deps.provider, deps.subUC, newTestLogger())

	pp, err := uc.Confirm(ctx, "pk_lag", "ORDER_LAG", 9900)
	if err != nil {
		t.Fatalf("a lagging mirror must not fail a settled payment: %v", err)
	}
	if pp == nil || pp.PaymentKey != "pk_lag" {
		t.Fatalf("provider payload must still be returned: %+v", pp)
	}
}

func TestPaymentUC_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("validation", func(t *testing.T) {
		deps := newPaymentUCDeps()
		uc := NewPaymentUseCase(deps.payments, deps.provider, deps.subUC, newTestLogger())

		if _, err := uc.Cancel(ctx, "", "changed mind", nil); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("want ErrInvalidArgument, got %v", err)
		}
		if _, err := uc.Cancel(ctx, "pk_1", "", nil); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("want ErrInvalidArgument, got %v", err)
		}
		if deps.provider.cancelCalls != 0 {
			t.Fatalf("provider must not be called, got %d calls", deps.provider.cancelCalls)
		}
	})

	t.Run("full cancel yields CANCELED", func(t *testing.T) {
		deps := newPaymentUCDeps()
		deps.seedPending(t, "ORDER_C", "user-1", 9900)
		uc := NewPaymentUseCase(deps.payments, deps.provider, deps.subUC, newTestLogger())

		if _, err := uc.Confirm(ctx, "pk_c", "ORDER_C", 9900); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		if _, err := uc.Cancel(ctx, "pk_c", "customer request", nil); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		p, _ := deps.payments.FindByPaymentKey(ctx, nil, "pk_c")
		if p.Status != model.PaymentStatusCanceled {
			t.Fatalf("want CANCELED, got %s", p.Status)
		}
	})

	t.Run("zero cancel amount is a full cancel", func(t *testing.T) {
		deps := newPaymentUCDeps()
		deps.seedPending(t, "ORDER_Z", "user-1", 9900)
		uc := NewPaymentUseCase(deps.payments, deps.provider, deps.subUC, newTestLogger())

		if _, err := uc.Confirm(ctx, "pk_z", "ORDER_Z", 9900); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		var gotAmount *int64
		deps.provider.CancelFunc = func(ctx context.Context, paymentKey, reason string, amount *int64) (*adapter.ProviderPayment, error) {
			gotAmount = amount
			return &adapter.ProviderPayment{PaymentKey: paymentKey, Status: "CANCELED"}, nil
		}
		zero := int64(0)
		if _, err := uc.Cancel(ctx, "pk_z", "customer request", &zero); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if gotAmount != nil {
			t.Fatalf("zero amount must reach the provider as a full cancel, got %v", *gotAmount)
		}
		p, _ := deps.payments.FindByPaymentKey(ctx, nil, "pk_z")
		if p.Status != model.PaymentStatusCanceled {
			t.Fatalf("want CANCELED, got %s", p.Status)
		}
	})

	t.Run("partial cancel yields PARTIAL_CANCELED", func(t *testing.T) {
		deps := newPaymentUCDeps()
		deps.seedPending(t, "ORDER_PC", "user-1", 9900)
		uc := NewPaymentUseCase(deps.payments, deps.provider, deps.subUC, newTestLogger())

		if _, err := uc.Confirm(ctx, "pk_pc", "ORDER_PC", 9900); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		amount := int64(5000)
		if _, err := uc.Cancel(ctx, "pk_pc", "partial refund", &amount); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		p, _ := deps.payments.FindByPaymentKey(ctx, nil, "pk_pc")
		if p.Status != model.PaymentStatusPartialCanceled {
			t.Fatalf("want PARTIAL_CANCELED, got %s", p.Status)
		}
	})

	t.Run("provider failure leaves local state untouched", func(t *testing.T) {
		deps := newPaymentUCDeps()
		deps.seedPending(t, "ORDER_NC", "user-1", 9900)
		uc := NewPaymentUseCase(deps.payments, deps.provider, deps.subUC, newTestLogger())

		if _, err := uc.Confirm(ctx, "pk_nc", "ORDER_NC", 9900); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		deps.provider.CancelFunc = func(ctx context.Context, paymentKey, reason string, amount *int64) (*adapter.ProviderPayment, error) {
			return nil, &adapter.ProviderError{StatusCode: http.StatusConflict, Code: "ALREADY_CANCELED", Message: "already canceled"}
		}
		if _, err := uc.Cancel(ctx, "pk_nc", "again", nil); err == nil {
			t.Fatal("want provider error")
		}
		p, _ := deps.payments.FindByPaymentKey(ctx, nil, "pk_nc")
		if p.Status != model.PaymentStatusDone {
			t.Fatalf("status must stay DONE on provider failure, got %s", p.Status)
		}
	})
}

func TestPaymentUC_Get(t *testing.T) {
	ctx := context.Background()
	deps := newPaymentUCDeps()
	uc := NewPaymentUseCase(deps.payments, deps.provider, deps.subUC, newTestLogger())

	if _, err := uc.Get(ctx, ""); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
	pp, err := uc.Get(ctx, "pk_1")
	if err != nil || pp.PaymentKey != "pk_1" {
		t.Fatalf("read-through failed: %v %+v", err, pp)
	}
}
