//go:build !integration

package usecase

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"mealsnap-backend/internal/domain"
	"mealsnap-backend/internal/domain/model"
	"mealsnap-backend/internal/domain/ports/adapter"
	"mealsnap-backend/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memPaymentRepo is a small in-memory implementation used by unit tests.
type memPaymentRepo struct {
	mu      sync.RWMutex
	byOrder map[string]*model.Payment // map by OrderID

	saveErr      error // simulate insert failures
	confirmErr   error // simulate mirror-write failures after provider success
	cancelErr    error
	failedErr    error
	saveCalls    int
	confirmCalls int
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{byOrder: make(map[string]*model.Payment)}
}

func (m *memPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	if existing, ok := m.byOrder[p.OrderID]; ok && existing.ID != p.ID {
		return domain.ErrAlreadyExists
	}
	cp := *p
	m.byOrder[p.OrderID] = &cp
	return nil
}

func (m *memPaymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byOrder[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) FindByPaymentKey(ctx context.Context, tx repository.Tx, paymentKey string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.byOrder {
		if p.PaymentKey != nil && *p.PaymentKey == paymentKey {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) MarkFailed(ctx context.Context, tx repository.Tx, orderID, failureCode, failureMessage string) error {
	if m.failedErr != nil {
		return m.failedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byOrder[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	p.Status = model.PaymentStatusFailed
	p.FailureCode = &failureCode
	p.FailureMessage = &failureMessage
	p.FailedAt = &now
	p.UpdatedAt = now
	return nil
}

func (m *memPaymentRepo) MarkConfirmed(ctx context.Context, tx repository.Tx, orderID, paymentKey, method string, meta map[string]interface{}, approvedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmCalls++
	if m.confirmErr != nil {
		return m.confirmErr
	}
	p, ok := m.byOrder[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = model.PaymentStatusDone
	p.PaymentKey = &paymentKey
	p.Method = &method
	p.Metadata = mergeMeta(p.Metadata, meta)
	p.ApprovedAt = &approvedAt
	p.UpdatedAt = time.Now()
	return nil
}

// mergeMeta mimics the jsonb overwrite while keeping the local plan context
// the checkout embedded, as the real repo stores provider fields alongside.
func mergeMeta(local, provider map[string]interface{}) map[string]interface{} {
	if local == nil {
		return provider
	}
	for k, v := range provider {
		local[k] = v
	}
	return local
}

func (m *memPaymentRepo) MarkCanceled(ctx context.Context, tx repository.Tx, paymentKey string, status model.PaymentStatus, meta map[string]interface{}) error {
	if m.cancelErr != nil {
		return m.cancelErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byOrder {
		if p.PaymentKey != nil && *p.PaymentKey == paymentKey {
			p.Status = status
			p.Metadata = mergeMeta(p.Metadata, meta)
			p.UpdatedAt = time.Now()
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Payment
	for _, p := range m.byOrder {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// memSubRepo provides in-memory subscriptions for tests.
type memSubRepo struct {
	mu   sync.RWMutex
	subs []*model.UserSubscription
}

func newMemSubRepo() *memSubRepo {
	return &memSubRepo{}
}

func (m *memSubRepo) Save(ctx context.Context, tx repository.Tx, s *model.UserSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.subs = append(m.subs, &cp)
	return nil
}

func (m *memSubRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.UserSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.subs) - 1; i >= 0; i-- {
		if m.subs[i].UserID == userID && m.subs[i].Status == model.SubscriptionStatusActive {
			cp := *m.subs[i]
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSubRepo) CancelActiveByUser(ctx context.Context, tx repository.Tx, userID string, canceledAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.subs {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive {
			s.Status = model.SubscriptionStatusCanceled
			at := canceledAt
			s.CanceledAt = &at
			n++
		}
	}
	return n, nil
}

func (m *memSubRepo) activeCount(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.subs {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive {
			n++
		}
	}
	return n
}

// memPlanRepo stores plans by id.
type memPlanRepo struct {
	mu    sync.RWMutex
	plans map[string]*model.SubscriptionPlan
}

func newMemPlanRepo() *memPlanRepo {
	return &memPlanRepo{plans: make(map[string]*model.SubscriptionPlan)}
}

func (m *memPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.SubscriptionPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.plans[p.ID] = &cp
	return nil
}

func (m *memPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.SubscriptionPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.SubscriptionPlan
	for _, p := range m.plans {
		if p.IsActive {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// memMealRepo records saved meal logs.
type memMealRepo struct {
	mu      sync.RWMutex
	meals   []*model.MealLog
	saveErr error
}

func newMemMealRepo() *memMealRepo { return &memMealRepo{} }

func (m *memMealRepo) Save(ctx context.Context, tx repository.Tx, meal *model.MealLog) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *meal
	m.meals = append(m.meals, &cp)
	return nil
}

func (m *memMealRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.MealLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.MealLog
	for _, meal := range m.meals {
		if meal.UserID == userID {
			cp := *meal
			out = append(out, &cp)
		}
	}
	return out, nil
}

// mockTxManager runs the callback without a real transaction.
type mockTxManager struct{}

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// mockProvider counts calls and returns canned responses per operation.
type mockProvider struct {
	mu sync.Mutex

	ConfirmFunc func(ctx context.Context, paymentKey, orderID string, amount int64) (*adapter.ProviderPayment, error)
	CancelFunc  func(ctx context.Context, paymentKey, reason string, amount *int64) (*adapter.ProviderPayment, error)
	GetFunc     func(ctx context.Context, paymentKey string) (*adapter.ProviderPayment, error)
	ByOrderFunc func(ctx context.Context, orderID string) (*adapter.ProviderPayment, error)

	confirmCalls int
	cancelCalls  int
	getCalls     int
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Confirm(ctx context.Context, paymentKey, orderID string, amount int64) (*adapter.ProviderPayment, error) {
	m.mu.Lock()
	m.confirmCalls++
	m.mu.Unlock()
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, paymentKey, orderID, amount)
	}
	return &adapter.ProviderPayment{PaymentKey: paymentKey, OrderID: orderID, Status: "DONE", TotalAmount: amount}, nil
}

func (m *mockProvider) Cancel(ctx context.Context, paymentKey, reason string, amount *int64) (*adapter.ProviderPayment, error) {
	m.mu.Lock()
	m.cancelCalls++
	m.mu.Unlock()
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, paymentKey, reason, amount)
	}
	status := "CANCELED"
	if amount != nil {
		status = "PARTIAL_CANCELED"
	}
	return &adapter.ProviderPayment{PaymentKey: paymentKey, Status: status}, nil
}

func (m *mockProvider) Get(ctx context.Context, paymentKey string) (*adapter.ProviderPayment, error) {
	m.mu.Lock()
	m.getCalls++
	m.mu.Unlock()
	if m.GetFunc != nil {
		return m.GetFunc(ctx, paymentKey)
	}
	return &adapter.ProviderPayment{PaymentKey: paymentKey, Status: "DONE"}, nil
}

func (m *mockProvider) GetByOrderID(ctx context.Context, orderID string) (*adapter.ProviderPayment, error) {
	if m.ByOrderFunc != nil {
		return m.ByOrderFunc(ctx, orderID)
	}
	return &adapter.ProviderPayment{OrderID: orderID, Status: "DONE"}, nil
}

// mockAnalyzer returns a canned analysis result or error.
type mockAnalyzer struct {
	result map[string]interface{}
	err    error
	calls  int
}

func (m *mockAnalyzer) Analyze(ctx context.Context, image io.Reader, filename, contentType, userID string) (map[string]interface{}, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}
