package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avask/shopflow/internal/cache"
	"github.com/avask/shopflow/internal/domain"
	"github.com/avask/shopflow/internal/orderstore"
	"github.com/avask/shopflow/internal/payment"
)

// memSessionCache implements cache.SessionCache with an atomic claim,
// mirroring the Redis SetNX semantics the broker relies on.
type memSessionCache struct {
	mu       sync.Mutex
	sessions map[string]*domain.CheckoutSession
	index    map[string]string // sessionID -> fingerprint
	claims   map[string]bool
	setErr   error
}

func newMemSessionCache() *memSessionCache {
	return &memSessionCache{
		sessions: make(map[string]*domain.CheckoutSession),
		index:    make(map[string]string),
		claims:   make(map[string]bool),
	}
}

func (m *memSessionCache) Get(_ context.Context, fingerprint string) (*domain.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[fingerprint]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	copied := *session
	return &copied, nil
}

func (m *memSessionCache) Set(_ context.Context, fingerprint string, session *domain.CheckoutSession, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	copied := *session
	m.sessions[fingerprint] = &copied
	m.index[session.SessionID] = fingerprint
	return nil
}

func (m *memSessionCache) Delete(_ context.Context, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, fingerprint)
	return nil
}

func (m *memSessionCache) FingerprintBySessionID(_ context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fingerprint, ok := m.index[sessionID]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return fingerprint, nil
}

func (m *memSessionCache) Claim(_ context.Context, fingerprint string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claims[fingerprint] {
		return false, nil
	}
	m.claims[fingerprint] = true
	return true, nil
}

func (m *memSessionCache) ReleaseClaim(_ context.Context, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, fingerprint)
	return nil
}

func (m *memSessionCache) claimHeld(fingerprint string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claims[fingerprint]
}

// memOrderRepo implements orderstore.OrderRepository for broker tests.
type memOrderRepo struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]*domain.Order
	createErr error
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[uuid.UUID]*domain.Order)}
}

func (m *memOrderRepo) CreateOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	// Same rule as the partial unique index: one PENDING row per fingerprint.
	for _, existing := range m.orders {
		if existing.Fingerprint == order.Fingerprint && existing.Status == domain.OrderStatusPending {
			return orderstore.ErrDuplicateFingerprint
		}
	}
	copied := *order
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now()
	}
	m.orders[order.ID] = &copied
	return nil
}

func (m *memOrderRepo) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, orderstore.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (m *memOrderRepo) ListOrdersByOwner(_ context.Context, ownerID string) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var orders []*domain.Order
	for _, order := range m.orders {
		if order.OwnerID == ownerID {
			copied := *order
			orders = append(orders, &copied)
		}
	}
	return orders, nil
}

func (m *memOrderRepo) FindActiveOrderForOwner(_ context.Context, ownerID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, order := range m.orders {
		if order.OwnerID == ownerID && order.Status.IsActive() {
			copied := *order
			return &copied, nil
		}
	}
	return nil, orderstore.ErrOrderNotFound
}

func (m *memOrderRepo) FindPendingOrderByFingerprint(_ context.Context, fingerprint string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, order := range m.orders {
		if order.Fingerprint == fingerprint && order.Status == domain.OrderStatusPending {
			copied := *order
			return &copied, nil
		}
	}
	return nil, orderstore.ErrOrderNotFound
}

func (m *memOrderRepo) ConfirmOrder(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return false, orderstore.ErrOrderNotFound
	}
	if order.Status != domain.OrderStatusPending {
		return false, nil
	}
	order.Status = domain.OrderStatusConfirmed
	return true, nil
}

func (m *memOrderRepo) CancelOrder(_ context.Context, id uuid.UUID, note string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return false, orderstore.ErrOrderNotFound
	}
	if order.Status != domain.OrderStatusPending {
		return false, nil
	}
	order.Status = domain.OrderStatusCancelled
	order.Note = note
	return true, nil
}

func (m *memOrderRepo) GetUnprocessedEvents(context.Context, int) ([]*orderstore.OutboxEvent, error) {
	return nil, nil
}

func (m *memOrderRepo) MarkEventAsProcessed(context.Context, int64) error {
	return nil
}

func (m *memOrderRepo) RunMigrations(*orderstore.Credentials) error { return nil }
func (m *memOrderRepo) Close() error                                { return nil }

func (m *memOrderRepo) countByStatus(status domain.OrderStatus) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, order := range m.orders {
		if order.Status == status {
			n++
		}
	}
	return n
}

// countingProvider counts provider-side session creations.
type countingProvider struct {
	mu    sync.Mutex
	calls int
	err   error
	delay time.Duration
}

func (p *countingProvider) CreateSession(_ context.Context, req payment.CreateSessionRequest) (*payment.ProviderSession, error) {
	p.mu.Lock()
	p.calls++
	n := p.calls
	err := p.err
	p.mu.Unlock()

	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if err != nil {
		return nil, err
	}
	return &payment.ProviderSession{
		SessionID:    fmt.Sprintf("ps_%d", n),
		ClientSecret: fmt.Sprintf("secret_%d", n),
	}, nil
}

func (p *countingProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
