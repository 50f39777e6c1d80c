package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/aiagenz/billing/internal/domain"
	"github.com/aiagenz/billing/pkg/payment"
	"github.com/stretchr/testify/mock"
)

// memStore is an in-memory SubscriptionStore and ExpiryStore with the same
// conditional-update semantics as the SQL repository.
type memStore struct {
	mu            sync.Mutex
	subs          map[string]*domain.Subscription
	writes        int
	confirmations int
	failDeactive  map[string]bool
}

func newMemStore() *memStore {
	return &memStore{subs: make(map[string]*domain.Subscription), failDeactive: make(map[string]bool)}
}

func clone(s *domain.Subscription) *domain.Subscription {
	c := *s
	return &c
}

func (m *memStore) Create(ctx context.Context, sub *domain.Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.OrderCode == sub.OrderCode {
			return domain.ErrOrderCodeConflict
		}
	}
	m.subs[sub.ID] = clone(sub)
	m.writes++
	return nil
}

func (m *memStore) FindByID(_ context.Context, id string) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[id]; ok {
		return clone(s), nil
	}
	return nil, nil
}

func (m *memStore) FindByOrderCode(_ context.Context, orderCode int64) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.byOrderCode(orderCode); s != nil {
		return clone(s), nil
	}
	return nil, nil
}

func (m *memStore) byOrderCode(orderCode int64) *domain.Subscription {
	for _, s := range m.subs {
		if s.OrderCode == orderCode {
			return s
		}
	}
	return nil
}

func (m *memStore) FindCurrentByUser(_ context.Context, userID string, now time.Time) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *domain.Subscription
	for _, s := range m.subs {
		if s.UserID != userID || s.Status != domain.StatusPaid || !s.IsActive || s.EndDate == nil || !s.EndDate.After(now) {
			continue
		}
		if best == nil || s.EndDate.After(*best.EndDate) {
			best = s
		}
	}
	if best == nil {
		return nil, nil
	}
	return clone(best), nil
}

func (m *memStore) ListByUser(_ context.Context, userID string) ([]*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Subscription
	for _, s := range m.subs {
		if s.UserID == userID {
			out = append(out, clone(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) ConfirmPayment(_ context.Context, c domain.PaymentConfirmation) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.byOrderCode(c.OrderCode)
	if s == nil || s.Status != domain.StatusPending {
		return false, nil
	}
	paidAt, start, end := c.PaidAt, c.StartDate, c.EndDate
	s.Status = domain.StatusPaid
	s.TransactionID = c.TransactionID
	s.PaymentMethod = c.PaymentMethod
	s.PaidAt, s.StartDate, s.EndDate = &paidAt, &start, &end
	s.IsActive = true
	s.UpdatedAt = c.UpdatedAt
	m.writes++
	m.confirmations++
	return true, nil
}

func (m *memStore) UpdateStatus(_ context.Context, orderCode int64, from, to domain.SubscriptionStatus, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.byOrderCode(orderCode)
	if s == nil || s.Status != from {
		return false, nil
	}
	s.Status = to
	s.UpdatedAt = now
	m.writes++
	return true, nil
}

func (m *memStore) ListExpired(_ context.Context, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, s := range m.subs {
		if s.IsActive && s.EndDate != nil && !s.EndDate.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memStore) Deactivate(_ context.Context, id string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDeactive[id] {
		return false, errors.New("row locked")
	}
	s, ok := m.subs[id]
	if !ok || !s.IsActive || s.EndDate == nil || s.EndDate.After(now) {
		return false, nil
	}
	s.IsActive = false
	s.UpdatedAt = now
	m.writes++
	return true, nil
}

func (m *memStore) put(s *domain.Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[s.ID] = clone(s)
}

func (m *memStore) get(id string) *domain.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[id]; ok {
		return clone(s)
	}
	return nil
}

func (m *memStore) counts() (writes, confirmations int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes, m.confirmations
}

// memPackages is a mutable package catalogue.
type memPackages struct {
	mu   sync.Mutex
	pkgs map[string]*domain.Package
}

func newMemPackages(pkgs ...*domain.Package) *memPackages {
	m := &memPackages{pkgs: make(map[string]*domain.Package)}
	for _, p := range pkgs {
		m.pkgs[p.ID] = p
	}
	return m
}

func (m *memPackages) FindByID(_ context.Context, id string) (*domain.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pkgs[id]
	if !ok {
		return nil, nil
	}
	c := *p
	c.Limitations = append([]domain.Limitation(nil), p.Limitations...)
	return &c, nil
}

func (m *memPackages) update(id string, fn func(p *domain.Package)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.pkgs[id])
}

type mockGateway struct {
	mock.Mock
}

func (g *mockGateway) CreatePaymentLink(ctx context.Context, amount int64, description, returnURL, cancelURL string) (*payment.LinkResult, error) {
	args := g.Called(ctx, amount, description, returnURL, cancelURL)
	res, _ := args.Get(0).(*payment.LinkResult)
	return res, args.Error(1)
}

func (g *mockGateway) VerifyWebhook(payment.WebhookData, string) bool {
	return true
}

func (g *mockGateway) Name() string {
	return "gateway"
}
