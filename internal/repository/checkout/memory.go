package checkout

import (
	"context"
	"sync"

	"storefront-checkout/internal/domain"
)

type Memory struct {
	mu       sync.RWMutex
	sessions map[string]domain.CheckoutSession
	order    []string
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]domain.CheckoutSession)}
}

func (m *Memory) Create(_ context.Context, s domain.CheckoutSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.sessions[s.ID] = copySession(s)
	m.order = append(m.order, s.ID)
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*domain.CheckoutSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := copySession(s)
	return &out, nil
}

func (m *Memory) Latest(_ context.Context, shopperKey string) (*domain.CheckoutSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		s := m.sessions[m.order[i]]
		if s.ShopperKey == shopperKey {
			out := copySession(s)
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *Memory) GetByAuthorization(_ context.Context, handleID string) (*domain.CheckoutSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if handleID != "" && s.AuthorizationHandleID == handleID {
			out := copySession(s)
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *Memory) Update(_ context.Context, s domain.CheckoutSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.sessions[s.ID]
	if !ok {
		return domain.ErrNotFound
	}
	s.CreatedAt = existing.CreatedAt
	m.sessions[s.ID] = copySession(s)
	return nil
}

func copySession(s domain.CheckoutSession) domain.CheckoutSession {
	if s.Shipping != nil {
		info := *s.Shipping
		s.Shipping = &info
	}
	s.Pending = false
	s.ClientSecret = ""
	return s
}
