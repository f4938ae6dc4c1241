package order

import (
	"context"
	"sync"

	"storefront-checkout/internal/domain"
)

type Memory struct {
	mu       sync.Mutex
	outcomes map[string]domain.OrderOutcome
}

func NewMemory() *Memory {
	return &Memory{outcomes: make(map[string]domain.OrderOutcome)}
}

func (m *Memory) Get(_ context.Context, handleID string) (*domain.OrderOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.outcomes[handleID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}

func (m *Memory) Record(_ context.Context, o domain.OrderOutcome) (domain.OrderOutcome, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.outcomes[o.AuthorizationHandleID]
	if !ok {
		o.Completed = false
		m.outcomes[o.AuthorizationHandleID] = o
		return o, true, nil
	}
	if !o.Status.Supersedes(existing.Status) {
		return existing, false, nil
	}
	existing.Status = o.Status
	existing.ResolvedAt = o.ResolvedAt
	existing.Completed = false
	m.outcomes[o.AuthorizationHandleID] = existing
	return existing, true, nil
}

func (m *Memory) MarkCompleted(_ context.Context, handleID string, status domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.outcomes[handleID]
	if !ok {
		return domain.ErrNotFound
	}
	if existing.Status == status {
		existing.Completed = true
		m.outcomes[handleID] = existing
	}
	return nil
}
