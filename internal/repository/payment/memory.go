package payment

import (
	"context"
	"sync"

	"storefront-checkout/internal/domain"
)

type Memory struct {
	mu       sync.RWMutex
	byHandle map[string]domain.PaymentAuthorization
	byKey    map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		byHandle: make(map[string]domain.PaymentAuthorization),
		byKey:    make(map[string]string),
	}
}

func (m *Memory) Create(_ context.Context, a domain.PaymentAuthorization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byHandle[a.HandleID]; ok {
		return domain.ErrAlreadyExists
	}
	if _, ok := m.byKey[a.IdempotencyKey]; ok {
		return domain.ErrAlreadyExists
	}
	m.byHandle[a.HandleID] = a
	m.byKey[a.IdempotencyKey] = a.HandleID
	return nil
}

func (m *Memory) GetByHandle(_ context.Context, handleID string) (*domain.PaymentAuthorization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byHandle[handleID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (m *Memory) GetByIdempotencyKey(ctx context.Context, key string) (*domain.PaymentAuthorization, error) {
	m.mu.RLock()
	handle, ok := m.byKey[key]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m.GetByHandle(ctx, handle)
}

func (m *Memory) UpdateStatus(_ context.Context, handleID string, status domain.AuthorizationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byHandle[handleID]
	if !ok {
		return domain.ErrNotFound
	}
	a.Status = status
	m.byHandle[handleID] = a
	return nil
}
