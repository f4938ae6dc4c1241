package cart

import (
	"context"
	"sync"

	"storefront-checkout/internal/domain"
)

// Memory keeps carts in process memory. Stored carts are copied on the way
// in and out so callers never share slices with the store.
type Memory struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
}

func NewMemory() *Memory {
	return &Memory{carts: make(map[string]*domain.Cart)}
}

func (m *Memory) Load(_ context.Context, sessionKey string) (*domain.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.carts[sessionKey]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c.Clone(), nil
}

func (m *Memory) Save(_ context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[cart.SessionKey] = cart.Clone()
	return nil
}

func (m *Memory) Ping(context.Context) error {
	return nil
}
