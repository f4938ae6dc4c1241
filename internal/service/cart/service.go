package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront-checkout/internal/domain"
	cartrepo "storefront-checkout/internal/repository/cart"

	"github.com/sirupsen/logrus"
)

// Service applies cart mutations as load, mutate, save. Writers for the same
// session are serialised in-process; across processes the last save wins.
type Service struct {
	store  cartrepo.Store
	logger logrus.FieldLogger
	now    func() time.Time
	locks  *sessionLocks
}

func New(store cartrepo.Store, logger logrus.FieldLogger) *Service {
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		logger = l
	}
	return &Service{
		store:  store,
		logger: logger.WithField("component", "cart_service"),
		now:    func() time.Time { return time.Now().UTC() },
		locks:  newSessionLocks(),
	}
}

// Get returns the shopper's cart. Unreadable or missing data yields an empty
// cart.
func (s *Service) Get(ctx context.Context, shopper domain.Shopper) (*domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.load(ctx, shopper.SessionKey()), nil
}

// Add merges line into the cart by (product, size, color).
func (s *Service) Add(ctx context.Context, shopper domain.Shopper, line domain.CartLine) (*domain.Cart, error) {
	return s.mutate(ctx, shopper, func(c *domain.Cart, now time.Time) (bool, error) {
		if err := c.Add(line, now); err != nil {
			return false, err
		}
		return true, nil
	})
}

// SetQuantity replaces a line's quantity. Quantities below 1 and unknown keys
// leave the cart unchanged.
func (s *Service) SetQuantity(ctx context.Context, shopper domain.Shopper, key domain.LineKey, qty int) (*domain.Cart, error) {
	return s.mutate(ctx, shopper, func(c *domain.Cart, now time.Time) (bool, error) {
		return c.SetQuantity(key, qty, now), nil
	})
}

func (s *Service) Remove(ctx context.Context, shopper domain.Shopper, key domain.LineKey) (*domain.Cart, error) {
	return s.mutate(ctx, shopper, func(c *domain.Cart, now time.Time) (bool, error) {
		return c.Remove(key, now), nil
	})
}

func (s *Service) Clear(ctx context.Context, shopper domain.Shopper) error {
	_, err := s.ClearSession(ctx, shopper.SessionKey())
	return err
}

// ClearSession empties the cart stored under sessionKey and returns the lines
// it removed. The reconciler uses it after an order is confirmed, when only
// the session key is known.
func (s *Service) ClearSession(ctx context.Context, sessionKey string) ([]domain.CartLine, error) {
	var removed []domain.CartLine
	_, err := s.mutateKey(ctx, sessionKey, func(c *domain.Cart, now time.Time) (bool, error) {
		removed = c.Clone().Lines
		c.Clear(now)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// SessionLines returns the lines stored under sessionKey without changing
// them. Unlike Get, a store failure is returned rather than read as empty.
func (s *Service) SessionLines(ctx context.Context, sessionKey string) ([]domain.CartLine, error) {
	c, err := s.store.Load(ctx, sessionKey)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	c.Normalize()
	return c.Clone().Lines, nil
}

func (s *Service) Total(ctx context.Context, shopper domain.Shopper) (int64, error) {
	c, err := s.Get(ctx, shopper)
	if err != nil {
		return 0, err
	}
	return c.Total(), nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) mutate(ctx context.Context, shopper domain.Shopper, fn func(*domain.Cart, time.Time) (bool, error)) (*domain.Cart, error) {
	return s.mutateKey(ctx, shopper.SessionKey(), fn)
}

func (s *Service) mutateKey(ctx context.Context, sessionKey string, fn func(*domain.Cart, time.Time) (bool, error)) (*domain.Cart, error) {
	unlock := s.locks.lock(sessionKey)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := s.load(ctx, sessionKey)
	changed, err := fn(c, s.now())
	if err != nil {
		return nil, err
	}
	if !changed {
		return c, nil
	}
	if err := s.store.Save(ctx, c); err != nil {
		s.logger.WithError(err).WithField("session", sessionKey).Error("save cart")
		return nil, err
	}
	return c, nil
}

func (s *Service) load(ctx context.Context, sessionKey string) *domain.Cart {
	c, err := s.store.Load(ctx, sessionKey)
	switch {
	case err == nil:
		c.Normalize()
		return c
	case errors.Is(err, domain.ErrNotFound):
		return domain.NewCart(sessionKey)
	default:
		s.logger.WithError(err).WithField("session", sessionKey).Warn("cart unreadable, starting empty")
		return domain.NewCart(sessionKey)
	}
}

type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

func (l *sessionLocks) lock(key string) func() {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &sessionLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
