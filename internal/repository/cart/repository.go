package cart

import (
	"context"
	"errors"

	"storefront-checkout/internal/domain"
)

// ErrCorrupt marks persisted cart data that could not be decoded.
var ErrCorrupt = errors.New("cart data corrupt")

// Store persists carts keyed by shopper session. Load returns
// domain.ErrNotFound when nothing has been saved yet.
type Store interface {
	Load(ctx context.Context, sessionKey string) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
	Ping(ctx context.Context) error
}
