package checkout

import (
	"context"

	"storefront-checkout/internal/domain"
)

// Repository persists checkout sessions. Pending and ClientSecret are not
// stored; the orchestrator derives them.
type Repository interface {
	Create(ctx context.Context, s domain.CheckoutSession) error
	Get(ctx context.Context, id string) (*domain.CheckoutSession, error)
	// Latest returns the shopper's most recently created session.
	Latest(ctx context.Context, shopperKey string) (*domain.CheckoutSession, error)
	GetByAuthorization(ctx context.Context, handleID string) (*domain.CheckoutSession, error)
	Update(ctx context.Context, s domain.CheckoutSession) error
}
