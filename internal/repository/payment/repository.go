package payment

import (
	"context"

	"storefront-checkout/internal/domain"
)

// Repository stores authorizations issued by the gateway. Create returns
// domain.ErrAlreadyExists when the handle or idempotency key is taken.
type Repository interface {
	Create(ctx context.Context, auth domain.PaymentAuthorization) error
	GetByHandle(ctx context.Context, handleID string) (*domain.PaymentAuthorization, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.PaymentAuthorization, error)
	UpdateStatus(ctx context.Context, handleID string, status domain.AuthorizationStatus) error
}
