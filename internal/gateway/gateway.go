// Package gateway talks to the external payment processor. Implementations
// assume the far side is slow, unreliable and untrusted.
package gateway

import (
	"context"
	"errors"
	"strings"

	"storefront-checkout/internal/domain"

	"github.com/shopspring/decimal"
)

// AuthorizationRequest asks the processor for a payment authorization.
// Requests carrying the same IdempotencyKey resolve to the same
// authorization, including when an earlier response was lost.
type AuthorizationRequest struct {
	AmountMinor    int64
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

type Gateway interface {
	CreateAuthorization(ctx context.Context, req AuthorizationRequest) (domain.PaymentAuthorization, error)
	GetStatus(ctx context.Context, handleID string) (domain.AuthorizationStatus, error)
}

var ErrInvalidAmount = errors.New("amount must be positive")

// MinorUnits converts a major-unit amount from the boundary into minor
// units, rounding half up.
func MinorUnits(amount decimal.Decimal) (int64, error) {
	minor := domain.ToMinorUnits(amount)
	if minor <= 0 {
		return 0, ErrInvalidAmount
	}
	return minor, nil
}

func (r AuthorizationRequest) validate() error {
	if r.AmountMinor <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(r.Currency) == "" {
		return errors.New("currency required")
	}
	if strings.TrimSpace(r.IdempotencyKey) == "" {
		return errors.New("idempotency key required")
	}
	return nil
}
