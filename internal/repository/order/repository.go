package order

import (
	"context"

	"storefront-checkout/internal/domain"
)

// Repository stores at most one outcome per authorization handle.
//
// Record is a compare-and-set: it inserts a new outcome or replaces the
// status of a stored one when the new status supersedes it (see
// domain.OrderStatus.Supersedes). A replaced outcome loses its completed
// mark. Record returns the outcome now stored and whether this call changed
// it. The stored order reference always wins over the one passed in.
//
// MarkCompleted sets the completed mark, but only while the stored status is
// still status.
type Repository interface {
	Get(ctx context.Context, handleID string) (*domain.OrderOutcome, error)
	Record(ctx context.Context, outcome domain.OrderOutcome) (domain.OrderOutcome, bool, error)
	MarkCompleted(ctx context.Context, handleID string, status domain.OrderStatus) error
}
