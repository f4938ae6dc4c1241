package product

import (
	"context"

	"storefront-checkout/internal/domain"
)

// Repository is the catalog view used for validation and seeding.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.ProductSnapshot, error)
	Upsert(ctx context.Context, product ProductRecord) (*domain.ProductSnapshot, error)
}

// ProductRecord is a catalog entry as written by the seed and importer.
type ProductRecord struct {
	domain.ProductSnapshot
	Description string
	Attributes  map[string]interface{}
}
