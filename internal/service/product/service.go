package product

import (
	"context"
	"strings"

	"storefront-checkout/internal/domain"
	productrepo "storefront-checkout/internal/repository/product"
)

// Service is the catalog collaborator seen by checkout.
type Service struct {
	repo productrepo.Repository
}

func New(repo productrepo.Repository) *Service {
	return &Service{repo: repo}
}

// GetByID returns domain.ErrNotFound for unknown or blank ids, keeping
// "not found" distinct from a product with zero stock.
func (s *Service) GetByID(ctx context.Context, id string) (*domain.ProductSnapshot, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}
