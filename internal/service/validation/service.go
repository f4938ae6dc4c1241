// Package validation checks a cart against the catalog before checkout.
//
// The verdict is best-effort. Stock is read here and decremented later by the
// catalog when the order is committed, so two shoppers can both pass
// validation for the last unit. The authoritative check is that decrement;
// this package only gives early feedback.
package validation

import (
	"context"
	"errors"
	"fmt"

	"storefront-checkout/internal/domain"

	"github.com/sirupsen/logrus"
)

// SnapshotLookup resolves a product id to its snapshot, or false if the
// catalog does not know the product.
type SnapshotLookup func(productID string) (domain.ProductSnapshot, bool)

// Catalog is the product collaborator. GetByID returns domain.ErrNotFound
// for unknown products; any other error is unexpected.
type Catalog interface {
	GetByID(ctx context.Context, id string) (*domain.ProductSnapshot, error)
}

const EmptyCartMessage = "Cart is empty"

// Evaluate checks every line in cart order. A missing product ends the checks
// for that line; all other checks run and accumulate. Evaluate does not modify
// its inputs.
func Evaluate(lines []domain.CartLine, lookup SnapshotLookup) domain.ValidationVerdict {
	if len(lines) == 0 {
		return domain.NewVerdict([]domain.Violation{{
			Reason:  domain.ReasonEmptyCart,
			Message: EmptyCartMessage,
		}})
	}

	var violations []domain.Violation
	for _, line := range lines {
		snap, ok := lookup(line.ProductID)
		if !ok {
			violations = append(violations, domain.Violation{
				ProductID: line.ProductID,
				Reason:    domain.ReasonProductMissing,
				Message:   fmt.Sprintf("Product %s not found", line.ProductID),
			})
			continue
		}

		if snap.Stock < line.Quantity {
			available := snap.Stock
			violations = append(violations, domain.Violation{
				ProductID: line.ProductID,
				Reason:    domain.ReasonInsufficientStock,
				Message:   fmt.Sprintf("Insufficient stock for %s. Available: %d", snap.Name, snap.Stock),
				Available: &available,
			})
		}
		if line.SelectedSize != "" && !snap.HasSize(line.SelectedSize) {
			violations = append(violations, domain.Violation{
				ProductID: line.ProductID,
				Reason:    domain.ReasonInvalidSize,
				Message:   fmt.Sprintf("Invalid size selected for %s", snap.Name),
			})
		}
		if line.SelectedColor != "" && !snap.HasColor(line.SelectedColor) {
			violations = append(violations, domain.Violation{
				ProductID: line.ProductID,
				Reason:    domain.ReasonInvalidColor,
				Message:   fmt.Sprintf("Invalid color selected for %s", snap.Name),
			})
		}
	}
	return domain.NewVerdict(violations)
}

type Service struct {
	catalog Catalog
	logger  logrus.FieldLogger
}

func New(catalog Catalog, logger logrus.FieldLogger) *Service {
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		logger = l
	}
	return &Service{catalog: catalog, logger: logger.WithField("component", "cart_validator")}
}

// Validate fetches a snapshot for each distinct product once and evaluates
// the lines against them. Catalog failures other than not-found are returned.
func (s *Service) Validate(ctx context.Context, lines []domain.CartLine) (domain.ValidationVerdict, error) {
	snapshots := make(map[string]domain.ProductSnapshot, len(lines))
	missing := make(map[string]bool)
	for _, line := range lines {
		id := line.ProductID
		if _, ok := snapshots[id]; ok || missing[id] {
			continue
		}
		snap, err := s.catalog.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				missing[id] = true
				continue
			}
			s.logger.WithError(err).WithField("product_id", id).Error("catalog lookup")
			return domain.ValidationVerdict{}, fmt.Errorf("lookup product %s: %w", id, err)
		}
		snapshots[id] = *snap
	}

	verdict := Evaluate(lines, func(id string) (domain.ProductSnapshot, bool) {
		snap, ok := snapshots[id]
		return snap, ok
	})
	if !verdict.IsValid {
		s.logger.WithFields(logrus.Fields{
			"lines":      len(lines),
			"violations": len(verdict.Violations),
		}).Info("cart failed validation")
	}
	return verdict, nil
}
