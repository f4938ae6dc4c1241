package seed

import (
	"context"
	"fmt"

	"storefront-checkout/internal/domain"
	productrepo "storefront-checkout/internal/repository/product"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product productrepo.ProductRecord) (*domain.ProductSnapshot, error)
}

type productSeed struct {
	ID          string
	Name        string
	Description string
	Price       string
	Stock       int
	Sizes       []string
	Colors      []string
	Category    string
	Subcategory string
	Images      []string
}

var apparelSizes = []string{"S", "M", "L", "XL"}

// Catalog is the demo storefront catalog used for manual testing.
var Catalog = []productSeed{
	{
		ID:          "amaze-hoodie-mint",
		Name:        "Amaze Hoodie – Mint Green",
		Description: "Soft fleece hoodie with a relaxed fit and kangaroo pocket.",
		Price:       "45.00",
		Stock:       30,
		Sizes:       apparelSizes,
		Colors:      []string{"Mint Green"},
		Category:    "Men",
		Subcategory: "Hoodies",
		Images:      []string{"/images/hoodie-mint-front.jpg", "/images/hoodie-mint-back.jpg"},
	},
	{
		ID:          "amaze-hoodie-red",
		Name:        "Amaze Hoodie - Red",
		Description: "Soft fleece hoodie with a relaxed fit and kangaroo pocket.",
		Price:       "45.00",
		Stock:       28,
		Sizes:       apparelSizes,
		Colors:      []string{"Red"},
		Category:    "Men",
		Subcategory: "Hoodies",
		Images:      []string{"/images/hoodie-red-front.jpg"},
	},
	{
		ID:          "amaze-tee-classic",
		Name:        "Amaze Classic Tee",
		Description: "Heavyweight cotton tee.",
		Price:       "19.99",
		Stock:       120,
		Sizes:       []string{"XS", "S", "M", "L", "XL", "XXL"},
		Colors:      []string{"Black", "White"},
		Category:    "Women",
		Subcategory: "T-Shirts",
		Images:      []string{"/images/tee-classic.jpg"},
	},
	{
		ID:          "amaze-cap",
		Name:        "Amaze Logo Cap",
		Description: "Adjustable six-panel cap.",
		Price:       "15.00",
		Stock:       3,
		Category:    "Accessories",
		Subcategory: "Hats",
		Images:      []string{"/images/cap.jpg"},
	},
}

// Apply upserts the demo catalog. Running it twice leaves the same rows.
func Apply(ctx context.Context, repo ProductWriter, logger logrus.FieldLogger) (int, error) {
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		logger = l
	}
	for i, p := range Catalog {
		rec, err := p.record()
		if err != nil {
			return i, err
		}
		if _, err := repo.Upsert(ctx, rec); err != nil {
			return i, fmt.Errorf("upsert product %s: %w", p.ID, err)
		}
		logger.WithField("product_id", p.ID).Debug("seeded product")
	}
	return len(Catalog), nil
}

func (p productSeed) record() (productrepo.ProductRecord, error) {
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return productrepo.ProductRecord{}, fmt.Errorf("price for %s: %w", p.ID, err)
	}
	attrs := map[string]interface{}{
		"category": p.Category,
	}
	if p.Subcategory != "" {
		attrs["subcategory"] = p.Subcategory
	}
	if len(p.Images) > 0 {
		attrs["images"] = p.Images
	}
	return productrepo.ProductRecord{
		ProductSnapshot: domain.ProductSnapshot{
			ID:         p.ID,
			Name:       p.Name,
			PriceCents: domain.ToMinorUnits(price),
			Stock:      p.Stock,
			Sizes:      p.Sizes,
			Colors:     p.Colors,
		},
		Description: p.Description,
		Attributes:  attrs,
	}, nil
}
