package product

import (
	"context"
	"errors"

	"storefront-checkout/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger logrus.FieldLogger
}

func NewPostgres(pool *pgxpool.Pool, logger logrus.FieldLogger) Repository {
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		logger = l
	}
	return &postgresRepo{pool: pool, logger: logger.WithField("component", "product_repo")}
}

const snapshotColumns = `id, name, price_cents, stock, sizes, colors, updated_at`

func scanSnapshot(row pgx.Row, p *domain.ProductSnapshot) error {
	return row.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.Sizes, &p.Colors, &p.UpdatedAt)
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.ProductSnapshot, error) {
	var p domain.ProductSnapshot
	err := scanSnapshot(r.pool.QueryRow(ctx, `SELECT `+snapshotColumns+` FROM products WHERE id = $1`, id), &p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WithField("product_id", id).Debug("product not found")
			return nil, domain.ErrNotFound
		}
		r.logger.WithError(err).WithField("product_id", id).Error("get product")
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, product ProductRecord) (*domain.ProductSnapshot, error) {
	const q = `
INSERT INTO products (id, name, description, price_cents, stock, sizes, colors, attributes, updated_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, COALESCE($8, '{}'::jsonb), now())
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    price_cents = EXCLUDED.price_cents,
    stock = EXCLUDED.stock,
    sizes = EXCLUDED.sizes,
    colors = EXCLUDED.colors,
    attributes = EXCLUDED.attributes,
    updated_at = EXCLUDED.updated_at
RETURNING updated_at
`
	res := product.ProductSnapshot
	if res.Sizes == nil {
		res.Sizes = []string{}
	}
	if res.Colors == nil {
		res.Colors = []string{}
	}
	err := r.pool.QueryRow(ctx, q,
		res.ID,
		res.Name,
		product.Description,
		res.PriceCents,
		res.Stock,
		res.Sizes,
		res.Colors,
		product.Attributes,
	).Scan(&res.UpdatedAt)
	if err != nil {
		r.logger.WithError(err).WithField("product_id", res.ID).Error("upsert product")
		return nil, err
	}
	r.logger.WithFields(logrus.Fields{"product_id": res.ID, "stock": res.Stock}).Info("upserted product")
	return &res, nil
}
