package cart

import (
	"context"
	"errors"

	"storefront-checkout/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Store {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Load(ctx context.Context, sessionKey string) (*domain.Cart, error) {
	cart := domain.NewCart(sessionKey)
	err := r.pool.QueryRow(ctx, `
SELECT updated_at
FROM carts
WHERE session_key = $1
`, sessionKey).Scan(&cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	const linesQuery = `
SELECT product_id, selected_size, selected_color, name, unit_price_cents, quantity
FROM cart_lines
WHERE session_key = $1
ORDER BY position ASC
`
	rows, err := r.pool.Query(ctx, linesQuery, sessionKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(
			&line.ProductID,
			&line.SelectedSize,
			&line.SelectedColor,
			&line.Name,
			&line.UnitPriceCents,
			&line.Quantity,
		); err != nil {
			return nil, err
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cart, nil
}

// Save replaces the stored cart in one transaction, so concurrent writers
// resolve to the last committed write.
func (r *postgresRepo) Save(ctx context.Context, cart *domain.Cart) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
INSERT INTO carts (session_key, updated_at)
VALUES ($1, $2)
ON CONFLICT (session_key) DO UPDATE SET updated_at = EXCLUDED.updated_at
`, cart.SessionKey, cart.UpdatedAt); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE session_key = $1`, cart.SessionKey); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, line := range cart.Lines {
		batch.Queue(`
INSERT INTO cart_lines (session_key, position, product_id, selected_size, selected_color, name, unit_price_cents, quantity)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`, cart.SessionKey, i, line.ProductID, line.SelectedSize, line.SelectedColor, line.Name, line.UnitPriceCents, line.Quantity)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *postgresRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
