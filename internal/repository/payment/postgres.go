package payment

import (
	"context"
	"errors"

	"storefront-checkout/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

const authColumns = `handle_id, idempotency_key, session_id, shopper_key, client_secret, amount_minor, currency, status, created_at`

func (r *postgresRepo) Create(ctx context.Context, a domain.PaymentAuthorization) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO payment_authorizations (`+authColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`, a.HandleID, a.IdempotencyKey, a.SessionID, a.ShopperKey, a.ClientSecret, a.AmountMinor, a.Currency, string(a.Status), a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *postgresRepo) GetByHandle(ctx context.Context, handleID string) (*domain.PaymentAuthorization, error) {
	return scanAuthorization(r.pool.QueryRow(ctx, `SELECT `+authColumns+` FROM payment_authorizations WHERE handle_id = $1`, handleID))
}

func (r *postgresRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.PaymentAuthorization, error) {
	return scanAuthorization(r.pool.QueryRow(ctx, `SELECT `+authColumns+` FROM payment_authorizations WHERE idempotency_key = $1`, key))
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, handleID string, status domain.AuthorizationStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE payment_authorizations SET status = $2 WHERE handle_id = $1`, handleID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanAuthorization(row pgx.Row) (*domain.PaymentAuthorization, error) {
	var (
		a      domain.PaymentAuthorization
		status string
	)
	err := row.Scan(&a.HandleID, &a.IdempotencyKey, &a.SessionID, &a.ShopperKey, &a.ClientSecret, &a.AmountMinor, &a.Currency, &status, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	a.Status = domain.AuthorizationStatus(status)
	return &a, nil
}
