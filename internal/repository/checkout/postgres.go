package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"storefront-checkout/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

const sessionColumns = `id, shopper_key, state, shipping, COALESCE(authorization_handle_id, ''), fingerprint, currency,
       subtotal_cents, shipping_cents, tax_cents, total_cents, created_at, updated_at`

func (r *postgresRepo) Create(ctx context.Context, s domain.CheckoutSession) error {
	shipping, err := marshalShipping(s.Shipping)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
INSERT INTO checkout_sessions (id, shopper_key, state, shipping, authorization_handle_id, fingerprint, currency,
                               subtotal_cents, shipping_cents, tax_cents, total_cents, created_at, updated_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12, $13)
`, s.ID, s.ShopperKey, string(s.State), shipping, s.AuthorizationHandleID, s.Fingerprint, s.Currency,
		s.Totals.SubtotalCents, s.Totals.ShippingCents, s.Totals.TaxCents, s.Totals.TotalCents, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *postgresRepo) Get(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	return scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM checkout_sessions WHERE id = $1`, id))
}

func (r *postgresRepo) Latest(ctx context.Context, shopperKey string) (*domain.CheckoutSession, error) {
	return scanSession(r.pool.QueryRow(ctx, `
SELECT `+sessionColumns+`
FROM checkout_sessions
WHERE shopper_key = $1
ORDER BY created_at DESC
LIMIT 1
`, shopperKey))
}

func (r *postgresRepo) GetByAuthorization(ctx context.Context, handleID string) (*domain.CheckoutSession, error) {
	return scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM checkout_sessions WHERE authorization_handle_id = $1`, handleID))
}

func (r *postgresRepo) Update(ctx context.Context, s domain.CheckoutSession) error {
	shipping, err := marshalShipping(s.Shipping)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
UPDATE checkout_sessions SET
    state = $2,
    shipping = $3,
    authorization_handle_id = NULLIF($4, ''),
    fingerprint = $5,
    currency = $6,
    subtotal_cents = $7,
    shipping_cents = $8,
    tax_cents = $9,
    total_cents = $10,
    updated_at = $11
WHERE id = $1
`, s.ID, string(s.State), shipping, s.AuthorizationHandleID, s.Fingerprint, s.Currency,
		s.Totals.SubtotalCents, s.Totals.ShippingCents, s.Totals.TaxCents, s.Totals.TotalCents, s.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func marshalShipping(info *domain.ShippingInfo) ([]byte, error) {
	if info == nil {
		return nil, nil
	}
	b, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("marshal shipping: %w", err)
	}
	return b, nil
}

func scanSession(row pgx.Row) (*domain.CheckoutSession, error) {
	var (
		s        domain.CheckoutSession
		state    string
		shipping []byte
	)
	err := row.Scan(&s.ID, &s.ShopperKey, &state, &shipping, &s.AuthorizationHandleID, &s.Fingerprint, &s.Currency,
		&s.Totals.SubtotalCents, &s.Totals.ShippingCents, &s.Totals.TaxCents, &s.Totals.TotalCents, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	s.State = domain.CheckoutState(state)
	if len(shipping) > 0 {
		var info domain.ShippingInfo
		if err := json.Unmarshal(shipping, &info); err != nil {
			return nil, fmt.Errorf("decode shipping: %w", err)
		}
		s.Shipping = &info
	}
	return &s, nil
}
