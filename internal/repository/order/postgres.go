package order

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

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

const outcomeColumns = `handle_id, status, order_reference, resolved_at, completed`

func (r *postgresRepo) Get(ctx context.Context, handleID string) (*domain.OrderOutcome, error) {
	out, err := scanOutcome(r.pool.QueryRow(ctx, `SELECT `+outcomeColumns+` FROM order_outcomes WHERE handle_id = $1`, handleID))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Record keeps the precedence of domain.OrderStatus.Supersedes in the
// conflict guard so concurrent writers cannot regress a stored status.
func (r *postgresRepo) Record(ctx context.Context, o domain.OrderOutcome) (domain.OrderOutcome, bool, error) {
	const q = `
INSERT INTO order_outcomes (handle_id, status, order_reference, resolved_at, completed)
VALUES ($1, $2, $3, $4, false)
ON CONFLICT (handle_id) DO UPDATE SET
    status = EXCLUDED.status,
    resolved_at = EXCLUDED.resolved_at,
    completed = false
WHERE (order_outcomes.status = 'Processing' AND EXCLUDED.status IN ('Confirmed', 'Failed'))
   OR (order_outcomes.status = 'Failed' AND EXCLUDED.status = 'Confirmed')
RETURNING ` + outcomeColumns
	stored, err := scanOutcome(r.pool.QueryRow(ctx, q, o.AuthorizationHandleID, string(o.Status), o.OrderReference, o.ResolvedAt))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.OrderOutcome{}, false, err
	}
	// The conflict guard rejected the update; report what is stored.
	existing, err := r.Get(ctx, o.AuthorizationHandleID)
	if err != nil {
		return domain.OrderOutcome{}, false, err
	}
	return *existing, false, nil
}

func (r *postgresRepo) MarkCompleted(ctx context.Context, handleID string, status domain.OrderStatus) error {
	_, err := r.pool.Exec(ctx, `UPDATE order_outcomes SET completed = true WHERE handle_id = $1 AND status = $2`, handleID, string(status))
	return err
}

func scanOutcome(row pgx.Row) (domain.OrderOutcome, error) {
	var (
		o      domain.OrderOutcome
		status string
	)
	if err := row.Scan(&o.AuthorizationHandleID, &status, &o.OrderReference, &o.ResolvedAt, &o.Completed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return o, domain.ErrNotFound
		}
		return o, err
	}
	o.Status = domain.OrderStatus(status)
	return o, nil
}
