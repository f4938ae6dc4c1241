package payment

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/migrate"

	"github.com/jackc/pgx/v5/pgxpool"
)

func sampleAuthorization() domain.PaymentAuthorization {
	return domain.PaymentAuthorization{
		HandleID:       "pi_1",
		ClientSecret:   "pi_1_secret_x",
		AmountMinor:    6499,
		Currency:       "usd",
		Status:         domain.AuthorizationCreated,
		IdempotencyKey: "sess-1:fp:6499",
		SessionID:      "sess-1",
		CreatedAt:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func exerciseRepository(ctx context.Context, t *testing.T, repo Repository) {
	t.Helper()
	a := sampleAuthorization()
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	dup := a
	dup.HandleID = "pi_2"
	if err := repo.Create(ctx, dup); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for reused idempotency key, got %v", err)
	}

	got, err := repo.GetByIdempotencyKey(ctx, a.IdempotencyKey)
	if err != nil {
		t.Fatalf("GetByIdempotencyKey: %v", err)
	}
	if got.HandleID != "pi_1" || got.AmountMinor != 6499 {
		t.Fatalf("unexpected authorization %+v", got)
	}

	if err := repo.UpdateStatus(ctx, "pi_1", domain.AuthorizationSucceeded); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got, err = repo.GetByHandle(ctx, "pi_1")
	if err != nil {
		t.Fatalf("GetByHandle: %v", err)
	}
	if got.Status != domain.AuthorizationSucceeded {
		t.Fatalf("expected Succeeded, got %s", got.Status)
	}

	if _, err := repo.GetByHandle(ctx, "pi_unknown"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.UpdateStatus(ctx, "pi_unknown", domain.AuthorizationFailed); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func TestMemory(t *testing.T) {
	exerciseRepository(context.Background(), t, NewMemory())
}

func TestPostgres(t *testing.T) {
	ctx := context.Background()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if _, err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE order_outcomes, payment_authorizations CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	exerciseRepository(ctx, t, NewPostgres(pool))
}
