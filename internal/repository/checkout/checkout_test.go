package checkout

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/migrate"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgxpool"
)

func exerciseRepository(ctx context.Context, t *testing.T, repo Repository) {
	t.Helper()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first := domain.CheckoutSession{
		ID: "cs_1", ShopperKey: "guest:a", State: domain.StateCollectingShippingInfo,
		Currency: "usd", CreatedAt: created, UpdatedAt: created,
	}
	second := first
	second.ID = "cs_2"
	second.CreatedAt = created.Add(time.Minute)
	second.UpdatedAt = second.CreatedAt

	for _, s := range []domain.CheckoutSession{first, second} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create %s: %v", s.ID, err)
		}
	}

	latest, err := repo.Latest(ctx, "guest:a")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.ID != "cs_2" {
		t.Fatalf("expected cs_2 as latest, got %s", latest.ID)
	}

	second.State = domain.StateAwaitingPayment
	second.Shipping = &domain.ShippingInfo{FirstName: "Ada", LastName: "L", Email: "ada@example.com", Address: "1 Main", City: "X", State: "Y", ZipCode: "1", Country: "US"}
	second.AuthorizationHandleID = "pi_9"
	second.Fingerprint = "fp"
	second.Totals = domain.Totals{SubtotalCents: 4999, ShippingCents: 1000, TaxCents: 500, TotalCents: 6499}
	second.UpdatedAt = created.Add(2 * time.Minute)
	if err := repo.Update(ctx, second); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := repo.GetByAuthorization(ctx, "pi_9")
	if err != nil {
		t.Fatalf("GetByAuthorization: %v", err)
	}
	if diff := cmp.Diff(second, *got, cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })); diff != "" {
		t.Fatalf("session mismatch (-want +got):\n%s", diff)
	}

	if _, err := repo.Get(ctx, "cs_missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	missing := first
	missing.ID = "cs_missing"
	if err := repo.Update(ctx, missing); !errors.Is(err, domain.ErrNotFound) {
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
	if _, err := pool.Exec(ctx, `TRUNCATE checkout_sessions`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	exerciseRepository(ctx, t, NewPostgres(pool))
}
