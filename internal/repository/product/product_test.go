package product

import (
	"context"
	"errors"
	"os"
	"testing"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/migrate"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestPostgres_GetByID(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if _, err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	resetTables(ctx, t, pool)

	_, err := pool.Exec(ctx, `
		INSERT INTO products (id, name, description, price_cents, stock, sizes, colors)
		VALUES ('p1', 'Linen Shirt', 'desc', 4999, 3, ARRAY['S','M'], ARRAY['White'])
	`)
	if err != nil {
		t.Fatalf("insert product: %v", err)
	}

	repo := NewPostgres(pool, nil)

	got, err := repo.GetByID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if diff := cmp.Diff([]string{"S", "M"}, got.Sizes); diff != "" {
		t.Fatalf("sizes mismatch (-want +got):\n%s", diff)
	}
	if got.Stock != 3 || got.PriceCents != 4999 {
		t.Fatalf("unexpected product %+v", got)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_Upsert(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if _, err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	resetTables(ctx, t, pool)

	repo := NewPostgres(pool, nil)

	_, err := repo.Upsert(ctx, ProductRecord{ProductSnapshot: domain.ProductSnapshot{
		ID: "p1", Name: "Cap", PriceCents: 1500, Stock: 10,
	}})
	if err != nil {
		t.Fatalf("Upsert insert: %v", err)
	}

	updated, err := repo.Upsert(ctx, ProductRecord{
		ProductSnapshot: domain.ProductSnapshot{
			ID: "p1", Name: "Cap v2", PriceCents: 1700, Stock: 4, Colors: []string{"Red"},
		},
		Description: "new desc",
		Attributes:  map[string]interface{}{"images": []string{"https://example.com/1.jpg"}},
	})
	if err != nil {
		t.Fatalf("Upsert update: %v", err)
	}
	if updated.Name != "Cap v2" || updated.Stock != 4 {
		t.Fatalf("unexpected updated product %+v", updated)
	}

	got, err := repo.GetByID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.PriceCents != 1700 || !got.HasColor("Red") || got.HasColor("Blue") {
		t.Fatalf("unexpected stored product %+v", got)
	}
}

func testPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	return pool
}

func resetTables(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(ctx, `TRUNCATE products RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}
