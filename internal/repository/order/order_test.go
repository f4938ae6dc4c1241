package order

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/migrate"

	"github.com/jackc/pgx/v5/pgxpool"
)

func exerciseRecord(ctx context.Context, t *testing.T, repo Repository, handle string) {
	t.Helper()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if _, err := repo.Get(ctx, handle); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	stored, applied, err := repo.Record(ctx, domain.OrderOutcome{
		AuthorizationHandleID: handle, Status: domain.OrderProcessing, OrderReference: "ORD-first", ResolvedAt: now,
	})
	if err != nil || !applied {
		t.Fatalf("first record: applied=%v err=%v", applied, err)
	}

	stored, applied, err = repo.Record(ctx, domain.OrderOutcome{
		AuthorizationHandleID: handle, Status: domain.OrderConfirmed, OrderReference: "ORD-second", ResolvedAt: now.Add(time.Minute),
	})
	if err != nil || !applied {
		t.Fatalf("processing -> confirmed: applied=%v err=%v", applied, err)
	}
	if stored.Status != domain.OrderConfirmed || stored.OrderReference != "ORD-first" {
		t.Fatalf("unexpected stored outcome %+v", stored)
	}

	stored, applied, err = repo.Record(ctx, domain.OrderOutcome{
		AuthorizationHandleID: handle, Status: domain.OrderFailed, OrderReference: "ORD-third", ResolvedAt: now.Add(2 * time.Minute),
	})
	if err != nil {
		t.Fatalf("record after terminal: %v", err)
	}
	if applied || stored.Status != domain.OrderConfirmed {
		t.Fatalf("terminal outcome overwritten: applied=%v stored=%+v", applied, stored)
	}

	if err := repo.MarkCompleted(ctx, handle, domain.OrderFailed); err != nil {
		t.Fatalf("MarkCompleted with stale status: %v", err)
	}
	if got, _ := repo.Get(ctx, handle); got.Completed {
		t.Fatalf("stale status must not mark the outcome completed")
	}
	if err := repo.MarkCompleted(ctx, handle, domain.OrderConfirmed); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if got, _ := repo.Get(ctx, handle); !got.Completed {
		t.Fatalf("expected outcome completed, got %+v", got)
	}
}

func exerciseFailedPrecedence(ctx context.Context, t *testing.T, repo Repository, handle string) {
	t.Helper()
	if _, _, err := repo.Record(ctx, domain.OrderOutcome{AuthorizationHandleID: handle, Status: domain.OrderFailed, OrderReference: "ORD-1"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := repo.MarkCompleted(ctx, handle, domain.OrderFailed); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	stored, applied, err := repo.Record(ctx, domain.OrderOutcome{AuthorizationHandleID: handle, Status: domain.OrderProcessing, OrderReference: "ORD-2"})
	if err != nil {
		t.Fatalf("Record processing: %v", err)
	}
	if applied || stored.Status != domain.OrderFailed {
		t.Fatalf("processing must not replace Failed: applied=%v stored=%+v", applied, stored)
	}

	stored, applied, err = repo.Record(ctx, domain.OrderOutcome{AuthorizationHandleID: handle, Status: domain.OrderConfirmed, OrderReference: "ORD-3"})
	if err != nil || !applied {
		t.Fatalf("failed -> confirmed: applied=%v err=%v", applied, err)
	}
	if stored.OrderReference != "ORD-1" || stored.Completed {
		t.Fatalf("expected kept reference and a fresh completion mark, got %+v", stored)
	}
}

func TestMemory_FailedThenConfirmed(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	if _, _, err := repo.Record(ctx, domain.OrderOutcome{AuthorizationHandleID: "pi_retry", Status: domain.OrderFailed, OrderReference: "ORD-1"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	_, applied, err := repo.Record(ctx, domain.OrderOutcome{AuthorizationHandleID: "pi_retry", Status: domain.OrderFailed, OrderReference: "ORD-2"})
	if err != nil || applied {
		t.Fatalf("repeated Failed should be a no-op: applied=%v err=%v", applied, err)
	}
	stored, applied, err := repo.Record(ctx, domain.OrderOutcome{AuthorizationHandleID: "pi_retry", Status: domain.OrderConfirmed, OrderReference: "ORD-3"})
	if err != nil || !applied {
		t.Fatalf("failed -> confirmed: applied=%v err=%v", applied, err)
	}
	if stored.OrderReference != "ORD-1" {
		t.Fatalf("order reference must be kept, got %s", stored.OrderReference)
	}
}

func TestMemory_Record(t *testing.T) {
	exerciseRecord(context.Background(), t, NewMemory(), "pi_1")
}

func TestMemory_ProcessingDoesNotReplaceFailed(t *testing.T) {
	exerciseFailedPrecedence(context.Background(), t, NewMemory(), "pi_failed")
}

func TestMemory_RecordConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, applied, err := repo.Record(ctx, domain.OrderOutcome{AuthorizationHandleID: "pi_race", Status: domain.OrderConfirmed})
			if err != nil {
				t.Errorf("Record: %v", err)
				return
			}
			if applied {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestPostgres_Record(t *testing.T) {
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
	_, err = pool.Exec(ctx, `
		INSERT INTO payment_authorizations (handle_id, idempotency_key, session_id, client_secret, amount_minor, currency, status)
		VALUES ('pi_pg', 'k', 's', 'pi_pg_secret', 100, 'usd', 'Created')
	`)
	if err != nil {
		t.Fatalf("insert authorization: %v", err)
	}
	exerciseRecord(ctx, t, NewPostgres(pool), "pi_pg")

	_, err = pool.Exec(ctx, `
		INSERT INTO payment_authorizations (handle_id, idempotency_key, session_id, client_secret, amount_minor, currency, status)
		VALUES ('pi_pg_failed', 'k2', 's', 'pi_pg_failed_secret', 100, 'usd', 'Created')
	`)
	if err != nil {
		t.Fatalf("insert authorization: %v", err)
	}
	exerciseFailedPrecedence(ctx, t, NewPostgres(pool), "pi_pg_failed")
}
