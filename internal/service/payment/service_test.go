package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/gateway"
	paymentrepo "storefront-checkout/internal/repository/payment"

	"github.com/shopspring/decimal"
)

type stubCarts struct {
	cart *domain.Cart
}

func (s *stubCarts) Get(_ context.Context, shopper domain.Shopper) (*domain.Cart, error) {
	if s.cart == nil {
		return domain.NewCart(shopper.SessionKey()), nil
	}
	return s.cart.Clone(), nil
}

func newService(gw gateway.Gateway, carts *stubCarts) (*Service, *paymentrepo.Memory) {
	auths := paymentrepo.NewMemory()
	return New(Deps{
		Authorizations: auths,
		Carts:          carts,
		Gateway:        gw,
		Currency:       "usd",
		Timeout:        50 * time.Millisecond,
	}), auths
}

func TestCreateIntent_ReusesForSameCartAndAmount(t *testing.T) {
	ctx := context.Background()
	shopper := domain.GuestShopper{AnonymousID: "anon-1"}
	cart := domain.NewCart(shopper.SessionKey())
	_ = cart.Add(domain.CartLine{ProductID: "hoodie", UnitPriceCents: 4500, Quantity: 1}, time.Now())
	gw := gateway.NewSandbox()
	svc, auths := newService(gw, &stubCarts{cart: cart})

	first, err := svc.CreateIntent(ctx, shopper, decimal.RequireFromString("59.5"), "")
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	second, err := svc.CreateIntent(ctx, shopper, decimal.RequireFromString("59.50"), "")
	if err != nil {
		t.Fatalf("CreateIntent again: %v", err)
	}
	if first.HandleID != second.HandleID || first.AmountMinor != 5950 {
		t.Fatalf("expected one intent of 5950, got %+v and %+v", first, second)
	}
	if gw.CreateCalls() != 1 {
		t.Fatalf("expected one gateway call, got %d", gw.CreateCalls())
	}
	stored, err := auths.GetByHandle(ctx, first.HandleID)
	if err != nil {
		t.Fatalf("stored authorization: %v", err)
	}
	if stored.ShopperKey != shopper.SessionKey() {
		t.Fatalf("expected shopper key on authorization, got %q", stored.ShopperKey)
	}

	third, err := svc.CreateIntent(ctx, shopper, decimal.RequireFromString("60"), "")
	if err != nil {
		t.Fatalf("CreateIntent new amount: %v", err)
	}
	if third.HandleID == first.HandleID {
		t.Fatalf("a different amount must create a new intent")
	}
}

func TestCreateIntent_RequestKeyScopedToShopper(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(gateway.NewSandbox(), &stubCarts{})

	a, err := svc.CreateIntent(ctx, domain.GuestShopper{AnonymousID: "a"}, decimal.NewFromInt(10), "k1")
	if err != nil {
		t.Fatalf("CreateIntent a: %v", err)
	}
	b, err := svc.CreateIntent(ctx, domain.GuestShopper{AnonymousID: "b"}, decimal.NewFromInt(10), "k1")
	if err != nil {
		t.Fatalf("CreateIntent b: %v", err)
	}
	if a.HandleID == b.HandleID {
		t.Fatalf("shoppers must not share intents through a client key")
	}
	if _, err := svc.CreateIntent(ctx, domain.GuestShopper{AnonymousID: "a"}, decimal.NewFromInt(11), "k1"); !errors.Is(err, domain.ErrAuthorizationCreateFailed) {
		t.Fatalf("expected key reuse with another amount to fail, got %v", err)
	}
}

func TestCreateIntent_Errors(t *testing.T) {
	ctx := context.Background()
	shopper := domain.CustomerShopper{ID: "42"}

	svc, _ := newService(gateway.NewSandbox(), &stubCarts{})
	if _, err := svc.CreateIntent(ctx, shopper, decimal.Zero, ""); !errors.Is(err, gateway.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	failing := gateway.NewSandbox()
	failing.FailNext(1)
	svc, _ = newService(failing, &stubCarts{})
	if _, err := svc.CreateIntent(ctx, shopper, decimal.NewFromInt(10), ""); !errors.Is(err, domain.ErrAuthorizationCreateFailed) {
		t.Fatalf("expected ErrAuthorizationCreateFailed, got %v", err)
	}

	slow := gateway.NewSandbox(gateway.WithLatency(time.Second))
	svc, _ = newService(slow, &stubCarts{})
	if _, err := svc.CreateIntent(ctx, shopper, decimal.NewFromInt(10), ""); !errors.Is(err, domain.ErrAuthorizationTimeout) {
		t.Fatalf("expected ErrAuthorizationTimeout, got %v", err)
	}
}
