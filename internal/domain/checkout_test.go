package domain

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := [][2]CheckoutState{
		{StateCollectingShippingInfo, StateAwaitingPayment},
		{StateAwaitingPayment, StateCollectingShippingInfo},
		{StateAwaitingPayment, StateRedirected},
		{StateRedirected, StateConfirmed},
		{StateRedirected, StateFailed},
		{StateFailed, StateCollectingShippingInfo},
	}
	for _, tr := range allowed {
		if !CanTransition(tr[0], tr[1]) {
			t.Fatalf("expected %s -> %s to be allowed", tr[0], tr[1])
		}
	}

	forbidden := [][2]CheckoutState{
		{StateRedirected, StateAwaitingPayment},
		{StateRedirected, StateCollectingShippingInfo},
		{StateConfirmed, StateCollectingShippingInfo},
		{StateConfirmed, StateFailed},
		{StateCollectingShippingInfo, StateRedirected},
	}
	for _, tr := range forbidden {
		if CanTransition(tr[0], tr[1]) {
			t.Fatalf("expected %s -> %s to be forbidden", tr[0], tr[1])
		}
	}
}

func TestCanSettle(t *testing.T) {
	cases := []struct {
		from, to CheckoutState
		want     bool
	}{
		{StateCollectingShippingInfo, StateConfirmed, true},
		{StateCollectingShippingInfo, StateFailed, true},
		{StateAwaitingPayment, StateConfirmed, true},
		{StateRedirected, StateFailed, true},
		{StateFailed, StateConfirmed, true},
		{StateFailed, StateFailed, false},
		{StateConfirmed, StateFailed, false},
		{StateConfirmed, StateConfirmed, false},
		{StateRedirected, StateAwaitingPayment, false},
	}
	for _, tc := range cases {
		if got := CanSettle(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanSettle(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestOrderStatusSupersedes(t *testing.T) {
	cases := []struct {
		old, next OrderStatus
		want      bool
	}{
		{OrderProcessing, OrderConfirmed, true},
		{OrderProcessing, OrderFailed, true},
		{OrderProcessing, OrderProcessing, false},
		{OrderFailed, OrderConfirmed, true},
		{OrderFailed, OrderProcessing, false},
		{OrderFailed, OrderFailed, false},
		{OrderConfirmed, OrderFailed, false},
		{OrderConfirmed, OrderProcessing, false},
	}
	for _, tc := range cases {
		if got := tc.next.Supersedes(tc.old); got != tc.want {
			t.Fatalf("%s.Supersedes(%s) = %v, want %v", tc.next, tc.old, got, tc.want)
		}
	}
}

func TestShippingInfoMissingFields(t *testing.T) {
	info := ShippingInfo{FirstName: "Ada", LastName: "L", Email: "a@example.com", Address: "1 St", City: "X", Country: "US"}
	missing := info.MissingFields()
	if len(missing) != 2 || missing[0] != "state" || missing[1] != "zipCode" {
		t.Fatalf("unexpected missing fields %v", missing)
	}
}

func TestShopperVariants(t *testing.T) {
	var s Shopper = GuestShopper{AnonymousID: "abc"}
	if s.SessionKey() != "guest:abc" {
		t.Fatalf("unexpected guest key %s", s.SessionKey())
	}
	if _, ok := s.CustomerID(); ok {
		t.Fatalf("guest must not have customer id")
	}
	s = CustomerShopper{ID: "c1"}
	if id, ok := s.CustomerID(); !ok || id != "c1" {
		t.Fatalf("unexpected customer id %q", id)
	}
}
