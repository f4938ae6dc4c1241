package validation

import (
	"context"
	"errors"
	"testing"

	"storefront-checkout/internal/domain"

	"github.com/google/go-cmp/cmp"
)

func lookupFrom(snaps ...domain.ProductSnapshot) SnapshotLookup {
	byID := make(map[string]domain.ProductSnapshot, len(snaps))
	for _, s := range snaps {
		byID[s.ID] = s
	}
	return func(id string) (domain.ProductSnapshot, bool) {
		s, ok := byID[id]
		return s, ok
	}
}

func intPtr(v int) *int { return &v }

func TestEvaluateEmptyCart(t *testing.T) {
	got := Evaluate(nil, lookupFrom())
	want := domain.ValidationVerdict{
		IsValid:    false,
		Violations: []domain.Violation{{Reason: domain.ReasonEmptyCart, Message: "Cart is empty"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("verdict mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateInsufficientStock(t *testing.T) {
	lines := []domain.CartLine{{ProductID: "P1", Quantity: 2, SelectedSize: "M"}}
	got := Evaluate(lines, lookupFrom(domain.ProductSnapshot{ID: "P1", Name: "Hoodie", Stock: 1, Sizes: []string{"M", "L"}}))
	want := domain.ValidationVerdict{
		IsValid: false,
		Violations: []domain.Violation{{
			ProductID: "P1",
			Reason:    domain.ReasonInsufficientStock,
			Message:   "Insufficient stock for Hoodie. Available: 1",
			Available: intPtr(1),
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("verdict mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateInvalidColor(t *testing.T) {
	lines := []domain.CartLine{{ProductID: "P2", Quantity: 1, SelectedColor: "Red"}}
	got := Evaluate(lines, lookupFrom(domain.ProductSnapshot{ID: "P2", Name: "Scarf", Stock: 5, Colors: []string{"Blue", "Green"}}))
	want := domain.ValidationVerdict{
		IsValid: false,
		Violations: []domain.Violation{{
			ProductID: "P2",
			Reason:    domain.ReasonInvalidColor,
			Message:   "Invalid color selected for Scarf",
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("verdict mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateAccumulatesAcrossLinesAndChecks(t *testing.T) {
	lines := []domain.CartLine{
		{ProductID: "gone", Quantity: 1, SelectedSize: "XXXL"},
		{ProductID: "P1", Quantity: 9, SelectedSize: "XS", SelectedColor: "Pink"},
		{ProductID: "P3", Quantity: 1},
	}
	lookup := lookupFrom(
		domain.ProductSnapshot{ID: "P1", Name: "Tee", Stock: 2, Sizes: []string{"M"}, Colors: []string{"Black"}},
		domain.ProductSnapshot{ID: "P3", Name: "Sock", Stock: 0},
	)
	got := Evaluate(lines, lookup)

	var reasons []domain.ViolationReason
	for _, v := range got.Violations {
		reasons = append(reasons, v.Reason)
	}
	want := []domain.ViolationReason{
		domain.ReasonProductMissing,
		domain.ReasonInsufficientStock,
		domain.ReasonInvalidSize,
		domain.ReasonInvalidColor,
		domain.ReasonInsufficientStock,
	}
	if diff := cmp.Diff(want, reasons); diff != "" {
		t.Fatalf("reasons mismatch (-want +got):\n%s", diff)
	}
	if got.IsValid {
		t.Fatalf("expected invalid verdict")
	}
	if got.Violations[0].Message != "Product gone not found" {
		t.Fatalf("unexpected missing message %q", got.Violations[0].Message)
	}
}

func TestEvaluateUndeclaredVariantsAcceptAnyValue(t *testing.T) {
	lines := []domain.CartLine{{ProductID: "P1", Quantity: 1, SelectedSize: "M", SelectedColor: "Red"}}
	got := Evaluate(lines, lookupFrom(domain.ProductSnapshot{ID: "P1", Name: "Tote", Stock: 1}))
	if !got.IsValid || len(got.Violations) != 0 {
		t.Fatalf("expected valid verdict, got %+v", got)
	}
}

func TestEvaluateDoesNotMutateInputs(t *testing.T) {
	lines := []domain.CartLine{{ProductID: "P1", Quantity: 3, SelectedSize: "S"}}
	snap := domain.ProductSnapshot{ID: "P1", Name: "Tee", Stock: 1, Sizes: []string{"M"}}
	before := append([]domain.CartLine(nil), lines...)

	first := Evaluate(lines, lookupFrom(snap))
	second := Evaluate(lines, lookupFrom(snap))
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("verdict not deterministic (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(before, lines); diff != "" {
		t.Fatalf("lines mutated (-before +after):\n%s", diff)
	}
}

type stubCatalog struct {
	products map[string]domain.ProductSnapshot
	err      error
	calls    map[string]int
}

func (s *stubCatalog) GetByID(_ context.Context, id string) (*domain.ProductSnapshot, error) {
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[id]++
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func TestServiceValidateFetchesEachProductOnce(t *testing.T) {
	catalog := &stubCatalog{products: map[string]domain.ProductSnapshot{
		"P1": {ID: "P1", Name: "Tee", Stock: 10, Sizes: []string{"S", "M"}},
	}}
	svc := New(catalog, nil)
	lines := []domain.CartLine{
		{ProductID: "P1", Quantity: 1, SelectedSize: "S"},
		{ProductID: "P1", Quantity: 2, SelectedSize: "M"},
		{ProductID: "P9", Quantity: 1},
		{ProductID: "P9", Quantity: 1},
	}
	verdict, err := svc.Validate(context.Background(), lines)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if catalog.calls["P1"] != 1 || catalog.calls["P9"] != 1 {
		t.Fatalf("expected one lookup per product, got %v", catalog.calls)
	}
	if verdict.IsValid || len(verdict.Violations) != 2 {
		t.Fatalf("expected two ProductMissing violations, got %+v", verdict.Violations)
	}
}

func TestServiceValidateCatalogFailure(t *testing.T) {
	svc := New(&stubCatalog{err: errors.New("catalog down")}, nil)
	_, err := svc.Validate(context.Background(), []domain.CartLine{{ProductID: "P1", Quantity: 1}})
	if err == nil {
		t.Fatalf("expected catalog error to be returned")
	}
}
