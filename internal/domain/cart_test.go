package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var now = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestCartAddMergesSameKey(t *testing.T) {
	c := NewCart("guest:1")
	if err := c.Add(CartLine{ProductID: "P1", UnitPriceCents: 500, Quantity: 2, SelectedSize: "M"}, now); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.Add(CartLine{ProductID: "P1", UnitPriceCents: 500, Quantity: 3, SelectedSize: "M"}, now); err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(c.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(c.Lines))
	}
	if c.Lines[0].Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", c.Lines[0].Quantity)
	}
}

func TestCartAddKeepsDistinctVariants(t *testing.T) {
	c := NewCart("guest:1")
	lines := []CartLine{
		{ProductID: "P1", UnitPriceCents: 500, Quantity: 1, SelectedSize: "M"},
		{ProductID: "P1", UnitPriceCents: 500, Quantity: 1, SelectedSize: "L"},
		{ProductID: "P1", UnitPriceCents: 500, Quantity: 1, SelectedSize: "M", SelectedColor: "Red"},
		{ProductID: "P1", UnitPriceCents: 500, Quantity: 1, SelectedSize: " M "},
	}
	for _, l := range lines {
		if err := c.Add(l, now); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	want := []LineKey{
		{ProductID: "P1", Size: "M"},
		{ProductID: "P1", Size: "L"},
		{ProductID: "P1", Size: "M", Color: "Red"},
	}
	var got []LineKey
	for _, l := range c.Lines {
		got = append(got, l.Key())
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("line keys mismatch (-want +got):\n%s", diff)
	}
	if c.Lines[0].Quantity != 2 {
		t.Fatalf("expected trimmed size to merge, got qty %d", c.Lines[0].Quantity)
	}
}

func TestCartAddRejectsInvalidLine(t *testing.T) {
	c := NewCart("guest:1")
	if err := c.Add(CartLine{ProductID: "P1", Quantity: 0}, now); err != ErrInvalidLine {
		t.Fatalf("expected ErrInvalidLine, got %v", err)
	}
	if err := c.Add(CartLine{ProductID: "  ", Quantity: 1}, now); err != ErrInvalidLine {
		t.Fatalf("expected ErrInvalidLine, got %v", err)
	}
	if !c.IsEmpty() {
		t.Fatalf("cart mutated by invalid add")
	}
}

func TestCartSetQuantity(t *testing.T) {
	c := NewCart("guest:1")
	_ = c.Add(CartLine{ProductID: "P1", UnitPriceCents: 250, Quantity: 1, SelectedColor: "Blue"}, now)
	key := LineKey{ProductID: "P1", Color: "Blue"}

	if c.SetQuantity(key, 0, now) {
		t.Fatalf("qty 0 must be a no-op")
	}
	if c.Lines[0].Quantity != 1 {
		t.Fatalf("quantity changed by no-op")
	}
	if !c.SetQuantity(key, 4, now) {
		t.Fatalf("expected update")
	}
	if c.Total() != 1000 {
		t.Fatalf("expected total 1000, got %d", c.Total())
	}
	if c.SetQuantity(LineKey{ProductID: "P2"}, 3, now) {
		t.Fatalf("unknown key must not update")
	}
}

func TestCartRemoveAndTotal(t *testing.T) {
	c := NewCart("guest:1")
	_ = c.Add(CartLine{ProductID: "P1", UnitPriceCents: 1999, Quantity: 2}, now)
	_ = c.Add(CartLine{ProductID: "P2", UnitPriceCents: 1299, Quantity: 1}, now)
	if c.Total() != 2*1999+1299 {
		t.Fatalf("unexpected total %d", c.Total())
	}
	if c.ItemCount() != 3 {
		t.Fatalf("unexpected count %d", c.ItemCount())
	}

	if !c.Remove(LineKey{ProductID: "P1"}, now) {
		t.Fatalf("expected removal")
	}
	if c.Remove(LineKey{ProductID: "P1"}, now) {
		t.Fatalf("second removal should report absent")
	}
	if c.Total() != 1299 {
		t.Fatalf("unexpected total after remove %d", c.Total())
	}

	c.Clear(now)
	if !c.IsEmpty() || c.Total() != 0 {
		t.Fatalf("expected empty cart after clear")
	}
}

func TestCartRemoveDoesNotAliasClone(t *testing.T) {
	c := NewCart("guest:1")
	_ = c.Add(CartLine{ProductID: "P1", UnitPriceCents: 1, Quantity: 1}, now)
	_ = c.Add(CartLine{ProductID: "P2", UnitPriceCents: 1, Quantity: 1}, now)
	snapshot := c.Clone()
	c.Remove(LineKey{ProductID: "P1"}, now)
	if snapshot.Lines[0].ProductID != "P1" || len(snapshot.Lines) != 2 {
		t.Fatalf("clone changed by remove: %+v", snapshot.Lines)
	}
}

func TestCartNormalize(t *testing.T) {
	c := &Cart{SessionKey: "guest:1", Lines: []CartLine{
		{ProductID: "P1", Quantity: 1, UnitPriceCents: 10},
		{ProductID: "P2", Quantity: 0, UnitPriceCents: 10},
		{ProductID: "P1", Quantity: 2, UnitPriceCents: 10},
		{ProductID: "", Quantity: 2, UnitPriceCents: 10},
	}}
	c.Normalize()
	want := []CartLine{{ProductID: "P1", Quantity: 3, UnitPriceCents: 10}}
	if diff := cmp.Diff(want, c.Lines); diff != "" {
		t.Fatalf("normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestCartFingerprint(t *testing.T) {
	a := NewCart("guest:1")
	_ = a.Add(CartLine{ProductID: "P1", UnitPriceCents: 100, Quantity: 1}, now)
	_ = a.Add(CartLine{ProductID: "P2", UnitPriceCents: 200, Quantity: 2}, now)

	b := NewCart("guest:1")
	_ = b.Add(CartLine{ProductID: "P2", UnitPriceCents: 200, Quantity: 2}, now)
	_ = b.Add(CartLine{ProductID: "P1", UnitPriceCents: 100, Quantity: 1}, now)

	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("line order must not change fingerprint")
	}

	other := b.Clone()
	other.SessionKey = "guest:2"
	if other.Fingerprint() == a.Fingerprint() {
		t.Fatalf("fingerprint must depend on session")
	}

	b.SetQuantity(LineKey{ProductID: "P1"}, 2, now)
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatalf("fingerprint must depend on quantities")
	}
}
