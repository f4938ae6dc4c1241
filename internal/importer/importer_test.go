package importer

import (
	"context"
	"strings"
	"testing"

	"storefront-checkout/internal/domain"
	productrepo "storefront-checkout/internal/repository/product"

	"github.com/google/go-cmp/cmp"
)

type stubProductRepo struct {
	items []productrepo.ProductRecord
}

func (s *stubProductRepo) Upsert(_ context.Context, p productrepo.ProductRecord) (*domain.ProductSnapshot, error) {
	s.items = append(s.items, p)
	snap := p.ProductSnapshot
	return &snap, nil
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := `id,name,description,price,stock,sizes,colors,category,images
hoodie-mint,Amaze Hoodie,Fleece hoodie,45.00,30,S|M|L|XL,Mint Green,Men,https://example.com/img1.jpg
,,,,,,,,https://example.com/img2.jpg
cap,Logo Cap,,15.005,3,,,,`

	repo := &stubProductRepo{}
	imp := NewCSVImporter(strings.NewReader(csvData), repo)

	count, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 products imported, got %d", count)
	}
	if len(repo.items) != 2 {
		t.Fatalf("expected 2 products saved, got %d", len(repo.items))
	}

	hoodie := repo.items[0]
	if hoodie.PriceCents != 4500 || hoodie.Stock != 30 || hoodie.Description != "Fleece hoodie" {
		t.Fatalf("unexpected product data: %+v", hoodie)
	}
	if diff := cmp.Diff([]string{"S", "M", "L", "XL"}, hoodie.Sizes); diff != "" {
		t.Fatalf("sizes mismatch (-want +got):\n%s", diff)
	}
	if len(hoodie.Attributes["images"].([]string)) != 2 {
		t.Fatalf("expected 2 images on first product")
	}
	if hoodie.Attributes["category"] != "Men" {
		t.Fatalf("expected category attribute, got %v", hoodie.Attributes["category"])
	}

	logoCap := repo.items[1]
	if logoCap.PriceCents != 1501 {
		t.Fatalf("expected half-up rounding to 1501, got %d", logoCap.PriceCents)
	}
	if logoCap.Sizes != nil || logoCap.Colors != nil {
		t.Fatalf("expected no variants on cap, got %+v", logoCap.ProductSnapshot)
	}
}

func TestCSVImporter_RejectsBadRows(t *testing.T) {
	cases := map[string]string{
		"missing price":  "id,name,price\np1,Tee,\n",
		"negative price": "id,name,price\np1,Tee,-1\n",
		"bad stock":      "id,name,price,stock\np1,Tee,10,many\n",
		"no id column":   "name,price\nTee,10\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			repo := &stubProductRepo{}
			if _, err := NewCSVImporter(strings.NewReader(data), repo).Run(context.Background()); err == nil {
				t.Fatalf("expected error")
			}
			if len(repo.items) != 0 {
				t.Fatalf("expected nothing saved, got %d", len(repo.items))
			}
		})
	}
}
