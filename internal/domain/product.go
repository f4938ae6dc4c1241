package domain

import "time"

// ProductSnapshot is the catalog's authoritative view of a product at
// validation time.
type ProductSnapshot struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"priceCents"`
	Stock      int       `json:"stock"`
	Sizes      []string  `json:"sizes"`
	Colors     []string  `json:"colors"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// HasSize reports whether size is offered. Products without declared sizes
// accept any value.
func (p ProductSnapshot) HasSize(size string) bool {
	return len(p.Sizes) == 0 || contains(p.Sizes, size)
}

func (p ProductSnapshot) HasColor(color string) bool {
	return len(p.Colors) == 0 || contains(p.Colors, color)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
