package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"
)

// LineKey identifies a cart line. Lines sharing a key are merged.
type LineKey struct {
	ProductID string `json:"productId"`
	Size      string `json:"selectedSize,omitempty"`
	Color     string `json:"selectedColor,omitempty"`
}

// Normalize trims whitespace so keys built from user input compare equal.
func (k LineKey) Normalize() LineKey {
	return LineKey{
		ProductID: strings.TrimSpace(k.ProductID),
		Size:      strings.TrimSpace(k.Size),
		Color:     strings.TrimSpace(k.Color),
	}
}

type CartLine struct {
	ProductID      string `json:"productId"`
	Name           string `json:"name,omitempty"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Quantity       int    `json:"quantity"`
	SelectedSize   string `json:"selectedSize,omitempty"`
	SelectedColor  string `json:"selectedColor,omitempty"`
}

func (l CartLine) Key() LineKey {
	return LineKey{ProductID: l.ProductID, Size: l.SelectedSize, Color: l.SelectedColor}.Normalize()
}

// TotalCents is the line subtotal in minor units.
func (l CartLine) TotalCents() int64 {
	return l.UnitPriceCents * int64(l.Quantity)
}

// Cart is the shopper's in-progress cart. Lines keep insertion order, keys are
// unique and every quantity is at least 1.
type Cart struct {
	SessionKey string     `json:"sessionKey"`
	Lines      []CartLine `json:"lines"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// NewCart returns an empty cart for the given session key.
func NewCart(sessionKey string) *Cart {
	return &Cart{SessionKey: sessionKey, Lines: []CartLine{}}
}

// Add merges line into the cart: an existing line with the same key has its
// quantity increased, otherwise the line is appended.
func (c *Cart) Add(line CartLine, now time.Time) error {
	key := line.Key()
	if key.ProductID == "" || line.Quantity < 1 || line.UnitPriceCents < 0 {
		return ErrInvalidLine
	}
	line.ProductID, line.SelectedSize, line.SelectedColor = key.ProductID, key.Size, key.Color

	if idx := c.indexOf(key); idx >= 0 {
		c.Lines[idx].Quantity += line.Quantity
	} else {
		c.Lines = append(c.Lines, line)
	}
	c.UpdatedAt = now
	return nil
}

// SetQuantity replaces the quantity of the matching line. Quantities below 1
// are ignored; callers remove lines explicitly.
func (c *Cart) SetQuantity(key LineKey, qty int, now time.Time) bool {
	if qty < 1 {
		return false
	}
	idx := c.indexOf(key.Normalize())
	if idx < 0 {
		return false
	}
	c.Lines[idx].Quantity = qty
	c.UpdatedAt = now
	return true
}

// Remove deletes the matching line if present.
func (c *Cart) Remove(key LineKey, now time.Time) bool {
	idx := c.indexOf(key.Normalize())
	if idx < 0 {
		return false
	}
	c.Lines = append(c.Lines[:idx:idx], c.Lines[idx+1:]...)
	c.UpdatedAt = now
	return true
}

func (c *Cart) Clear(now time.Time) {
	c.Lines = []CartLine{}
	c.UpdatedAt = now
}

// Total is the sum of unit price times quantity, in minor units.
func (c *Cart) Total() int64 {
	var total int64
	for _, l := range c.Lines {
		total += l.TotalCents()
	}
	return total
}

// ItemCount is the number of units across all lines.
func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c *Cart) Clone() *Cart {
	out := &Cart{SessionKey: c.SessionKey, UpdatedAt: c.UpdatedAt}
	out.Lines = make([]CartLine, len(c.Lines))
	copy(out.Lines, c.Lines)
	return out
}

// Normalize merges duplicate keys and drops non-positive quantities. It is
// applied to carts read back from persistence so the invariants hold even if
// the stored data was written by an older version.
func (c *Cart) Normalize() {
	merged := make([]CartLine, 0, len(c.Lines))
	seen := make(map[LineKey]int, len(c.Lines))
	for _, l := range c.Lines {
		if l.Quantity < 1 {
			continue
		}
		key := l.Key()
		if key.ProductID == "" {
			continue
		}
		if idx, ok := seen[key]; ok {
			merged[idx].Quantity += l.Quantity
			continue
		}
		l.ProductID, l.SelectedSize, l.SelectedColor = key.ProductID, key.Size, key.Color
		seen[key] = len(merged)
		merged = append(merged, l)
	}
	c.Lines = merged
}

// Fingerprint is a stable digest of the session key and cart contents. Line
// order does not affect it.
func (c *Cart) Fingerprint() string {
	parts := make([]string, 0, len(c.Lines))
	for _, l := range c.Lines {
		parts = append(parts, strings.Join([]string{
			l.ProductID,
			l.SelectedSize,
			l.SelectedColor,
			strconv.Itoa(l.Quantity),
			strconv.FormatInt(l.UnitPriceCents, 10),
		}, "\x1f"))
	}
	sort.Strings(parts)

	h := sha256.New()
	h.Write([]byte(c.SessionKey))
	for _, p := range parts {
		h.Write([]byte{0x1e})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cart) indexOf(key LineKey) int {
	for i, l := range c.Lines {
		if l.Key() == key {
			return i
		}
	}
	return -1
}
