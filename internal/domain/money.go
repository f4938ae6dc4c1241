package domain

import "github.com/shopspring/decimal"

// MinorUnitExponent is the number of decimal places of the supported
// currencies (usd, eur).
const MinorUnitExponent = 2

// ToMinorUnits converts a major-unit amount to minor units, rounding half up
// to the nearest minor unit: 19.995 becomes 2000.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(MinorUnitExponent).Round(0).IntPart()
}

func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -MinorUnitExponent)
}

// Totals is the checkout price breakdown in minor units.
type Totals struct {
	SubtotalCents int64 `json:"subtotal"`
	ShippingCents int64 `json:"shipping"`
	TaxCents      int64 `json:"tax"`
	TotalCents    int64 `json:"total"`
}

// ComputeTotals adds the flat shipping fee and tax (rate applied to the
// subtotal, rounded half up) to subtotalCents.
func ComputeTotals(subtotalCents int64, shipping, taxRate decimal.Decimal) Totals {
	shippingCents := ToMinorUnits(shipping)
	taxCents := ToMinorUnits(FromMinorUnits(subtotalCents).Mul(taxRate))
	return Totals{
		SubtotalCents: subtotalCents,
		ShippingCents: shippingCents,
		TaxCents:      taxCents,
		TotalCents:    subtotalCents + shippingCents + taxCents,
	}
}
