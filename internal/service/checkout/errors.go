package checkout

import (
	"strings"

	"storefront-checkout/internal/domain"
)

// CartInvalidError rejects a shipping submission because the cart failed
// validation. The shopper is routed back to the cart with the violations.
type CartInvalidError struct {
	Verdict domain.ValidationVerdict
}

func (e *CartInvalidError) Error() string {
	return "cart failed validation: " + strings.Join(e.Verdict.Messages(), "; ")
}

// ShippingInvalidError lists the required shipping fields left empty.
type ShippingInvalidError struct {
	Fields []string
}

func (e *ShippingInvalidError) Error() string {
	return "missing shipping fields: " + strings.Join(e.Fields, ", ")
}
