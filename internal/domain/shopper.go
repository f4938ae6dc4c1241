package domain

import "strings"

// Shopper is the optional identity threaded through checkout. Guests and
// signed-in customers are two variants of the same interface.
type Shopper interface {
	// SessionKey scopes carts and checkout sessions to this shopper.
	SessionKey() string
	// CustomerID returns the authenticated customer id, if any.
	CustomerID() (string, bool)
}

type GuestShopper struct {
	AnonymousID string
}

func (g GuestShopper) SessionKey() string {
	return "guest:" + strings.TrimSpace(g.AnonymousID)
}

func (g GuestShopper) CustomerID() (string, bool) {
	return "", false
}

type CustomerShopper struct {
	ID string
}

func (c CustomerShopper) SessionKey() string {
	return "customer:" + strings.TrimSpace(c.ID)
}

func (c CustomerShopper) CustomerID() (string, bool) {
	return c.ID, true
}
