package domain

import (
	"sort"
	"strings"
	"time"
)

type CheckoutState string

const (
	StateCollectingShippingInfo CheckoutState = "CollectingShippingInfo"
	StateAwaitingPayment        CheckoutState = "AwaitingPayment"
	StateRedirected             CheckoutState = "Redirected"
	StateConfirmed              CheckoutState = "Confirmed"
	StateFailed                 CheckoutState = "Failed"
)

// IsTerminal reports whether no further automatic transition happens from s.
func (s CheckoutState) IsTerminal() bool {
	return s == StateConfirmed || s == StateFailed
}

// CanTransition reports whether from -> to is an allowed checkout step.
// Failed -> CollectingShippingInfo only happens when the shopper re-enters
// checkout after a declined payment.
func CanTransition(from, to CheckoutState) bool {
	switch from {
	case StateCollectingShippingInfo:
		return to == StateAwaitingPayment
	case StateAwaitingPayment:
		return to == StateCollectingShippingInfo || to == StateRedirected ||
			to == StateConfirmed || to == StateFailed
	case StateRedirected:
		return to == StateConfirmed || to == StateFailed
	case StateFailed:
		return to == StateCollectingShippingInfo
	default:
		return false
	}
}

// CanSettle reports whether a payment outcome reported by the gateway may
// move a session from -> to. Any open state settles. Confirmed is final and
// Failed only yields to Confirmed.
func CanSettle(from, to CheckoutState) bool {
	if to != StateConfirmed && to != StateFailed {
		return false
	}
	switch from {
	case StateConfirmed:
		return false
	case StateFailed:
		return to == StateConfirmed
	default:
		return true
	}
}

// ShippingInfo is the shipping form submitted in the first checkout step.
type ShippingInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	Country   string `json:"country"`
}

// MissingFields lists the names of empty required fields.
func (s ShippingInfo) MissingFields() []string {
	var missing []string
	for name, v := range map[string]string{
		"firstName": s.FirstName,
		"lastName":  s.LastName,
		"email":     s.Email,
		"address":   s.Address,
		"city":      s.City,
		"state":     s.State,
		"zipCode":   s.ZipCode,
		"country":   s.Country,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// CheckoutSession is one checkout attempt of a shopper.
type CheckoutSession struct {
	ID                    string        `json:"id"`
	ShopperKey            string        `json:"-"`
	State                 CheckoutState `json:"state"`
	Shipping              *ShippingInfo `json:"shipping,omitempty"`
	AuthorizationHandleID string        `json:"authorizationHandleId,omitempty"`
	ClientSecret          string        `json:"clientSecret,omitempty"`
	Fingerprint           string        `json:"-"`
	Currency              string        `json:"currency"`
	Totals                Totals        `json:"totals"`
	Pending               bool          `json:"pending"`
	CreatedAt             time.Time     `json:"createdAt"`
	UpdatedAt             time.Time     `json:"updatedAt"`
}
