package domain

import "time"

type AuthorizationStatus string

const (
	AuthorizationCreated   AuthorizationStatus = "Created"
	AuthorizationPending   AuthorizationStatus = "Pending"
	AuthorizationSucceeded AuthorizationStatus = "Succeeded"
	AuthorizationFailed    AuthorizationStatus = "Failed"
)

// PaymentAuthorization is a single authorization attempt at the gateway.
// It is bound to an amount; a different amount needs a new authorization.
type PaymentAuthorization struct {
	HandleID       string              `json:"handleId"`
	ClientSecret   string              `json:"-"`
	AmountMinor    int64               `json:"amount"`
	Currency       string              `json:"currency"`
	Status         AuthorizationStatus `json:"status"`
	IdempotencyKey string              `json:"-"`
	SessionID      string              `json:"-"`
	ShopperKey     string              `json:"-"`
	CreatedAt      time.Time           `json:"createdAt"`
}
