package domain

import "time"

type OrderStatus string

const (
	OrderConfirmed  OrderStatus = "Confirmed"
	OrderFailed     OrderStatus = "Failed"
	OrderProcessing OrderStatus = "Processing"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderConfirmed || s == OrderFailed
}

// Supersedes reports whether a stored outcome in status old may be replaced
// by next. Processing gives way to any terminal status, and Failed only to
// Confirmed when the shopper pays again on the same authorization.
func (next OrderStatus) Supersedes(old OrderStatus) bool {
	switch old {
	case OrderProcessing:
		return next.IsTerminal()
	case OrderFailed:
		return next == OrderConfirmed
	default:
		return false
	}
}

// OrderOutcome is the recorded result for one authorization handle. Completed
// is set once the side effects of a terminal status have all run.
type OrderOutcome struct {
	AuthorizationHandleID string      `json:"authorizationHandleId"`
	Status                OrderStatus `json:"status"`
	OrderReference        string      `json:"orderReference"`
	ResolvedAt            time.Time   `json:"resolvedAt"`
	Completed             bool        `json:"-"`
}
