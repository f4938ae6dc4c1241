package events

import (
	"context"
	"encoding/json"
	"time"
)

const (
	TypeOrderConfirmed = "order.confirmed"
	TypeOrderFailed    = "order.failed"
)

// OrderEvent is published once per resolved outcome. Consumers decrement
// stock on order.confirmed.
type OrderEvent struct {
	EventID        string      `json:"eventId"`
	Type           string      `json:"type"`
	OrderReference string      `json:"orderReference"`
	HandleID       string      `json:"authorizationHandleId"`
	SessionKey     string      `json:"sessionKey"`
	AmountMinor    int64       `json:"amount"`
	Currency       string      `json:"currency"`
	Lines          []EventLine `json:"lines,omitempty"`
	OccurredAt     time.Time   `json:"occurredAt"`
}

type EventLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"selectedSize,omitempty"`
	Color     string `json:"selectedColor,omitempty"`
}

// Publisher records an event for delivery. Delivery is at least once and
// keyed by order reference.
type Publisher interface {
	Publish(ctx context.Context, topic string, event OrderEvent) error
}

// Record is one row of the outbox.
type Record struct {
	ID        int64           `json:"id"`
	EventID   string          `json:"event_id"`
	Topic     string          `json:"topic"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at"`
}
