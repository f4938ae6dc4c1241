package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Outbox stores events in Postgres for the relay to deliver.
type Outbox struct {
	pool *pgxpool.Pool
}

func NewOutbox(pool *pgxpool.Pool) *Outbox {
	return &Outbox{pool: pool}
}

func (o *Outbox) Publish(ctx context.Context, topic string, event OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = o.pool.Exec(ctx, `
INSERT INTO outbox (event_id, topic, key, payload)
VALUES ($1, $2, $3, $4)
ON CONFLICT (event_id) DO NOTHING
`, event.EventID, topic, event.OrderReference, data)
	return err
}

func (o *Outbox) FetchPending(ctx context.Context, limit int) ([]Record, error) {
	rows, err := o.pool.Query(ctx, `
SELECT id, event_id, topic, key, payload, created_at, sent_at
FROM outbox
WHERE sent_at IS NULL
ORDER BY id
LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Topic, &rec.Key, &rec.Payload, &rec.CreatedAt, &rec.SentAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (o *Outbox) MarkSent(ctx context.Context, id int64) error {
	_, err := o.pool.Exec(ctx, `UPDATE outbox SET sent_at = now() WHERE id = $1`, id)
	return err
}

// MemoryOutbox keeps events in process memory for the memory backend and
// tests.
type MemoryOutbox struct {
	mu      sync.Mutex
	records []Record
	seen    map[string]bool
}

func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{seen: make(map[string]bool)}
}

func (m *MemoryOutbox) Publish(_ context.Context, topic string, event OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[event.EventID] {
		return nil
	}
	m.seen[event.EventID] = true
	m.records = append(m.records, Record{
		ID:        int64(len(m.records) + 1),
		EventID:   event.EventID,
		Topic:     topic,
		Key:       event.OrderReference,
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (m *MemoryOutbox) FetchPending(_ context.Context, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, r := range m.records {
		if r.SentAt == nil {
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryOutbox) MarkSent(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == id {
			now := time.Now().UTC()
			m.records[i].SentAt = &now
		}
	}
	return nil
}

// Records returns a copy of everything published so far.
func (m *MemoryOutbox) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}
