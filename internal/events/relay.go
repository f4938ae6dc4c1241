package events

import (
	"context"
	"strings"
	"time"

	"storefront-checkout/internal/metrics"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Store is the outbox as seen by the relay.
type Store interface {
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, id int64) error
}

// Sink delivers one outbox record to the broker.
type Sink interface {
	Send(ctx context.Context, rec Record) error
}

// KafkaSink writes records to the topic stored on each record.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokersCSV string) *KafkaSink {
	var brokers []string
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return &KafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

func (k *KafkaSink) Send(ctx context.Context, rec Record) error {
	return k.writer.WriteMessages(ctx, kafka.Message{
		Topic: rec.Topic,
		Key:   []byte(rec.Key),
		Value: rec.Payload,
		Time:  rec.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(rec.EventID)},
		},
	})
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}

// LogSink logs records instead of sending them. Used when no broker is
// configured.
type LogSink struct {
	Logger logrus.FieldLogger
}

func (l LogSink) Send(_ context.Context, rec Record) error {
	l.Logger.WithFields(logrus.Fields{
		"event_id": rec.EventID,
		"topic":    rec.Topic,
		"key":      rec.Key,
	}).Info("event ready (no broker configured)")
	return nil
}

// Relay moves pending outbox records to the sink. A record is marked sent only
// after the sink accepts it.
type Relay struct {
	store     Store
	sink      Sink
	logger    logrus.FieldLogger
	metrics   *metrics.Checkout
	period    time.Duration
	batchSize int
}

func NewRelay(store Store, sink Sink, period time.Duration, logger logrus.FieldLogger, m *metrics.Checkout) *Relay {
	if period <= 0 {
		period = 2 * time.Second
	}
	return &Relay{
		store:     store,
		sink:      sink,
		logger:    logger.WithField("component", "outbox_relay"),
		metrics:   m,
		period:    period,
		batchSize: 100,
	}
}

// Run drains the outbox every period until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()
	for {
		if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
			r.logger.WithError(err).Warn("outbox drain failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Drain sends one batch and returns how many records were delivered. It
// stops at the first delivery error so ordering per key is kept.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	pending, err := r.store.FetchPending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, rec := range pending {
		if err := r.sink.Send(ctx, rec); err != nil {
			return sent, err
		}
		if err := r.store.MarkSent(ctx, rec.ID); err != nil {
			return sent, err
		}
		sent++
		if r.metrics != nil {
			r.metrics.OutboxPublished.Inc()
		}
	}
	if sent > 0 {
		r.logger.WithField("count", sent).Debug("outbox records delivered")
	}
	return sent, nil
}
