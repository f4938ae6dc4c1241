package gateway

import (
	"context"
	"time"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Instrumented records latency, results and a span for every gateway call.
type Instrumented struct {
	next    Gateway
	metrics *metrics.Checkout
	tracer  trace.Tracer
}

func Instrument(next Gateway, m *metrics.Checkout) *Instrumented {
	return &Instrumented{next: next, metrics: m, tracer: otel.Tracer("storefront-checkout/gateway")}
}

func (g *Instrumented) CreateAuthorization(ctx context.Context, req AuthorizationRequest) (domain.PaymentAuthorization, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.CreateAuthorization")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("app.payment.amount_minor", req.AmountMinor),
		attribute.String("app.payment.currency", req.Currency),
	)

	start := time.Now()
	auth, err := g.next.CreateAuthorization(ctx, req)
	g.observe("create", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create authorization failed")
		return auth, err
	}
	span.SetAttributes(attribute.String("app.payment.handle_id", auth.HandleID))
	return auth, nil
}

func (g *Instrumented) GetStatus(ctx context.Context, handleID string) (domain.AuthorizationStatus, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.GetStatus")
	defer span.End()
	span.SetAttributes(attribute.String("app.payment.handle_id", handleID))

	start := time.Now()
	status, err := g.next.GetStatus(ctx, handleID)
	g.observe("status", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get status failed")
		return status, err
	}
	span.SetAttributes(attribute.String("app.payment.status", string(status)))
	return status, nil
}

func (g *Instrumented) observe(op string, start time.Time, err error) {
	if g.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	g.metrics.GatewayCalls.WithLabelValues(op, result).Inc()
	g.metrics.GatewayLatencyMS.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))
}
