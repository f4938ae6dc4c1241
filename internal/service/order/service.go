package order

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/events"
	"storefront-checkout/internal/gateway"
	"storefront-checkout/internal/metrics"
	orderrepo "storefront-checkout/internal/repository/order"
	paymentrepo "storefront-checkout/internal/repository/payment"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// RedirectParams is what the payment UI hands back on return.
type RedirectParams struct {
	HandleID          string
	ConfirmationToken string
	StatusCode        string
}

// MapStatus folds an external redirect status into an order status.
func MapStatus(code string) domain.OrderStatus {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "succeeded":
		return domain.OrderConfirmed
	case "failed", "declined":
		return domain.OrderFailed
	default:
		return domain.OrderProcessing
	}
}

// CartClearer reads and empties the cart behind a session key.
type CartClearer interface {
	SessionLines(ctx context.Context, sessionKey string) ([]domain.CartLine, error)
	ClearSession(ctx context.Context, sessionKey string) ([]domain.CartLine, error)
}

type CheckoutCompleter interface {
	CompleteFromOutcome(ctx context.Context, handleID string, status domain.OrderStatus) (*domain.CheckoutSession, error)
}

type Deps struct {
	Authorizations paymentrepo.Repository
	Outcomes       orderrepo.Repository
	Carts          CartClearer
	Checkouts      CheckoutCompleter
	Gateway        gateway.Gateway
	Publisher      events.Publisher
	Topic          string
	Logger         logrus.FieldLogger
	Metrics        *metrics.Checkout
}

// Reconciler turns redirect callbacks into order outcomes. The side effects of
// a terminal outcome (settle the checkout session, publish the order event,
// clear the cart) are retried by later calls for the same handle until the
// outcome is marked completed.
type Reconciler struct {
	auths     paymentrepo.Repository
	outcomes  orderrepo.Repository
	carts     CartClearer
	checkouts CheckoutCompleter
	gateway   gateway.Gateway
	publisher events.Publisher
	topic     string
	logger    logrus.FieldLogger
	metrics   *metrics.Checkout
	now       func() time.Time
	newRef    func() string
	flight    singleflight.Group
}

func New(d Deps) *Reconciler {
	logger := d.Logger
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		logger = l
	}
	return &Reconciler{
		auths:     d.Authorizations,
		outcomes:  d.Outcomes,
		carts:     d.Carts,
		checkouts: d.Checkouts,
		gateway:   d.Gateway,
		publisher: d.Publisher,
		topic:     d.Topic,
		logger:    logger.WithField("component", "order_reconciler"),
		metrics:   d.Metrics,
		now:       func() time.Time { return time.Now().UTC() },
		newRef:    func() string { return "ORD-" + strings.ToUpper(uuid.NewString()) },
	}
}

// Resolve records the outcome of a redirect. The status code is trusted only
// once the handle and token match an authorization issued here. Resolving the
// same params again returns the stored outcome, finishing any side effects a
// previous call left undone.
func (r *Reconciler) Resolve(ctx context.Context, p RedirectParams) (domain.OrderOutcome, error) {
	handle := strings.TrimSpace(p.HandleID)
	if handle == "" {
		return domain.OrderOutcome{}, domain.ErrRedirectHandleMissing
	}
	auth, err := r.auths.GetByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.logger.WithField("handle_id", handle).Warn("redirect for unknown authorization")
			return domain.OrderOutcome{}, domain.ErrRedirectHandleUnknown
		}
		return domain.OrderOutcome{}, fmt.Errorf("load authorization: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(p.ConfirmationToken), []byte(auth.ClientSecret)) != 1 {
		r.logger.WithField("handle_id", handle).Warn("redirect token mismatch")
		return domain.OrderOutcome{}, domain.ErrRedirectHandleUnknown
	}
	return r.apply(ctx, auth, MapStatus(p.StatusCode))
}

// Refresh asks the gateway for the current status of a handle and records it.
// It resolves outcomes left in Processing. Only the shopper the authorization
// was created for may refresh it; anyone else gets domain.ErrNotFound.
func (r *Reconciler) Refresh(ctx context.Context, shopper domain.Shopper, handleID string) (domain.OrderOutcome, error) {
	auth, err := r.auths.GetByHandle(ctx, handleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.OrderOutcome{}, domain.ErrRedirectHandleUnknown
		}
		return domain.OrderOutcome{}, fmt.Errorf("load authorization: %w", err)
	}
	if shopper == nil || auth.ShopperKey == "" || auth.ShopperKey != shopper.SessionKey() {
		r.logger.WithField("handle_id", handleID).Warn("refresh by another shopper")
		return domain.OrderOutcome{}, domain.ErrNotFound
	}
	if existing, err := r.outcomes.Get(ctx, handleID); err == nil && existing.Status == domain.OrderConfirmed {
		return r.settle(ctx, auth, *existing)
	}
	status, err := r.gateway.GetStatus(ctx, handleID)
	if err != nil {
		return domain.OrderOutcome{}, fmt.Errorf("gateway status: %w", err)
	}
	return r.apply(ctx, auth, orderStatusFor(status))
}

func orderStatusFor(s domain.AuthorizationStatus) domain.OrderStatus {
	switch s {
	case domain.AuthorizationSucceeded:
		return domain.OrderConfirmed
	case domain.AuthorizationFailed:
		return domain.OrderFailed
	default:
		return domain.OrderProcessing
	}
}

func authorizationStatusFor(s domain.OrderStatus) domain.AuthorizationStatus {
	switch s {
	case domain.OrderConfirmed:
		return domain.AuthorizationSucceeded
	case domain.OrderFailed:
		return domain.AuthorizationFailed
	default:
		return domain.AuthorizationPending
	}
}

func (r *Reconciler) apply(ctx context.Context, auth *domain.PaymentAuthorization, status domain.OrderStatus) (domain.OrderOutcome, error) {
	ref := r.newRef()
	existing, err := r.outcomes.Get(ctx, auth.HandleID)
	switch {
	case err == nil:
		if !status.Supersedes(existing.Status) {
			return r.settle(ctx, auth, *existing)
		}
		ref = existing.OrderReference
	case !errors.Is(err, domain.ErrNotFound):
		return domain.OrderOutcome{}, fmt.Errorf("load outcome: %w", err)
	}

	stored, applied, err := r.outcomes.Record(ctx, domain.OrderOutcome{
		AuthorizationHandleID: auth.HandleID,
		Status:                status,
		OrderReference:        ref,
		ResolvedAt:            r.now(),
	})
	if err != nil {
		return domain.OrderOutcome{}, fmt.Errorf("record outcome: %w", err)
	}
	if applied {
		r.logger.WithFields(logrus.Fields{
			"handle_id": auth.HandleID,
			"status":    stored.Status,
			"order_ref": stored.OrderReference,
		}).Info("order outcome recorded")
		if r.metrics != nil {
			r.metrics.Outcomes.WithLabelValues(string(stored.Status)).Inc()
		}
		if stored.Status == domain.OrderProcessing {
			if err := r.auths.UpdateStatus(ctx, auth.HandleID, domain.AuthorizationPending); err != nil {
				return stored, fmt.Errorf("update authorization: %w", err)
			}
		}
	}
	return r.settle(ctx, auth, stored)
}

// settle runs the side effects of a terminal outcome unless they already
// completed. Concurrent calls for the same handle and status share one run.
func (r *Reconciler) settle(ctx context.Context, auth *domain.PaymentAuthorization, o domain.OrderOutcome) (domain.OrderOutcome, error) {
	if !o.Status.IsTerminal() || o.Completed {
		return o, nil
	}
	key := auth.HandleID + "|" + string(o.Status)
	_, err, _ := r.flight.Do(key, func() (interface{}, error) {
		return nil, r.completeOutcome(context.WithoutCancel(ctx), auth, o.Status)
	})
	if err != nil {
		return o, err
	}
	o.Completed = true
	return o, nil
}

// completeOutcome is safe to repeat after a partial run. The event id is
// derived from the order reference and type, so a republished event is
// dropped by the outbox, and the event lines are read before the cart is
// cleared.
func (r *Reconciler) completeOutcome(ctx context.Context, auth *domain.PaymentAuthorization, status domain.OrderStatus) error {
	current, err := r.outcomes.Get(ctx, auth.HandleID)
	if err != nil {
		return fmt.Errorf("load outcome: %w", err)
	}
	if current.Completed || current.Status != status {
		return nil
	}
	log := r.logger.WithFields(logrus.Fields{
		"handle_id": auth.HandleID,
		"status":    status,
		"order_ref": current.OrderReference,
	})

	if err := r.auths.UpdateStatus(ctx, auth.HandleID, authorizationStatusFor(status)); err != nil {
		log.WithError(err).Error("update authorization status")
		return fmt.Errorf("update authorization: %w", err)
	}

	// Intents created outside a checkout session carry only the shopper key.
	shopperKey := auth.ShopperKey
	sess, err := r.checkouts.CompleteFromOutcome(ctx, auth.HandleID, status)
	switch {
	case err == nil:
		shopperKey = sess.ShopperKey
	case errors.Is(err, domain.ErrNotFound):
		log.Debug("authorization has no checkout session")
	default:
		log.WithError(err).Error("complete checkout session")
		return fmt.Errorf("complete checkout: %w", err)
	}

	event := orderEvent(*current, auth, shopperKey)
	clearCart := status == domain.OrderConfirmed && shopperKey != ""
	if clearCart {
		lines, err := r.carts.SessionLines(ctx, shopperKey)
		if err != nil {
			log.WithError(err).Error("read cart")
			return fmt.Errorf("read cart: %w", err)
		}
		for _, l := range lines {
			event.Lines = append(event.Lines, events.EventLine{
				ProductID: l.ProductID,
				Quantity:  l.Quantity,
				Size:      l.SelectedSize,
				Color:     l.SelectedColor,
			})
		}
	}
	if err := r.publisher.Publish(ctx, r.topic, event); err != nil {
		log.WithError(err).Error("publish order event")
		return fmt.Errorf("publish order event: %w", err)
	}
	if clearCart {
		if _, err := r.carts.ClearSession(ctx, shopperKey); err != nil {
			log.WithError(err).Error("clear cart")
			return fmt.Errorf("clear cart: %w", err)
		}
	}

	if err := r.outcomes.MarkCompleted(ctx, auth.HandleID, status); err != nil {
		log.WithError(err).Error("mark outcome completed")
		return fmt.Errorf("mark completed: %w", err)
	}
	log.Info("order outcome completed")
	return nil
}

func orderEvent(o domain.OrderOutcome, auth *domain.PaymentAuthorization, shopperKey string) events.OrderEvent {
	eventType := events.TypeOrderFailed
	if o.Status == domain.OrderConfirmed {
		eventType = events.TypeOrderConfirmed
	}
	return events.OrderEvent{
		EventID:        uuid.NewSHA1(uuid.NameSpaceURL, []byte("order-event:"+o.OrderReference+":"+eventType)).String(),
		Type:           eventType,
		OrderReference: o.OrderReference,
		HandleID:       auth.HandleID,
		SessionKey:     shopperKey,
		AmountMinor:    auth.AmountMinor,
		Currency:       auth.Currency,
		OccurredAt:     o.ResolvedAt,
	}
}
