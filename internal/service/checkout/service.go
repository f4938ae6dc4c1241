package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/gateway"
	"storefront-checkout/internal/metrics"
	checkoutrepo "storefront-checkout/internal/repository/checkout"
	paymentrepo "storefront-checkout/internal/repository/payment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

type CartReader interface {
	Get(ctx context.Context, shopper domain.Shopper) (*domain.Cart, error)
}

type Validator interface {
	Validate(ctx context.Context, lines []domain.CartLine) (domain.ValidationVerdict, error)
}

// Catalog supplies the authoritative unit prices a checkout is charged at.
type Catalog interface {
	GetByID(ctx context.Context, id string) (*domain.ProductSnapshot, error)
}

// Pricing holds the storefront constants used to price a checkout.
type Pricing struct {
	Currency             string
	Shipping             decimal.Decimal
	TaxRate              decimal.Decimal
	AuthorizationTimeout time.Duration
}

type Deps struct {
	Sessions       checkoutrepo.Repository
	Authorizations paymentrepo.Repository
	Carts          CartReader
	Validator      Validator
	Catalog        Catalog
	Gateway        gateway.Gateway
	Pricing        Pricing
	Logger         logrus.FieldLogger
	Metrics        *metrics.Checkout
}

// Service drives a checkout session through its states. Terminal states are
// only reached through CompleteFromOutcome.
type Service struct {
	sessions  checkoutrepo.Repository
	auths     paymentrepo.Repository
	carts     CartReader
	validator Validator
	catalog   Catalog
	gateway   gateway.Gateway
	pricing   Pricing
	logger    logrus.FieldLogger
	metrics   *metrics.Checkout
	tracer    trace.Tracer

	flight    singleflight.Group
	pendingMu sync.Mutex
	pending   map[string]int

	now   func() time.Time
	newID func() string
}

func New(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		logger = l
	}
	if d.Pricing.AuthorizationTimeout <= 0 {
		d.Pricing.AuthorizationTimeout = 10 * time.Second
	}
	return &Service{
		sessions:  d.Sessions,
		auths:     d.Authorizations,
		carts:     d.Carts,
		validator: d.Validator,
		catalog:   d.Catalog,
		gateway:   d.Gateway,
		pricing:   d.Pricing,
		logger:    logger.WithField("component", "checkout"),
		metrics:   d.Metrics,
		tracer:    otel.Tracer("storefront-checkout/checkout"),
		pending:   make(map[string]int),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return "cs_" + uuid.NewString() },
	}
}

// Begin returns the shopper's open session, re-opens a failed one, or starts
// a new session in CollectingShippingInfo.
func (s *Service) Begin(ctx context.Context, shopper domain.Shopper) (*domain.CheckoutSession, error) {
	latest, err := s.sessions.Latest(ctx, shopper.SessionKey())
	switch {
	case err == nil && !latest.State.IsTerminal():
		return s.decorate(ctx, latest), nil
	case err == nil && latest.State == domain.StateFailed:
		// The attached authorization stays; SubmitShipping reuses it when the
		// amount is unchanged.
		if err := s.transition(latest, domain.StateCollectingShippingInfo); err != nil {
			return nil, err
		}
		if err := s.sessions.Update(ctx, *latest); err != nil {
			return nil, s.unavailable("reopen session", err)
		}
		return s.decorate(ctx, latest), nil
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, s.unavailable("load latest session", err)
	}

	now := s.now()
	sess := domain.CheckoutSession{
		ID:         s.newID(),
		ShopperKey: shopper.SessionKey(),
		State:      domain.StateCollectingShippingInfo,
		Currency:   s.pricing.Currency,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, s.unavailable("create session", err)
	}
	s.logger.WithFields(logrus.Fields{"session_id": sess.ID, "shopper": sess.ShopperKey}).Info("checkout started")
	return &sess, nil
}

func (s *Service) Get(ctx context.Context, shopper domain.Shopper, sessionID string) (*domain.CheckoutSession, error) {
	sess, err := s.owned(ctx, shopper, sessionID)
	if err != nil {
		return nil, err
	}
	return s.decorate(ctx, sess), nil
}

// SubmitShipping validates the cart, prices it and attaches a payment
// authorization, moving the session to AwaitingPayment. While a submission
// is outstanding, identical submissions for the same session share its
// result.
func (s *Service) SubmitShipping(ctx context.Context, shopper domain.Shopper, sessionID string, info domain.ShippingInfo) (*domain.CheckoutSession, error) {
	s.markPending(sessionID, 1)
	defer s.markPending(sessionID, -1)

	key := submissionKey(shopper, sessionID, info)
	v, err, shared := s.flight.Do(key, func() (interface{}, error) {
		return s.submitShipping(context.WithoutCancel(ctx), shopper, sessionID, info)
	})
	if shared {
		s.logger.WithField("session_id", sessionID).Debug("collapsed duplicate shipping submission")
	}
	if err != nil {
		return nil, err
	}
	out := *v.(*domain.CheckoutSession)
	return &out, nil
}

func (s *Service) submitShipping(ctx context.Context, shopper domain.Shopper, sessionID string, info domain.ShippingInfo) (*domain.CheckoutSession, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.SubmitShipping")
	defer span.End()
	span.SetAttributes(attribute.String("app.checkout.session_id", sessionID))

	sess, err := s.owned(ctx, shopper, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.State != domain.StateCollectingShippingInfo && sess.State != domain.StateAwaitingPayment {
		return nil, fmt.Errorf("%w: submit shipping in %s", domain.ErrInvalidTransition, sess.State)
	}
	if missing := info.MissingFields(); len(missing) > 0 {
		return nil, &ShippingInvalidError{Fields: missing}
	}

	cart, err := s.carts.Get(ctx, shopper)
	if err != nil {
		return nil, s.unavailable("load cart", err)
	}
	verdict, err := s.validator.Validate(ctx, cart.Lines)
	if err != nil {
		return nil, s.unavailable("validate cart", err)
	}
	if !verdict.IsValid {
		return nil, &CartInvalidError{Verdict: verdict}
	}

	if err := s.reprice(ctx, cart); err != nil {
		return nil, err
	}
	totals := domain.ComputeTotals(cart.Total(), s.pricing.Shipping, s.pricing.TaxRate)
	fingerprint := cart.Fingerprint()
	span.SetAttributes(attribute.Int64("app.checkout.total_minor", totals.TotalCents))

	auth, err := s.authorize(ctx, sess, fingerprint, totals.TotalCents)
	if err != nil {
		return nil, err
	}

	if sess.State == domain.StateCollectingShippingInfo {
		if err := s.transition(sess, domain.StateAwaitingPayment); err != nil {
			return nil, err
		}
	}
	shipping := info
	sess.Shipping = &shipping
	sess.AuthorizationHandleID = auth.HandleID
	sess.Fingerprint = fingerprint
	sess.Totals = totals
	sess.UpdatedAt = s.now()
	if err := s.sessions.Update(ctx, *sess); err != nil {
		return nil, s.unavailable("save session", err)
	}
	sess.ClientSecret = auth.ClientSecret
	return sess, nil
}

// authorize returns the authorization for this attempt, creating it at the
// gateway only if none exists for the session, fingerprint and amount.
func (s *Service) authorize(ctx context.Context, sess *domain.CheckoutSession, fingerprint string, amount int64) (*domain.PaymentAuthorization, error) {
	key := IdempotencyKey(sess.ID, fingerprint, amount)
	log := s.logger.WithFields(logrus.Fields{"session_id": sess.ID, "amount": amount})

	existing, err := s.auths.GetByIdempotencyKey(ctx, key)
	if err == nil {
		log.WithField("handle_id", existing.HandleID).Info("reusing authorization")
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, s.unavailable("load authorization", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.pricing.AuthorizationTimeout)
	defer cancel()
	auth, err := s.gateway.CreateAuthorization(callCtx, gateway.AuthorizationRequest{
		AmountMinor:    amount,
		Currency:       s.pricing.Currency,
		IdempotencyKey: key,
		Metadata: map[string]string{
			"checkout_session": sess.ID,
			"cart_fingerprint": fingerprint,
		},
	})
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
			log.WithError(err).Warn("authorization timed out")
			return nil, domain.ErrAuthorizationTimeout
		default:
			log.WithError(err).Warn("authorization failed")
			return nil, domain.ErrAuthorizationCreateFailed
		}
	}

	auth.SessionID = sess.ID
	auth.ShopperKey = sess.ShopperKey
	auth.IdempotencyKey = key
	if auth.CreatedAt.IsZero() {
		auth.CreatedAt = s.now()
	}
	if err := s.auths.Create(ctx, auth); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return s.auths.GetByIdempotencyKey(ctx, key)
		}
		return nil, s.unavailable("store authorization", err)
	}
	log.WithField("handle_id", auth.HandleID).Info("authorization created")
	return &auth, nil
}

// submissionKey identifies a shipping submission for collapsing duplicates.
func submissionKey(shopper domain.Shopper, sessionID string, info domain.ShippingInfo) string {
	h := sha256.New()
	for _, part := range []string{
		shopper.SessionKey(), sessionID,
		info.FirstName, info.LastName, info.Email, info.Address,
		info.City, info.State, info.ZipCode, info.Country,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0x1f})
	}
	return sessionID + ":" + hex.EncodeToString(h.Sum(nil))
}

// reprice charges every line at the catalog price, whatever price the client
// put in the cart. The cart is modified in place.
func (s *Service) reprice(ctx context.Context, cart *domain.Cart) error {
	prices := make(map[string]int64, len(cart.Lines))
	for i := range cart.Lines {
		line := &cart.Lines[i]
		price, ok := prices[line.ProductID]
		if !ok {
			snap, err := s.catalog.GetByID(ctx, line.ProductID)
			if err != nil {
				return s.unavailable("load catalog price", err)
			}
			price = snap.PriceCents
			prices[line.ProductID] = price
		}
		if line.UnitPriceCents != price {
			s.logger.WithFields(logrus.Fields{
				"product_id":    line.ProductID,
				"cart_price":    line.UnitPriceCents,
				"catalog_price": price,
			}).Info("repriced cart line")
			line.UnitPriceCents = price
		}
	}
	return nil
}

// IdempotencyKey scopes a gateway request to one checkout attempt: the same
// session, cart contents and amount.
func IdempotencyKey(sessionID, fingerprint string, amount int64) string {
	return sessionID + ":" + fingerprint + ":" + strconv.FormatInt(amount, 10)
}

// ReturnToShipping moves back to the shipping form. The authorization stays
// attached and is reused if the amount does not change.
func (s *Service) ReturnToShipping(ctx context.Context, shopper domain.Shopper, sessionID string) (*domain.CheckoutSession, error) {
	return s.step(ctx, shopper, sessionID, domain.StateCollectingShippingInfo)
}

// MarkRedirected records that the shopper left for the payment UI.
func (s *Service) MarkRedirected(ctx context.Context, shopper domain.Shopper, sessionID string) (*domain.CheckoutSession, error) {
	return s.step(ctx, shopper, sessionID, domain.StateRedirected)
}

func (s *Service) step(ctx context.Context, shopper domain.Shopper, sessionID string, to domain.CheckoutState) (*domain.CheckoutSession, error) {
	sess, err := s.owned(ctx, shopper, sessionID)
	if err != nil {
		return nil, err
	}
	if s.isPending(sessionID) {
		return nil, fmt.Errorf("%w: submission in progress", domain.ErrInvalidTransition)
	}
	if err := s.transition(sess, to); err != nil {
		return nil, err
	}
	if err := s.sessions.Update(ctx, *sess); err != nil {
		return nil, s.unavailable("save session", err)
	}
	return s.decorate(ctx, sess), nil
}

// CompleteFromOutcome applies a reconciled order outcome to the session that
// owns the authorization. Processing leaves the session unchanged. Terminal
// outcomes settle the session from whatever step it is on, including back on
// the shipping form, and Confirmed also overrides Failed.
func (s *Service) CompleteFromOutcome(ctx context.Context, handleID string, status domain.OrderStatus) (*domain.CheckoutSession, error) {
	sess, err := s.sessions.GetByAuthorization(ctx, handleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, s.unavailable("load session by authorization", err)
	}

	var to domain.CheckoutState
	switch status {
	case domain.OrderConfirmed:
		to = domain.StateConfirmed
	case domain.OrderFailed:
		to = domain.StateFailed
	default:
		return sess, nil
	}
	if !domain.CanSettle(sess.State, to) {
		// Already settled, either to the same status or to Confirmed.
		return sess, nil
	}
	from := sess.State
	sess.State = to
	sess.UpdatedAt = s.now()
	s.recordTransition(from, to)
	s.logger.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"from":       from,
		"to":         to,
	}).Info("checkout settled")
	if err := s.sessions.Update(ctx, *sess); err != nil {
		return nil, s.unavailable("save session", err)
	}
	return sess, nil
}

func (s *Service) transition(sess *domain.CheckoutSession, to domain.CheckoutState) error {
	from := sess.State
	if !domain.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}
	sess.State = to
	sess.UpdatedAt = s.now()
	s.recordTransition(from, to)
	s.logger.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"from":       from,
		"to":         to,
	}).Info("checkout transition")
	return nil
}

func (s *Service) recordTransition(from, to domain.CheckoutState) {
	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(string(from), string(to)).Inc()
	}
}

func (s *Service) owned(ctx context.Context, shopper domain.Shopper, sessionID string) (*domain.CheckoutSession, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, s.unavailable("load session", err)
	}
	if sess.ShopperKey != shopper.SessionKey() {
		return nil, domain.ErrNotFound
	}
	return sess, nil
}

// decorate fills the fields that are derived rather than stored.
func (s *Service) decorate(ctx context.Context, sess *domain.CheckoutSession) *domain.CheckoutSession {
	sess.Pending = s.isPending(sess.ID)
	if sess.State == domain.StateAwaitingPayment && sess.AuthorizationHandleID != "" {
		auth, err := s.auths.GetByHandle(ctx, sess.AuthorizationHandleID)
		if err != nil {
			s.logger.WithError(err).WithField("session_id", sess.ID).Warn("attached authorization unavailable")
		} else {
			sess.ClientSecret = auth.ClientSecret
		}
	}
	return sess
}

func (s *Service) markPending(sessionID string, delta int) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.pending[sessionID] += delta
	if s.pending[sessionID] <= 0 {
		delete(s.pending, sessionID)
	}
}

func (s *Service) isPending(sessionID string) bool {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return s.pending[sessionID] > 0
}

func (s *Service) unavailable(op string, err error) error {
	s.logger.WithError(err).WithField("op", op).Error("checkout storage failure")
	return fmt.Errorf("%w: %s", domain.ErrCheckoutUnavailable, op)
}
