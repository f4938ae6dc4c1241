package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/gateway"
	paymentrepo "storefront-checkout/internal/repository/payment"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type CartReader interface {
	Get(ctx context.Context, shopper domain.Shopper) (*domain.Cart, error)
}

type Deps struct {
	Authorizations paymentrepo.Repository
	Carts          CartReader
	Gateway        gateway.Gateway
	Currency       string
	Timeout        time.Duration
	Logger         logrus.FieldLogger
}

// Service creates payment intents for clients that drive the payment step
// themselves, outside a checkout session.
type Service struct {
	auths    paymentrepo.Repository
	carts    CartReader
	gateway  gateway.Gateway
	currency string
	timeout  time.Duration
	logger   logrus.FieldLogger
	now      func() time.Time
}

func New(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		logger = l
	}
	if d.Timeout <= 0 {
		d.Timeout = 10 * time.Second
	}
	return &Service{
		auths:    d.Authorizations,
		carts:    d.Carts,
		gateway:  d.Gateway,
		currency: d.Currency,
		timeout:  d.Timeout,
		logger:   logger.WithField("component", "payment_intents"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateIntent authorizes amount (major units) for the shopper. requestKey
// is the client's idempotency key; when empty the key is derived from the
// shopper's cart and the amount, so a resubmitted form reuses the intent.
func (s *Service) CreateIntent(ctx context.Context, shopper domain.Shopper, amount decimal.Decimal, requestKey string) (*domain.PaymentAuthorization, error) {
	minor, err := gateway.MinorUnits(amount)
	if err != nil {
		return nil, err
	}

	key, err := s.idempotencyKey(ctx, shopper, strings.TrimSpace(requestKey), minor)
	if err != nil {
		return nil, err
	}
	log := s.logger.WithFields(logrus.Fields{"shopper": shopper.SessionKey(), "amount": minor})

	existing, err := s.auths.GetByIdempotencyKey(ctx, key)
	if err == nil {
		if existing.AmountMinor != minor {
			return nil, fmt.Errorf("%w: idempotency key reused with a different amount", domain.ErrAuthorizationCreateFailed)
		}
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load authorization: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	auth, err := s.gateway.CreateAuthorization(callCtx, gateway.AuthorizationRequest{
		AmountMinor:    minor,
		Currency:       s.currency,
		IdempotencyKey: key,
		Metadata:       map[string]string{"shopper": shopper.SessionKey()},
	})
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			log.WithError(err).Warn("payment intent timed out")
			return nil, domain.ErrAuthorizationTimeout
		}
		log.WithError(err).Warn("payment intent failed")
		return nil, domain.ErrAuthorizationCreateFailed
	}

	auth.IdempotencyKey = key
	auth.ShopperKey = shopper.SessionKey()
	if auth.CreatedAt.IsZero() {
		auth.CreatedAt = s.now()
	}
	if err := s.auths.Create(ctx, auth); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return s.auths.GetByIdempotencyKey(ctx, key)
		}
		return nil, fmt.Errorf("store authorization: %w", err)
	}
	log.WithField("handle_id", auth.HandleID).Info("payment intent created")
	return &auth, nil
}

func (s *Service) idempotencyKey(ctx context.Context, shopper domain.Shopper, requestKey string, minor int64) (string, error) {
	scope := "intent:" + shopper.SessionKey()
	if requestKey != "" {
		return scope + ":" + requestKey, nil
	}
	cart, err := s.carts.Get(ctx, shopper)
	if err != nil {
		return "", fmt.Errorf("load cart: %w", err)
	}
	return scope + ":" + cart.Fingerprint() + ":" + strconv.FormatInt(minor, 10), nil
}
