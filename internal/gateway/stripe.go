package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-checkout/internal/domain"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Stripe creates PaymentIntents with automatic payment methods.
type Stripe struct {
	api    *client.API
	logger logrus.FieldLogger
}

func NewStripe(secretKey string, logger logrus.FieldLogger) *Stripe {
	return &Stripe{
		api:    client.New(secretKey, nil),
		logger: logger.WithField("component", "stripe_gateway"),
	}
}

func (s *Stripe) CreateAuthorization(ctx context.Context, req AuthorizationRequest) (domain.PaymentAuthorization, error) {
	if err := req.validate(); err != nil {
		return domain.PaymentAuthorization{}, fmt.Errorf("%w: %v", domain.ErrAuthorizationCreateFailed, err)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.PaymentAuthorization{}, ctxErr
		}
		s.logError("create payment intent", err)
		return domain.PaymentAuthorization{}, fmt.Errorf("%w: %s", domain.ErrAuthorizationCreateFailed, errorCode(err))
	}

	return domain.PaymentAuthorization{
		HandleID:       pi.ID,
		ClientSecret:   pi.ClientSecret,
		AmountMinor:    pi.Amount,
		Currency:       string(pi.Currency),
		Status:         mapStripeStatus(pi.Status, pi.LastPaymentError != nil),
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      time.Unix(pi.Created, 0).UTC(),
	}, nil
}

func (s *Stripe) GetStatus(ctx context.Context, handleID string) (domain.AuthorizationStatus, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := s.api.PaymentIntents.Get(handleID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return "", domain.ErrNotFound
		}
		s.logError("get payment intent", err)
		return "", fmt.Errorf("get payment intent: %s", errorCode(err))
	}
	return mapStripeStatus(pi.Status, pi.LastPaymentError != nil), nil
}

// mapStripeStatus folds PaymentIntent statuses into the local set. An intent
// back in requires_payment_method after an attempt has failed.
func mapStripeStatus(status stripe.PaymentIntentStatus, attemptFailed bool) domain.AuthorizationStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return domain.AuthorizationSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return domain.AuthorizationFailed
	case stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresCapture:
		return domain.AuthorizationPending
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if attemptFailed {
			return domain.AuthorizationFailed
		}
		return domain.AuthorizationCreated
	default:
		return domain.AuthorizationCreated
	}
}

// errorCode keeps only the processor's error type and code so raw payloads
// never reach callers.
func errorCode(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Code != "" {
			return string(stripeErr.Type) + "/" + string(stripeErr.Code)
		}
		return string(stripeErr.Type)
	}
	return "transport_error"
}

func (s *Stripe) logError(op string, err error) {
	fields := logrus.Fields{"op": op}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		fields["request_id"] = stripeErr.RequestID
		fields["http_status"] = stripeErr.HTTPStatusCode
		fields["code"] = stripeErr.Code
	}
	s.logger.WithFields(fields).WithError(err).Error("stripe call failed")
}
