package httpserver

import (
	"context"
	"errors"
	"time"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/metrics"
	ordersvc "storefront-checkout/internal/service/order"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type CartService interface {
	Get(ctx context.Context, shopper domain.Shopper) (*domain.Cart, error)
	Add(ctx context.Context, shopper domain.Shopper, line domain.CartLine) (*domain.Cart, error)
	SetQuantity(ctx context.Context, shopper domain.Shopper, key domain.LineKey, qty int) (*domain.Cart, error)
	Remove(ctx context.Context, shopper domain.Shopper, key domain.LineKey) (*domain.Cart, error)
	Clear(ctx context.Context, shopper domain.Shopper) error
	Ping(ctx context.Context) error
}

type ValidationService interface {
	Validate(ctx context.Context, lines []domain.CartLine) (domain.ValidationVerdict, error)
}

type PaymentService interface {
	CreateIntent(ctx context.Context, shopper domain.Shopper, amount decimal.Decimal, requestKey string) (*domain.PaymentAuthorization, error)
}

type CheckoutService interface {
	Begin(ctx context.Context, shopper domain.Shopper) (*domain.CheckoutSession, error)
	Get(ctx context.Context, shopper domain.Shopper, sessionID string) (*domain.CheckoutSession, error)
	SubmitShipping(ctx context.Context, shopper domain.Shopper, sessionID string, info domain.ShippingInfo) (*domain.CheckoutSession, error)
	ReturnToShipping(ctx context.Context, shopper domain.Shopper, sessionID string) (*domain.CheckoutSession, error)
	MarkRedirected(ctx context.Context, shopper domain.Shopper, sessionID string) (*domain.CheckoutSession, error)
}

type OrderService interface {
	Resolve(ctx context.Context, p ordersvc.RedirectParams) (domain.OrderOutcome, error)
	Refresh(ctx context.Context, shopper domain.Shopper, handleID string) (domain.OrderOutcome, error)
}

type AnonymousService interface {
	Issue(ctx context.Context) (string, domain.GuestShopper, error)
	Lookup(ctx context.Context, token string) (domain.GuestShopper, error)
	TTLSeconds() int
}

type Deps struct {
	DB           Pinger
	CartSvc      CartService
	ValidateSvc  ValidationService
	PaymentSvc   PaymentService
	CheckoutSvc  CheckoutService
	OrderSvc     OrderService
	AnonymousSvc AnonymousService
	Metrics      *metrics.Checkout
	CORSOrigins  []string
}

func (d Deps) validate() error {
	switch {
	case d.CartSvc == nil:
		return errors.New("cart service required")
	case d.ValidateSvc == nil:
		return errors.New("validation service required")
	case d.PaymentSvc == nil:
		return errors.New("payment service required")
	case d.CheckoutSvc == nil:
		return errors.New("checkout service required")
	case d.OrderSvc == nil:
		return errors.New("order service required")
	case d.AnonymousSvc == nil:
		return errors.New("anonymous service required")
	}
	return nil
}

// buildRouter wires routes for the API.
func buildRouter(logger *logrus.Logger, deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", headerCustomerID},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if deps.Metrics != nil {
		router.Use(metricsMiddleware(deps.Metrics))
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.DB, deps.CartSvc))

	h := &handlers{deps: deps, logger: logger.WithField("component", "http")}

	api := router.Group("/api")
	api.POST("/guest", h.issueGuest)
	api.POST("/cart/validate", h.validateCart)
	api.GET("/orders/confirmation", h.confirmOrder)

	shopper := api.Group("", shopperMiddleware(deps.AnonymousSvc))
	shopper.GET("/cart", h.getCart)
	shopper.DELETE("/cart", h.clearCart)
	shopper.POST("/cart/items", h.addCartItem)
	shopper.PATCH("/cart/items", h.updateCartItem)
	shopper.DELETE("/cart/items", h.removeCartItem)

	shopper.POST("/payments/create-payment-intent", h.createPaymentIntent)

	shopper.POST("/checkout", h.beginCheckout)
	shopper.GET("/checkout/:sessionID", h.getCheckout)
	shopper.POST("/checkout/:sessionID/shipping", h.submitShipping)
	shopper.POST("/checkout/:sessionID/back", h.returnToShipping)
	shopper.POST("/checkout/:sessionID/redirected", h.markRedirected)

	shopper.POST("/orders/:handleID/refresh", h.refreshOrder)

	return router, nil
}

type handlers struct {
	deps   Deps
	logger logrus.FieldLogger
}
