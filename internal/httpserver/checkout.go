package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/gateway"
	ordersvc "storefront-checkout/internal/service/order"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func (h *handlers) issueGuest(c *gin.Context) {
	token, guest, err := h.deps.AnonymousSvc.Issue(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"token":       token,
		"tokenType":   "Bearer",
		"anonymousId": guest.AnonymousID,
		"expiresIn":   h.deps.AnonymousSvc.TTLSeconds(),
	})
}

type paymentIntentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// createPaymentIntent keeps the storefront's original contract: major-unit
// amount in, client secret out, one fixed message on any failure.
func (h *handlers) createPaymentIntent(c *gin.Context) {
	var req paymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": msgPaymentIntentErr})
		return
	}
	auth, err := h.deps.PaymentSvc.CreateIntent(c.Request.Context(), shopperFrom(c), req.Amount, c.GetHeader("Idempotency-Key"))
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, gateway.ErrInvalidAmount):
			status = http.StatusBadRequest
		case errors.Is(err, domain.ErrAuthorizationTimeout):
			status = http.StatusGatewayTimeout
		case errors.Is(err, domain.ErrAuthorizationCreateFailed):
			status = http.StatusBadGateway
		}
		h.logger.WithError(err).Warn("create payment intent")
		c.JSON(status, gin.H{"message": msgPaymentIntentErr})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clientSecret": auth.ClientSecret})
}

type totalsResponse struct {
	Subtotal      string `json:"subtotal"`
	Shipping      string `json:"shipping"`
	Tax           string `json:"tax"`
	Total         string `json:"total"`
	TotalMinor    int64  `json:"totalMinor"`
	CurrencyMinor int    `json:"currencyExponent"`
}

type checkoutResponse struct {
	ID           string               `json:"id"`
	State        domain.CheckoutState `json:"state"`
	Shipping     *domain.ShippingInfo `json:"shipping,omitempty"`
	ClientSecret string               `json:"clientSecret,omitempty"`
	Currency     string               `json:"currency"`
	Totals       *totalsResponse      `json:"totals,omitempty"`
	Pending      bool                 `json:"pending"`
}

func toCheckoutResponse(s *domain.CheckoutSession) checkoutResponse {
	resp := checkoutResponse{
		ID:           s.ID,
		State:        s.State,
		Shipping:     s.Shipping,
		ClientSecret: s.ClientSecret,
		Currency:     s.Currency,
		Pending:      s.Pending,
	}
	if s.Totals.TotalCents > 0 {
		resp.Totals = &totalsResponse{
			Subtotal:      formatMinor(s.Totals.SubtotalCents),
			Shipping:      formatMinor(s.Totals.ShippingCents),
			Tax:           formatMinor(s.Totals.TaxCents),
			Total:         formatMinor(s.Totals.TotalCents),
			TotalMinor:    s.Totals.TotalCents,
			CurrencyMinor: domain.MinorUnitExponent,
		}
	}
	return resp
}

func (h *handlers) respondSession(c *gin.Context, status int, sess *domain.CheckoutSession, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(status, toCheckoutResponse(sess))
}

func (h *handlers) beginCheckout(c *gin.Context) {
	sess, err := h.deps.CheckoutSvc.Begin(c.Request.Context(), shopperFrom(c))
	h.respondSession(c, http.StatusOK, sess, err)
}

func (h *handlers) getCheckout(c *gin.Context) {
	sess, err := h.deps.CheckoutSvc.Get(c.Request.Context(), shopperFrom(c), c.Param("sessionID"))
	h.respondSession(c, http.StatusOK, sess, err)
}

func (h *handlers) submitShipping(c *gin.Context) {
	var info domain.ShippingInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return
	}
	sess, err := h.deps.CheckoutSvc.SubmitShipping(c.Request.Context(), shopperFrom(c), c.Param("sessionID"), info)
	h.respondSession(c, http.StatusOK, sess, err)
}

func (h *handlers) returnToShipping(c *gin.Context) {
	sess, err := h.deps.CheckoutSvc.ReturnToShipping(c.Request.Context(), shopperFrom(c), c.Param("sessionID"))
	h.respondSession(c, http.StatusOK, sess, err)
}

func (h *handlers) markRedirected(c *gin.Context) {
	sess, err := h.deps.CheckoutSvc.MarkRedirected(c.Request.Context(), shopperFrom(c), c.Param("sessionID"))
	h.respondSession(c, http.StatusOK, sess, err)
}

type outcomeResponse struct {
	Status         domain.OrderStatus `json:"status"`
	OrderReference string             `json:"orderReference,omitempty"`
	Message        string             `json:"message"`
	Retryable      bool               `json:"retryable,omitempty"`
}

func toOutcomeResponse(o domain.OrderOutcome) (int, outcomeResponse) {
	switch o.Status {
	case domain.OrderConfirmed:
		return http.StatusOK, outcomeResponse{Status: o.Status, OrderReference: o.OrderReference, Message: "Thank you for your order!"}
	case domain.OrderFailed:
		return http.StatusOK, outcomeResponse{Status: o.Status, Message: msgPaymentDeclined, Retryable: true}
	default:
		return http.StatusAccepted, outcomeResponse{Status: o.Status, Message: "Your payment is processing."}
	}
}

// confirmOrder handles the return from the payment UI. Requests without the
// redirect parameters go back to the storefront root.
func (h *handlers) confirmOrder(c *gin.Context) {
	params := ordersvc.RedirectParams{
		HandleID:          strings.TrimSpace(c.Query("payment_intent")),
		ConfirmationToken: strings.TrimSpace(c.Query("payment_intent_client_secret")),
		StatusCode:        c.Query("redirect_status"),
	}
	if params.HandleID == "" || params.ConfirmationToken == "" {
		c.Redirect(http.StatusFound, "/")
		return
	}
	outcome, err := h.deps.OrderSvc.Resolve(c.Request.Context(), params)
	if errors.Is(err, domain.ErrRedirectHandleMissing) {
		c.Redirect(http.StatusFound, "/")
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(toOutcomeResponse(outcome))
}

func (h *handlers) refreshOrder(c *gin.Context) {
	outcome, err := h.deps.OrderSvc.Refresh(c.Request.Context(), shopperFrom(c), c.Param("handleID"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(toOutcomeResponse(outcome))
}
