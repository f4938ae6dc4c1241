package httpserver

import (
	"errors"
	"net/http"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/gateway"
	checkoutsvc "storefront-checkout/internal/service/checkout"

	"github.com/gin-gonic/gin"
)

const (
	msgGeneric          = "Something went wrong. Please try again."
	msgNotFound         = "Not found"
	msgPaymentSetup     = "We could not set up your payment. Please try again."
	msgPaymentTimeout   = "The payment service took too long to respond. Please try again."
	msgPaymentDeclined  = "Your payment was declined. Please re-enter your payment details."
	msgPaymentUnknown   = "We could not confirm this payment."
	msgPaymentIntentErr = "Error creating payment intent"
	msgStepUnavailable  = "This checkout step is not available right now."
)

// writeError maps service errors to a status and a message safe to show the
// shopper. Gateway payloads and internal ids are never echoed.
func (h *handlers) writeError(c *gin.Context, err error) {
	var (
		cartErr     *checkoutsvc.CartInvalidError
		shippingErr *checkoutsvc.ShippingInvalidError
	)
	switch {
	case errors.As(err, &cartErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"message":    "Cart is invalid",
			"isValid":    false,
			"errors":     cartErr.Verdict.Messages(),
			"violations": cartErr.Verdict.Violations,
		})
	case errors.As(err, &shippingErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "Missing shipping information",
			"fields":  shippingErr.Fields,
		})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": msgNotFound})
	case errors.Is(err, domain.ErrInvalidLine), errors.Is(err, gateway.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"message": msgStepUnavailable})
	case errors.Is(err, domain.ErrAuthorizationTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"message": msgPaymentTimeout, "retryable": true})
	case errors.Is(err, domain.ErrAuthorizationCreateFailed):
		c.JSON(http.StatusBadGateway, gin.H{"message": msgPaymentSetup, "retryable": true})
	case errors.Is(err, domain.ErrRedirectHandleUnknown):
		c.JSON(http.StatusBadRequest, gin.H{"message": msgPaymentUnknown})
	default:
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgGeneric})
	}
}
