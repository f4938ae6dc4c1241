package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/metrics"
	anonymoussvc "storefront-checkout/internal/service/anonymous"

	"github.com/gin-gonic/gin"
)

type ctxKey string

const (
	shopperCtxKey ctxKey = "shopper"

	// headerCustomerID is set by the upstream auth collaborator for signed-in
	// customers.
	headerCustomerID = "X-Customer-ID"
)

// shopperMiddleware resolves the caller to a guest (bearer token) or a
// signed-in customer and stores it in the request context.
func shopperMiddleware(anon AnonymousService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(headerCustomerID)); id != "" {
			setShopper(c, domain.CustomerShopper{ID: id})
			c.Next()
			return
		}

		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Missing shopper identity"})
			return
		}
		guest, err := anon.Lookup(c.Request.Context(), token)
		if errors.Is(err, anonymoussvc.ErrInvalidToken) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": msgGeneric})
			return
		}
		setShopper(c, guest)
		c.Next()
	}
}

func setShopper(c *gin.Context, shopper domain.Shopper) {
	ctx := context.WithValue(c.Request.Context(), shopperCtxKey, shopper)
	c.Request = c.Request.WithContext(ctx)
}

func shopperFrom(c *gin.Context) domain.Shopper {
	s, _ := c.Request.Context().Value(shopperCtxKey).(domain.Shopper)
	return s
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func metricsMiddleware(m *metrics.Checkout) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPLatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	}
}
