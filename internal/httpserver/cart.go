package httpserver

import (
	"net/http"
	"strings"
	"time"

	"storefront-checkout/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// cartItemRequest accepts the storefront's item shape; the product id may
// arrive as productId or _id.
type cartItemRequest struct {
	ID            string          `json:"_id"`
	ProductID     string          `json:"productId"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
	SelectedSize  string          `json:"selectedSize"`
	SelectedColor string          `json:"selectedColor"`
}

func (r cartItemRequest) productID() string {
	if id := strings.TrimSpace(r.ProductID); id != "" {
		return id
	}
	return strings.TrimSpace(r.ID)
}

func (r cartItemRequest) line() domain.CartLine {
	return domain.CartLine{
		ProductID:      r.productID(),
		Name:           strings.TrimSpace(r.Name),
		UnitPriceCents: domain.ToMinorUnits(r.Price),
		Quantity:       r.Quantity,
		SelectedSize:   strings.TrimSpace(r.SelectedSize),
		SelectedColor:  strings.TrimSpace(r.SelectedColor),
	}
}

func (r cartItemRequest) key() domain.LineKey {
	return domain.LineKey{ProductID: r.productID(), Size: r.SelectedSize, Color: r.SelectedColor}.Normalize()
}

type cartItemResponse struct {
	ProductID     string `json:"productId"`
	Name          string `json:"name,omitempty"`
	Price         string `json:"price"`
	PriceCents    int64  `json:"priceCents"`
	Quantity      int    `json:"quantity"`
	SelectedSize  string `json:"selectedSize,omitempty"`
	SelectedColor string `json:"selectedColor,omitempty"`
}

type cartResponse struct {
	Items      []cartItemResponse `json:"items"`
	Total      string             `json:"total"`
	TotalCents int64              `json:"totalCents"`
	CartCount  int                `json:"cartCount"`
	UpdatedAt  *time.Time         `json:"updatedAt,omitempty"`
}

func formatMinor(minor int64) string {
	return domain.FromMinorUnits(minor).StringFixed(domain.MinorUnitExponent)
}

func toCartResponse(cart *domain.Cart) cartResponse {
	items := make([]cartItemResponse, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		items = append(items, cartItemResponse{
			ProductID:     l.ProductID,
			Name:          l.Name,
			Price:         formatMinor(l.UnitPriceCents),
			PriceCents:    l.UnitPriceCents,
			Quantity:      l.Quantity,
			SelectedSize:  l.SelectedSize,
			SelectedColor: l.SelectedColor,
		})
	}
	resp := cartResponse{
		Items:      items,
		Total:      formatMinor(cart.Total()),
		TotalCents: cart.Total(),
		CartCount:  cart.ItemCount(),
	}
	if !cart.UpdatedAt.IsZero() {
		updated := cart.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}

func (h *handlers) getCart(c *gin.Context) {
	cart, err := h.deps.CartSvc.Get(c.Request.Context(), shopperFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(cart))
}

func (h *handlers) addCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	cart, err := h.deps.CartSvc.Add(c.Request.Context(), shopperFrom(c), req.line())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(cart))
}

func (h *handlers) updateCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.productID() == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return
	}
	cart, err := h.deps.CartSvc.SetQuantity(c.Request.Context(), shopperFrom(c), req.key(), req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(cart))
}

func (h *handlers) removeCartItem(c *gin.Context) {
	req := cartItemRequest{
		ProductID:     c.Query("productId"),
		SelectedSize:  c.Query("selectedSize"),
		SelectedColor: c.Query("selectedColor"),
	}
	if req.productID() == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "productId is required"})
		return
	}
	cart, err := h.deps.CartSvc.Remove(c.Request.Context(), shopperFrom(c), req.key())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(cart))
}

func (h *handlers) clearCart(c *gin.Context) {
	if err := h.deps.CartSvc.Clear(c.Request.Context(), shopperFrom(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type validateRequest struct {
	Items []cartItemRequest `json:"items"`
}

// validateCart checks submitted items against the catalog. A missing, empty
// or malformed item list is reported as an empty cart.
func (h *handlers) validateCart(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"isValid": false, "message": "Cart is empty"})
		return
	}
	lines := make([]domain.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, item.line())
	}

	verdict, err := h.deps.ValidateSvc.Validate(c.Request.Context(), lines)
	if err != nil {
		h.logger.WithError(err).Error("validate cart")
		c.JSON(http.StatusInternalServerError, gin.H{"isValid": false, "message": msgGeneric})
		return
	}
	if !verdict.IsValid {
		c.JSON(http.StatusBadRequest, gin.H{
			"isValid":    false,
			"errors":     verdict.Messages(),
			"violations": verdict.Violations,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"isValid": true, "message": "Cart is valid"})
}
