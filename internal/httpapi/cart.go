package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-backend/internal/cart"
	"storefront-backend/internal/catalog"
	"storefront-backend/internal/scope"
)

type CartHandler struct {
	Catalog *catalog.Service
}

type addToCartRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

func summary(h *cart.Holder) gin.H {
	return gin.H{"items": h.Items(), "count": h.Count(), "total": h.Total()}
}

func (h *CartHandler) Get(c *gin.Context) {
	respondData(c, http.StatusOK, summary(scope.From(c).Cart))
}

func (h *CartHandler) Add(c *gin.Context) {
	var in addToCartRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	p, err := h.Catalog.Get(c.Request.Context(), in.ProductID)
	if errors.Is(err, catalog.ErrNotFound) {
		respondFail(c, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		respondError(c, "add to cart", "Failed to add to cart", err)
		return
	}
	if !p.IsActive {
		respondFail(c, http.StatusBadRequest, "Product is not available")
		return
	}

	holder := scope.From(c).Cart
	if _, err := holder.Add(c.Request.Context(), p, in.Quantity, in.Size, in.Color); err != nil {
		h.fail(c, "add to cart", err)
		return
	}
	respondData(c, http.StatusCreated, summary(holder))
}

func (h *CartHandler) SetQuantity(c *gin.Context) {
	var in struct {
		Quantity *int `json:"quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	holder := scope.From(c).Cart
	if err := holder.SetQuantity(c.Request.Context(), c.Param("itemId"), *in.Quantity); err != nil {
		h.fail(c, "update cart", err)
		return
	}
	respondData(c, http.StatusOK, summary(holder))
}

func (h *CartHandler) Remove(c *gin.Context) {
	holder := scope.From(c).Cart
	if err := holder.Remove(c.Request.Context(), c.Param("itemId")); err != nil {
		h.fail(c, "remove cart item", err)
		return
	}
	respondData(c, http.StatusOK, summary(holder))
}

func (h *CartHandler) Clear(c *gin.Context) {
	holder := scope.From(c).Cart
	if err := holder.Clear(c.Request.Context()); err != nil {
		h.fail(c, "clear cart", err)
		return
	}
	respondData(c, http.StatusOK, summary(holder))
}

func (h *CartHandler) Contains(c *gin.Context) {
	productID := c.Param("productId")
	respondData(c, http.StatusOK, gin.H{
		"productId": productID,
		"inCart":    scope.From(c).Cart.Contains(productID),
	})
}

func (h *CartHandler) fail(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity), errors.Is(err, cart.ErrQuantityLimit):
		respondFail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, cart.ErrItemNotFound):
		respondFail(c, http.StatusNotFound, "Cart item not found")
	default:
		respondError(c, op, "Failed to update cart", err)
	}
}
