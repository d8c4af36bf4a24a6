package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"

	"artisan-market/internal/models"
	"artisan-market/internal/pricing"
	"artisan-market/internal/services"
	"artisan-market/internal/storage"
)

type CartHandler struct {
	cartService    *services.CartService
	productService *services.ProductService
	promos         pricing.PromoTable
}

func NewCartHandler(cartService *services.CartService, productService *services.ProductService, promos pricing.PromoTable) *CartHandler {
	return &CartHandler{
		cartService:    cartService,
		productService: productService,
		promos:         promos,
	}
}

type cartOp func(ctx context.Context, cart *services.CartStore) (gin.H, error)

// run applies fn to the caller's cart and writes the resulting cart view.
// A persistence failure after a successful mutation is reported as a
// warning next to the new state.
func (h *CartHandler) run(c *gin.Context, status int, fn cartOp) {
	ctx := c.Request.Context()
	var body gin.H
	err := h.cartService.WithCart(ctx, sessionID(c), func(cart *services.CartStore) error {
		b, err := fn(ctx, cart)
		if err != nil && !warnable(err) {
			return err
		}
		if b == nil {
			b = gin.H{}
		}
		b["data"] = services.ViewOf(cart)
		body = b
		return err
	})

	if err != nil && (body == nil || !warnable(err)) {
		writeError(c, err)
		return
	}
	if err != nil {
		body["warning"] = err.Error()
	}
	c.JSON(status, body)
}

// warnable reports whether err only means the new cart state was not saved.
// A failed wishlist write means nothing moved, so it is not a warning.
func warnable(err error) bool {
	var pe *services.PersistenceError
	return errors.As(err, &pe) && pe.Key != storage.KeyWishlist
}

// GET /api/cart
func (h *CartHandler) GetCart(c *gin.Context) {
	h.run(c, http.StatusOK, func(context.Context, *services.CartStore) (gin.H, error) {
		return nil, nil
	})
}

// GET /api/cart/count
// Reads the stored badge count; the cart itself is not loaded.
func (h *CartHandler) GetCount(c *gin.Context) {
	count, err := h.cartService.StoredCount(c.Request.Context(), sessionID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// DELETE /api/cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	h.run(c, http.StatusOK, func(ctx context.Context, cart *services.CartStore) (gin.H, error) {
		return gin.H{"message": "Cart cleared"}, cart.Clear(ctx)
	})
}

// POST /api/cart/demo
// Fills an empty cart with sample items.
func (h *CartHandler) SeedDemo(c *gin.Context) {
	h.run(c, http.StatusCreated, func(ctx context.Context, cart *services.CartStore) (gin.H, error) {
		return gin.H{"message": "Demo items added"}, cart.SeedDemo(ctx, h.productService.DemoItems())
	})
}

// POST /api/cart/items
func (h *CartHandler) AddToCart(c *gin.Context) {
	var req models.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	product, exists := h.productService.GetProductByID(models.ProductID(req.ProductID))
	if !exists {
		writeError(c, services.ErrProductNotFound)
		return
	}
	if !product.InStock {
		writeError(c, services.ErrOutOfStock)
		return
	}
	price, err := h.productService.PriceFor(product, req.Variant)
	if err != nil {
		writeError(c, err)
		return
	}

	quantity := int64(1)
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	variant := services.CanonicalVariant(product, req.Variant)

	h.run(c, http.StatusOK, func(ctx context.Context, cart *services.CartStore) (gin.H, error) {
		item, err := cart.AddItem(ctx, product.ID, price, quantity, variant, services.Details(product))
		return gin.H{"message": "Item added to cart", "item": item}, err
	})
}

// PUT /api/cart/items/:line_id
func (h *CartHandler) UpdateCartItem(c *gin.Context) {
	var req models.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	lineID := c.Param("line_id")
	h.run(c, http.StatusOK, func(ctx context.Context, cart *services.CartStore) (gin.H, error) {
		item, err := cart.UpdateQuantity(ctx, lineID, *req.Quantity)
		return gin.H{"message": "Cart updated", "item": item}, err
	})
}

// POST /api/cart/items/:line_id/increment
func (h *CartHandler) IncrementItem(c *gin.Context) {
	lineID := c.Param("line_id")
	h.run(c, http.StatusOK, func(ctx context.Context, cart *services.CartStore) (gin.H, error) {
		item, err := cart.IncrementQuantity(ctx, lineID)
		return gin.H{"item": item}, err
	})
}

// POST /api/cart/items/:line_id/decrement
func (h *CartHandler) DecrementItem(c *gin.Context) {
	lineID := c.Param("line_id")
	h.run(c, http.StatusOK, func(ctx context.Context, cart *services.CartStore) (gin.H, error) {
		item, err := cart.DecrementQuantity(ctx, lineID)
		return gin.H{"item": item}, err
	})
}

// DELETE /api/cart/items/:line_id
func (h *CartHandler) RemoveItem(c *gin.Context) {
	lineID := c.Param("line_id")
	h.run(c, http.StatusOK, func(ctx context.Context, cart *services.CartStore) (gin.H, error) {
		return gin.H{"message": "Item removed"}, cart.RemoveItem(ctx, lineID)
	})
}

// POST /api/cart/items/:line_id/wishlist
func (h *CartHandler) MoveToWishlist(c *gin.Context) {
	lineID := c.Param("line_id")
	h.run(c, http.StatusOK, func(ctx context.Context, cart *services.CartStore) (gin.H, error) {
		return gin.H{"message": "Moved to wishlist"}, cart.MoveToWishlist(ctx, lineID)
	})
}

// GET /api/wishlist
func (h *CartHandler) GetWishlist(c *gin.Context) {
	ctx := c.Request.Context()
	var items []models.LineItem
	err := h.cartService.WithCart(ctx, sessionID(c), func(cart *services.CartStore) error {
		var err error
		items, err = cart.Wishlist(ctx)
		return err
	})
	if err != nil && (items == nil || !warnable(err)) {
		writeError(c, err)
		return
	}
	body := gin.H{"data": items}
	if err != nil {
		body["warning"] = err.Error()
	}
	c.JSON(http.StatusOK, body)
}

// POST /api/cart/promo
// A blank code clears the active promo.
func (h *CartHandler) ApplyPromo(c *gin.Context) {
	var req models.ApplyPromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	h.run(c, http.StatusOK, func(ctx context.Context, cart *services.CartStore) (gin.H, error) {
		result, err := cart.ApplyPromoCode(ctx, req.Code, h.promos)
		return gin.H{"promo": result}, err
	})
}

// DELETE /api/cart/promo
func (h *CartHandler) RemovePromo(c *gin.Context) {
	h.run(c, http.StatusOK, func(ctx context.Context, cart *services.CartStore) (gin.H, error) {
		return gin.H{"message": "Promo removed"}, cart.RemovePromoCode(ctx)
	})
}
