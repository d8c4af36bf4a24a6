package handlers

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"artisan-market/internal/models"
	"artisan-market/internal/services"
)

// CounterSource reports the current value of every monotonic counter.
type CounterSource interface {
	Counters(ctx context.Context) (map[string]int64, error)
}

type ProductHandler struct {
	productService *services.ProductService
	cartService    *services.CartService
	counters       CounterSource
}

// NewProductHandler wires the catalogue routes. counters may be nil, in
// which case /debug/metrics omits them.
func NewProductHandler(productService *services.ProductService, cartService *services.CartService, counters CounterSource) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		cartService:    cartService,
		counters:       counters,
	}
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func pageMeta(page, limit, total int) gin.H {
	totalPages := (total + limit - 1) / limit
	return gin.H{
		"page":        page,
		"limit":       limit,
		"total":       total,
		"total_pages": totalPages,
		"has_next":    page < totalPages,
		"has_prev":    page > 1,
	}
}

// GET /api/products
func (h *ProductHandler) GetAllProducts(c *gin.Context) {
	page, limit := pageParams(c)
	products, total := h.productService.GetAllProducts(page, limit)

	c.JSON(http.StatusOK, gin.H{
		"data": products,
		"meta": pageMeta(page, limit, total),
	})
}

// GET /api/products/:id
func (h *ProductHandler) GetProductByID(c *gin.Context) {
	product, exists := h.productService.GetProductByID(models.ProductID(c.Param("id")))
	if !exists {
		writeError(c, services.ErrProductNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": product,
	})
}

// GET /api/products/search
func (h *ProductHandler) SearchProducts(c *gin.Context) {
	query := c.Query("q")
	category := c.Query("category")
	minPrice, _ := strconv.ParseInt(c.Query("min_price"), 10, 64)
	maxPrice, _ := strconv.ParseInt(c.Query("max_price"), 10, 64)
	page, limit := pageParams(c)

	products, total := h.productService.SearchProducts(
		query, category, minPrice, maxPrice, page, limit,
	)

	meta := pageMeta(page, limit, total)
	meta["query"] = query
	meta["category"] = category
	c.JSON(http.StatusOK, gin.H{
		"data": products,
		"meta": meta,
	})
}

// PUT /api/products/:id/stock
func (h *ProductHandler) UpdateStock(c *gin.Context) {
	var req struct {
		Stock *int64 `json:"stock" binding:"required,gte=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	product, err := h.productService.SetStock(models.ProductID(c.Param("id")), *req.Stock)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Stock updated",
		"data":    product,
	})
}

// GET /api/health
func (h *ProductHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

// GET /debug/metrics
func (h *ProductHandler) Metrics(c *gin.Context) {
	body := gin.H{
		"goroutines":    runtime.NumGoroutine(),
		"cart_sessions": h.cartService.Sessions(),
		"timestamp":     time.Now().Unix(),
	}
	if h.counters != nil {
		counters, err := h.counters.Counters(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		body["counters"] = counters
	}
	c.JSON(http.StatusOK, body)
}
