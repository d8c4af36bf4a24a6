package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"artisan-market/internal/models"
	"artisan-market/internal/services"
)

type OrderHandler struct {
	orderService *services.OrderService
}

func NewOrderHandler(orderService *services.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// POST /api/orders
// Checks out the caller's cart.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := h.orderService.Checkout(c.Request.Context(), sessionID(c), req)
	if order == nil {
		writeError(c, err)
		return
	}

	body := gin.H{"order": order}
	if err != nil {
		body["warning"] = err.Error()
	}
	c.JSON(http.StatusCreated, body)
}

// GET /api/orders
func (h *OrderHandler) ListOrders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"data": h.orderService.OrdersFor(sessionID(c)),
	})
}

// GET /api/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if order.SessionID != sessionID(c) {
		writeError(c, services.ErrOrderNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}

// GET /api/orders/stats
func (h *OrderHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stats": h.orderService.GetStats(),
	})
}
