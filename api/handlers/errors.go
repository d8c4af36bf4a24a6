package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"

	"artisan-market/internal/services"
)

type errorKind struct {
	target error
	status int
	code   string
}

var errorKinds = []errorKind{
	{services.ErrInvalidQuantity, http.StatusBadRequest, "INVALID_QUANTITY"},
	{services.ErrInvalidPrice, http.StatusBadRequest, "INVALID_PRICE"},
	{services.ErrInvalidItem, http.StatusBadRequest, "INVALID_ITEM"},
	{services.ErrVariantNotFound, http.StatusBadRequest, "VARIANT_NOT_FOUND"},
	{services.ErrInvalidPromoCode, http.StatusUnprocessableEntity, "INVALID_PROMO_CODE"},
	{services.ErrItemNotFound, http.StatusNotFound, "ITEM_NOT_FOUND"},
	{services.ErrProductNotFound, http.StatusNotFound, "PRODUCT_NOT_FOUND"},
	{services.ErrOrderNotFound, http.StatusNotFound, "ORDER_NOT_FOUND"},
	{services.ErrCartEmpty, http.StatusConflict, "CART_EMPTY"},
	{services.ErrCartNotEmpty, http.StatusConflict, "CART_NOT_EMPTY"},
	{services.ErrOutOfStock, http.StatusConflict, "OUT_OF_STOCK"},
	{services.ErrPersistence, http.StatusServiceUnavailable, "PERSISTENCE_ERROR"},
}

// writeError maps a service error onto a status code and JSON body.
func writeError(c *gin.Context, err error) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			c.JSON(k.status, gin.H{"error": err.Error(), "code": k.code})
			return
		}
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "INTERNAL"})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "BAD_REQUEST"})
}
