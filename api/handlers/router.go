package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func SetupRouter(productHandler *ProductHandler, cartHandler *CartHandler, orderHandler *OrderHandler, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(logger))
	router.Use(gin.Recovery())

	api := router.Group("/api")
	{
		products := api.Group("/products")
		{
			products.GET("", productHandler.GetAllProducts)
			products.GET("/search", productHandler.SearchProducts)
			products.GET("/:id", productHandler.GetProductByID)
			products.PUT("/:id/stock", productHandler.UpdateStock)
		}

		cart := api.Group("/cart")
		{
			cart.GET("", cartHandler.GetCart)
			cart.DELETE("", cartHandler.ClearCart)
			cart.GET("/count", cartHandler.GetCount)
			cart.POST("/demo", cartHandler.SeedDemo)
			cart.POST("/items", cartHandler.AddToCart)
			cart.PUT("/items/:line_id", cartHandler.UpdateCartItem)
			cart.DELETE("/items/:line_id", cartHandler.RemoveItem)
			cart.POST("/items/:line_id/increment", cartHandler.IncrementItem)
			cart.POST("/items/:line_id/decrement", cartHandler.DecrementItem)
			cart.POST("/items/:line_id/wishlist", cartHandler.MoveToWishlist)
			cart.POST("/promo", cartHandler.ApplyPromo)
			cart.DELETE("/promo", cartHandler.RemovePromo)
		}
		api.GET("/wishlist", cartHandler.GetWishlist)

		orders := api.Group("/orders")
		{
			orders.POST("", orderHandler.CreateOrder)
			orders.GET("", orderHandler.ListOrders)
			orders.GET("/stats", orderHandler.GetStats)
			orders.GET("/:id", orderHandler.GetOrder)
		}

		api.GET("/health", productHandler.HealthCheck)
	}

	if gin.Mode() != gin.ReleaseMode {
		router.GET("/debug/metrics", productHandler.Metrics)
	}

	return router
}
