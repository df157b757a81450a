package routes

import (
	"github.com/gin-gonic/gin"

	"storefront/controllers"
	"storefront/middleware"
)

func RegisterRoutes(r *gin.Engine) {

	api := r.Group("/api")
	{
		api.POST("/register", controllers.Register)
		api.POST("/login", controllers.Login)
		api.POST("/logout", controllers.Logout)

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			protected.GET("/categories", controllers.GetCategories)
			protected.GET("/products", controllers.GetProducts)

			protected.GET("/cart", controllers.GetCart)
			protected.POST("/cart/lines", controllers.AddCartLine)
			protected.DELETE("/cart/lines/:productId", controllers.RemoveCartLine)
			protected.DELETE("/cart", controllers.ClearCart)
			protected.POST("/checkout", controllers.Checkout)

			protected.GET("/orders", controllers.GetOrders)

			protected.GET("/address", controllers.GetAddress)
			protected.PUT("/address", controllers.SaveAddress)

			manager := protected.Group("/manager")
			manager.Use(middleware.ManagerMiddleware())
			{
				manager.GET("/orders", controllers.GetOrdersManager)
				manager.GET("/orders/stream", controllers.StreamOrders)
				manager.PUT("/orders/:id/status", controllers.UpdateOrderStatus)

				manager.POST("/categories", controllers.CreateCategory)
				manager.POST("/products", controllers.CreateProduct)
				manager.PUT("/products/:id", controllers.UpdateProduct)
				manager.DELETE("/products/:id", controllers.DeleteProduct)
			}
		}
	}
}
