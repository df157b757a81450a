package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/cartsync"
	"storefront/models"
)

func GetCart(c *gin.Context) {
	s := cartSession(c)
	if s == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Fetch success", "data": s.View()})
}

// AddCartLine adds one unit of the product the screen already has in
// hand. The mutation is optimistic: the response reflects local state
// and the remote write completes in the background.
func AddCartLine(c *gin.Context) {
	var body struct {
		ProductID string `json:"productId" binding:"required"`
		Name      string `json:"name" binding:"required"`
		UnitPrice string `json:"unitPrice" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	productID, err := primitive.ObjectIDFromHex(body.ProductID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid productId"})
		return
	}
	price, err := models.MoneyFromString(body.UnitPrice)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid unitPrice"})
		return
	}

	s := cartSession(c)
	if s == nil {
		return
	}
	s.AddLine(models.Product{ID: productID, Name: body.Name, Price: price})

	c.JSON(http.StatusOK, gin.H{"message": "Added to cart", "data": s.View()})
}

func RemoveCartLine(c *gin.Context) {
	productID, err := primitive.ObjectIDFromHex(c.Param("productId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid productId"})
		return
	}

	s := cartSession(c)
	if s == nil {
		return
	}
	s.RemoveLine(productID)

	c.JSON(http.StatusOK, gin.H{"message": "Removed from cart", "data": s.View()})
}

func ClearCart(c *gin.Context) {
	s := cartSession(c)
	if s == nil {
		return
	}
	if err := s.Clear(c.Request.Context()); err != nil {
		Log.Error().Err(err).Msg("cart clear failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cart"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}

func Checkout(c *gin.Context) {
	var body struct {
		Address       models.DeliveryAddress `json:"address" binding:"required"`
		ContactNumber string                 `json:"contactNumber" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	s := cartSession(c)
	if s == nil {
		return
	}

	orderID, err := s.PlaceOrder(c.Request.Context(), body.Address, body.ContactNumber)
	if err != nil {
		var verr *cartsync.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
		case errors.Is(err, cartsync.ErrAuthRequired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		default:
			Log.Error().Err(err).Msg("order placement failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to place order"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order placed",
		"orderId": orderID.Hex(),
	})
}
