package controllers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/database"
	"storefront/models"
)

func GetOrdersManager(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := database.OrderCollection.Find(ctx, bson.M{}, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var orders []models.Order = []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Fetch success", "count": len(orders), "data": orders})
}

func UpdateOrderStatus(c *gin.Context) {
	objID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if !models.ValidOrderStatus(body.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status value"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var existing models.Order
	if err := database.OrderCollection.FindOne(ctx, bson.M{"_id": objID}).Decode(&existing); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	validTransitions := map[string][]string{
		models.OrderStatusPending:  {models.OrderStatusAccepted, models.OrderStatusCancelled},
		models.OrderStatusAccepted: {models.OrderStatusDelivered, models.OrderStatusCancelled},
	}

	allowed := false
	for _, next := range validTransitions[existing.Status] {
		if body.Status == next {
			allowed = true
			break
		}
	}
	if !allowed {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Cannot change status from %s to %s", existing.Status, body.Status),
		})
		return
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Order
	err = database.OrderCollection.FindOneAndUpdate(ctx, bson.M{"_id": objID},
		bson.M{"$set": bson.M{"status": body.Status}}, opts).Decode(&updated)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order status updated", "data": updated})
}

// StreamOrders pushes newly placed orders to the store-manager screen as
// server-sent events, backed by a change stream on the order ledger.
func StreamOrders(c *gin.Context) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"operationType": "insert"}}},
	}
	stream, err := database.OrderCollection.Watch(c.Request.Context(), pipeline)
	if err != nil {
		Log.Error().Err(err).Msg("order watch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open order feed"})
		return
	}
	defer stream.Close(context.Background())

	events := make(chan models.Order)
	go func() {
		defer close(events)
		for stream.Next(c.Request.Context()) {
			var event struct {
				FullDocument models.Order `bson:"fullDocument"`
			}
			if err := stream.Decode(&event); err != nil {
				Log.Error().Err(err).Msg("order event decode failed")
				continue
			}
			select {
			case events <- event.FullDocument:
			case <-c.Request.Context().Done():
				return
			}
		}
	}()

	c.Stream(func(w io.Writer) bool {
		order, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent("order", order)
		return true
	})
}
