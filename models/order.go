package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusAccepted  = "accepted"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Order is immutable once written except for status transitions made by
// a store manager. Lines are a snapshot of the cart at placement time.
type Order struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID `bson:"userId" json:"userId"`
	Lines         []CartLine         `bson:"lines" json:"lines"`
	Total         Money              `bson:"total" json:"total"`
	Address       DeliveryAddress    `bson:"address" json:"address"`
	ContactNumber string             `bson:"contactNumber" json:"contactNumber"`
	Status        string             `bson:"status" json:"status"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}

func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusAccepted, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}
