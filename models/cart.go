package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartLine is one product entry in a cart with an aggregated quantity.
// A cart never holds two lines for the same product, and a line whose
// quantity reaches zero is dropped rather than kept around.
type CartLine struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	UnitPrice Money              `bson:"unitPrice" json:"unitPrice"`
	Quantity  int                `bson:"quantity" json:"quantity"`
}

// Cart is the per-user cart document. The document id is the owning
// user's id, so each user has at most one cart.
type Cart struct {
	UserID    primitive.ObjectID `bson:"_id" json:"userId"`
	Lines     []CartLine         `bson:"lines" json:"lines"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
