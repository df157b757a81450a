package cartsync

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/models"
)

// CartStore persists per-user cart documents. The cart document is the
// shared system of record; whole-document writes are last-write-wins.
type CartStore interface {
	// ReadCart returns the stored lines for the user, or (nil, nil) when
	// no cart document exists yet.
	ReadCart(ctx context.Context, userID primitive.ObjectID) ([]models.CartLine, error)

	// WriteCart replaces the user's cart document with the given lines.
	WriteCart(ctx context.Context, userID primitive.ObjectID, lines []models.CartLine) error

	// WatchCart subscribes to remote changes of the user's cart document
	// and invokes push with each authoritative snapshot. The returned
	// function stops the subscription.
	WatchCart(ctx context.Context, userID primitive.ObjectID, push func([]models.CartLine)) (func(), error)
}

// OrderLedger appends immutable order records.
type OrderLedger interface {
	InsertOrder(ctx context.Context, order models.Order) (primitive.ObjectID, error)
}
