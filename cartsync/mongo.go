package cartsync

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/models"
)

// MongoStore keeps carts as one document per user (the document id is
// the user id) and orders as an append-only collection. It implements
// both CartStore and OrderLedger.
type MongoStore struct {
	carts  *mongo.Collection
	orders *mongo.Collection
	log    zerolog.Logger
}

func NewMongoStore(carts, orders *mongo.Collection, log zerolog.Logger) *MongoStore {
	return &MongoStore{carts: carts, orders: orders, log: log}
}

func (s *MongoStore) ReadCart(ctx context.Context, userID primitive.ObjectID) ([]models.CartLine, error) {
	var cart models.Cart
	err := s.carts.FindOne(ctx, bson.M{"_id": userID}).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cart.Lines, nil
}

func (s *MongoStore) WriteCart(ctx context.Context, userID primitive.ObjectID, lines []models.CartLine) error {
	if lines == nil {
		lines = []models.CartLine{}
	}
	doc := models.Cart{UserID: userID, Lines: lines, UpdatedAt: time.Now().UTC()}
	_, err := s.carts.ReplaceOne(ctx, bson.M{"_id": userID}, doc, options.Replace().SetUpsert(true))
	return err
}

// WatchCart opens a change stream scoped to the user's cart document and
// pumps full-document snapshots into push until stopped.
func (s *MongoStore) WatchCart(ctx context.Context, userID primitive.ObjectID, push func([]models.CartLine)) (func(), error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"documentKey._id": userID}}},
	}
	stream, err := s.carts.Watch(ctx, pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, err
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	go func() {
		defer stream.Close(context.Background())
		for stream.Next(pumpCtx) {
			var event struct {
				OperationType string      `bson:"operationType"`
				FullDocument  models.Cart `bson:"fullDocument"`
			}
			if err := stream.Decode(&event); err != nil {
				s.log.Error().Err(err).Str("user", userID.Hex()).Msg("cart change decode failed")
				continue
			}
			if event.OperationType == "delete" {
				push(nil)
				continue
			}
			push(event.FullDocument.Lines)
		}
		if err := stream.Err(); err != nil && pumpCtx.Err() == nil {
			s.log.Error().Err(err).Str("user", userID.Hex()).Msg("cart watch ended")
		}
	}()
	return cancel, nil
}

func (s *MongoStore) InsertOrder(ctx context.Context, order models.Order) (primitive.ObjectID, error) {
	res, err := s.orders.InsertOne(ctx, order)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		return id, nil
	}
	return order.ID, nil
}
