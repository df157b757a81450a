package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var Client *mongo.Client
var DB *mongo.Database

func Connect(uri, dbName string) error {
	if uri == "" || dbName == "" {
		return fmt.Errorf("mongo uri or database name not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("pinging mongo: %w", err)
	}

	Client = client
	DB = client.Database(dbName)
	return nil
}

var UserCollection *mongo.Collection
var ProductCollection *mongo.Collection
var CategoryCollection *mongo.Collection
var CartCollection *mongo.Collection
var OrderCollection *mongo.Collection
var BlacklistCollection *mongo.Collection

func InitCollections() {
	UserCollection = DB.Collection("users")
	ProductCollection = DB.Collection("products")
	CategoryCollection = DB.Collection("categories")
	CartCollection = DB.Collection("carts")
	OrderCollection = DB.Collection("orders")
	BlacklistCollection = DB.Collection("blacklist_tokens")
}
