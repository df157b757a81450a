package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/cartsync"
)

// Sync and Log are wired by cmd/main before the router starts serving.
var Sync *cartsync.Manager
var Log zerolog.Logger

func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	v, ok := c.Get("userId")
	if !ok {
		return primitive.NilObjectID, false
	}
	hex, ok := v.(string)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

// cartSession resolves the caller's cart synchronizer, or writes the
// error response and returns nil.
func cartSession(c *gin.Context) *cartsync.Synchronizer {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user"})
		return nil
	}
	s, err := Sync.Session(c.Request.Context(), userID)
	if err != nil {
		Log.Error().Err(err).Str("user", userID.Hex()).Msg("cart session failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cart"})
		return nil
	}
	return s
}
