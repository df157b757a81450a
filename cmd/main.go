package main

import (
	"github.com/gin-gonic/gin"

	"storefront/cartsync"
	"storefront/config"
	"storefront/controllers"
	"storefront/database"
	"storefront/logger"
	"storefront/routes"
)

func main() {

	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("storefront", "info", "json")
		boot.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.New("storefront", cfg.LogLevel, cfg.LogFormat)

	if err := database.Connect(cfg.MongoURI, cfg.DBName); err != nil {
		log.Fatal().Err(err).Msg("mongo connect failed")
	}
	database.InitCollections()

	store := cartsync.NewMongoStore(database.CartCollection, database.OrderCollection, log)
	sync := cartsync.NewManager(store, store, log)
	defer sync.Shutdown()

	controllers.Sync = sync
	controllers.Log = log

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.SetTrustedProxies(nil)
	routes.RegisterRoutes(r)

	log.Info().Str("port", cfg.Port).Msg("listening")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
