package main

import (
	"log"

	"github.com/eduardohgo/pry-lapape/internals/config"
	"github.com/eduardohgo/pry-lapape/internals/initializers"
	"github.com/eduardohgo/pry-lapape/internals/routes"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Best effort: in production the variables come from the environment.
	_ = godotenv.Load()

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	db, err := initializers.ConnectDB(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.String("path", cfg.DBPath), zap.Error(err))
	}
	if err := initializers.Migrate(db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	rdb := initializers.ConnectRedis(cfg.RedisURL, logger)

	r := routes.SetupRouter(db, rdb, cfg, logger)

	logger.Info("listening", zap.String("addr", cfg.Addr))
	if err := r.Run(cfg.Addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
