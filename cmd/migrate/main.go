package main

import (
	"context"
	"log"
	"os"
	"time"

	"sale-service/config"
	"sale-service/internal/store/postgres"
	"sale-service/internal/util"

	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate [up|down]")
	}

	cfg := config.Load()
	if err := util.InitLogger(cfg.Server.Env, cfg.Observ.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	db, err := postgres.NewStore(cfg.Database, postgres.DefaultTxOptions())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := postgres.Migrate(ctx, db.GetDB(), os.Args[1])
	if err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}

	logger.Info("Migrations applied", zap.Int("count", n), zap.String("direction", os.Args[1]))
}
