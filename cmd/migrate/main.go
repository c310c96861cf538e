package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"inventory-ledger/internal/db"
	"inventory-ledger/internal/logger"
	"inventory-ledger/migrations"
)

func main() {
	_ = godotenv.Load()

	if err := logger.Init(os.Getenv("ENV") == "development"); err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	l := logger.L()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		l.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	applied, err := migrations.Apply(ctx, pool, l)
	if err != nil {
		l.Fatal("migration failed", zap.Strings("applied", applied), zap.Error(err))
	}
	if len(applied) == 0 {
		l.Info("schema up to date")
		return
	}
	l.Info("migrations applied", zap.Int("count", len(applied)))
}
