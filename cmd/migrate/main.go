// Command migrate applies the embedded schema migrations and exits.
package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ordering/internal/config"
	"github.com/iliyamo/canteen-ordering/internal/database"
	"github.com/iliyamo/canteen-ordering/internal/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("connect mysql", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := database.Migrate(ctx, db, log); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
}
