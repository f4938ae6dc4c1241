package main

import (
	"context"

	"storefront-checkout/internal/config"
	"storefront-checkout/internal/db"
	"storefront-checkout/internal/logging"
	productrepo "storefront-checkout/internal/repository/product"
	"storefront-checkout/internal/seed"
)

func main() {
	cfg := config.FromEnv()
	logger := logging.New("seed", cfg.LogLevel)

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		logger.WithError(err).Fatal("connect db")
	}
	defer pool.Close()

	count, err := seed.Apply(ctx, productrepo.NewPostgres(pool, logger), logger)
	if err != nil {
		logger.WithError(err).Fatal("seed apply")
	}

	logger.WithField("products", count).Info("seed applied")
}
