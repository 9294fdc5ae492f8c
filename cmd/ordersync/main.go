// Command ordersync mirrors newly shipped orders since the last watermark.
package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"

	"warehouse-ops/internal/config"
	"warehouse-ops/internal/core"
	"warehouse-ops/internal/db"
	"warehouse-ops/internal/goflow"
	"warehouse-ops/internal/logging"
)

func main() {
	_ = godotenv.Load()
	log := logging.New()
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	goflowClient := goflow.New(goflow.Options{
		BaseURL:      cfg.GoflowBaseURL,
		APIKey:       cfg.GoflowAPIKey,
		ContactEmail: cfg.GoflowContactEmail,
	}, log)

	svc := core.NewOrderSyncService(goflowClient,
		core.NewOrderStore(pool), core.NewSyncStateStore(pool),
		core.NewRunLogStore(pool), log)
	stored, err := svc.Run(ctx)
	if err != nil {
		log.Fatalf("order sync: %v", err)
	}
	log.WithField("stored", stored).Info("order sync finished")
}
