// Command invsync refreshes the inventory snapshot from the warehouse
// counts report.
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

	rows, err := goflowClient.RunInventoryCountsReport(ctx)
	if err != nil {
		log.Fatalf("inventory counts report: %v", err)
	}
	if err := core.NewInventorySnapshotStore(pool).Replace(ctx, rows); err != nil {
		log.Fatalf("replace snapshot: %v", err)
	}
	log.WithField("rows", len(rows)).Info("inventory snapshot refreshed")
}
