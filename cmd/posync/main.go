// Command posync runs one purchase order sync pass: fetch both upstreams,
// merge, and store.
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
	"warehouse-ops/internal/magento"
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
		StoreIDs:     cfg.GoflowStoreIDs,
	}, log)
	magentoClient := magento.New(cfg.MagentoExportURL, cfg.MagentoAPIKey, log)

	pos := core.NewPOStore(pool)
	runner := core.NewJobRunner(goflowClient, magentoClient,
		core.NewMergeService(pos, log), nil,
		core.NewReportStore(pool), core.NewRunLogStore(pool),
		core.JobRunnerConfig{POSyncCooldown: 0}, log)

	stats, err := runner.RunPOSync(ctx)
	if err != nil {
		log.Fatalf("purchase order sync: %v", err)
	}
	log.WithFields(map[string]any{
		"upserted": stats.Upserted,
		"pruned":   stats.Pruned,
		"failed":   stats.Failed,
	}).Info("purchase order sync finished")
}
