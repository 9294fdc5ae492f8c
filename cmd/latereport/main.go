// Command latereport runs one late orders report generation pass.
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
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
		WarehouseID:  cfg.GoflowWarehouseID,
		StoreIDs:     cfg.GoflowStoreIDs,
	}, log)

	pos := core.NewPOStore(pool)
	reports := core.NewReportStore(pool)
	reportSvc := core.NewReportService(goflowClient, goflowClient, pos, reports,
		core.ReportConfig{ItemDelay: cfg.ReportItemDelay}, log)
	runner := core.NewJobRunner(goflowClient, nil, nil, reportSvc, reports,
		core.NewRunLogStore(pool),
		core.JobRunnerConfig{ReportCooldown: cfg.ReportCooldown}, log)

	report, err := runner.RunLateOrderReport(ctx, time.Now())
	if err != nil {
		log.Fatalf("late orders report: %v", err)
	}
	if report == nil {
		return
	}
	log.WithFields(map[string]any{
		"items_due":   report.Summary.TotalItemsDue,
		"items_short": report.Summary.ItemsShort,
	}).Info("late orders report finished")
}
