package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	webAdapter "warehouse-ops/internal/adapters/web"
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

	ctx := context.Background()
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
	magentoClient := magento.New(cfg.MagentoExportURL, cfg.MagentoAPIKey, log)

	pos := core.NewPOStore(pool)
	deliveries := core.NewDeliveryService(pool, pos)
	reports := core.NewReportStore(pool)
	orders := core.NewOrderStore(pool)
	snapshot := core.NewInventorySnapshotStore(pool)
	runLog := core.NewRunLogStore(pool)

	reportSvc := core.NewReportService(goflowClient, goflowClient, pos, reports,
		core.ReportConfig{ItemDelay: cfg.ReportItemDelay}, log)
	merge := core.NewMergeService(pos, log)
	runner := core.NewJobRunner(goflowClient, magentoClient, merge, reportSvc, reports, runLog,
		core.JobRunnerConfig{
			POSyncCooldown: cfg.POSyncCooldown,
			ReportCooldown: cfg.ReportCooldown,
		}, log)

	handler := webAdapter.NewHandler(webAdapter.Deps{
		POs:            pos,
		Deliveries:     deliveries,
		Reports:        reports,
		Orders:         orders,
		Snapshot:       snapshot,
		OrderFetcher:   goflowClient,
		Runner:         runner,
		AllowedOrigins: cfg.AllowedOrigins,
		Log:            log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.WithField("port", cfg.ServerPort).Info("server starting")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("server: %v", err)
	}
}
