package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every environment-driven setting the jobs and server need.
// Load it once in main after godotenv and pass it down; nothing else reads env.
type Config struct {
	DatabaseURL string

	// System A (GoFlow order/PO/inventory API)
	GoflowBaseURL      string
	GoflowAPIKey       string
	GoflowContactEmail string // sent as X-Beta-Contact on every request
	GoflowWarehouseID  string // warehouse whose on-hand counts the reports use
	GoflowStoreIDs     []string

	// System B (back-office bulk CSV export)
	MagentoExportURL string
	MagentoAPIKey    string

	// Job pacing
	ReportItemDelay time.Duration // pause between per-item inventory lookups
	POSyncCooldown  time.Duration
	ReportCooldown  time.Duration

	// HTTP surface
	ServerPort     string
	AllowedOrigins string
}

// Load builds a Config from the process environment, applying defaults
// for everything that has a sensible one.
func Load() Config {
	return Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		GoflowBaseURL:      strings.TrimRight(os.Getenv("GOFLOW_BASE_URL"), "/"),
		GoflowAPIKey:       os.Getenv("GOFLOW_API_KEY"),
		GoflowContactEmail: envOr("GOFLOW_CONTACT_EMAIL", "ops@warehouse.local"),
		GoflowWarehouseID:  os.Getenv("GOFLOW_WAREHOUSE_ID"),
		GoflowStoreIDs:     splitList(envOr("GOFLOW_STORE_IDS", "1002,1003")),
		MagentoExportURL:   os.Getenv("MAGENTO_EXPORT_URL"),
		MagentoAPIKey:      os.Getenv("MAGENTO_API_KEY"),
		ReportItemDelay:    envDuration("REPORT_ITEM_DELAY", 2*time.Second),
		POSyncCooldown:     envDuration("PO_SYNC_COOLDOWN", 2*time.Minute),
		ReportCooldown:     envDuration("REPORT_COOLDOWN", time.Hour),
		ServerPort:         envOr("SERVER_PORT", "8080"),
		AllowedOrigins:     os.Getenv("ALLOWED_ORIGINS"),
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// envDuration reads a Go duration string ("90s", "2m"); bare integers are
// taken as seconds for compatibility with older deployments.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
