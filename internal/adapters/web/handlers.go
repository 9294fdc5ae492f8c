package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"warehouse-ops/internal/core"
)

// Handler holds the stores and services the HTTP surface exposes.
type Handler struct {
	pos        core.POStore
	deliveries core.DeliveryService
	reports    core.ReportStore
	orders     core.OrderStore
	snapshot   core.InventorySnapshotStore
	orderSrc   core.OrderFetcher
	runner     *core.JobRunner
	loc        *time.Location
	log        *logrus.Logger
}

// Deps bundles everything NewHandler needs.
type Deps struct {
	POs            core.POStore
	Deliveries     core.DeliveryService
	Reports        core.ReportStore
	Orders         core.OrderStore
	Snapshot       core.InventorySnapshotStore
	OrderFetcher   core.OrderFetcher
	Runner         *core.JobRunner
	Timezone       *time.Location // business day boundary, defaults to America/New_York
	AllowedOrigins string
	Log            *logrus.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(d Deps) http.Handler {
	loc := d.Timezone
	if loc == nil {
		var err error
		loc, err = time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.UTC
		}
	}
	h := &Handler{
		pos:        d.POs,
		deliveries: d.Deliveries,
		reports:    d.Reports,
		orders:     d.Orders,
		snapshot:   d.Snapshot,
		orderSrc:   d.OrderFetcher,
		runner:     d.Runner,
		loc:        loc,
		log:        d.Log,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(d.Log))
	r.Use(Recoverer(d.Log))
	r.Use(CORS(d.AllowedOrigins))
	r.Use(RequestBodyLimit(1 << 20)) // 1 MB

	r.Get("/api/health", h.health)

	// Job triggers
	r.Post("/api/refresh-purchase-orders", h.refreshPurchaseOrders)
	r.Post("/api/refresh-late-orders-report", h.refreshLateOrdersReport)
	r.Get("/api/late-orders-report/status", h.lateOrdersReportStatus)

	// Purchase orders
	r.Get("/api/purchase-orders", h.listPurchaseOrders)
	r.Post("/api/purchase-orders/{poNumber}/eta", h.setETA)
	r.Delete("/api/purchase-orders/{poNumber}/eta", h.clearETA)
	r.Post("/api/purchase-orders/{poNumber}/status", h.setStatus)
	r.Delete("/api/purchase-orders/{poNumber}", h.deletePurchaseOrder)

	// Deliveries
	r.Get("/api/deliveries", h.listDeliveries)
	r.Post("/api/delivery-amounts", h.setDeliveryAmounts)
	r.Post("/api/deliveries/complete", h.completeDeliveries)

	// Reports and orders
	r.Get("/api/late-orders-report", h.getLateOrdersReport)
	r.Get("/api/orders", h.listOrders)
	r.Post("/api/orders-due-by", h.ordersDueBy)

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
		Time   string `json:"time"`
	}
	writeJSON(w, response{Status: "ok", Time: time.Now().UTC().Format(time.RFC3339)})
}

// decodeJSON decodes the request body into v, writing the error response
// itself on failure. Returns 413 when the body exceeds the middleware cap,
// 400 for everything else.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
