package web

import (
	"net/http"
	"time"

	"warehouse-ops/internal/core"
)

func (h *Handler) refreshPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	stats, err := h.runner.RunPOSync(r.Context())
	if err != nil {
		apiError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{
		"upserted": stats.Upserted,
		"pruned":   stats.Pruned,
		"failed":   stats.Failed,
	})
}

// refreshLateOrdersReport starts a report run in the background and returns
// immediately; progress is visible on the status endpoint.
func (h *Handler) refreshLateOrdersReport(w http.ResponseWriter, r *http.Request) {
	if err := h.runner.StartLateOrderReport(r.Context(), time.Now()); err != nil {
		apiError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *Handler) lateOrdersReportStatus(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Running        bool   `json:"running"`
		LastReportDate string `json:"last_report_date,omitempty"`
	}
	resp := response{Running: h.runner.IsReportRunning()}
	if last, err := h.reports.LatestDate(r.Context()); err == nil && !last.IsZero() {
		resp.LastReportDate = last.UTC().Format(time.RFC3339)
	}
	writeJSON(w, resp)
}

func (h *Handler) getLateOrdersReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.Latest(r.Context())
	if err != nil {
		apiError(w, r, err)
		return
	}
	writeJSON(w, report)
}

// ordersDueBy aggregates open-order demand per item as of the current
// business day and enriches it from the inventory snapshot.
func (h *Handler) ordersDueBy(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderSrc.FetchOpenOrders(r.Context())
	if err != nil {
		apiError(w, r, err)
		return
	}
	cutoff := core.BusinessDayCutoff(time.Now(), h.loc)
	totals, err := core.DueByItemTotals(r.Context(), orders, cutoff, h.snapshot)
	if err != nil {
		apiError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{
		"cutoff": cutoff.Format(time.RFC3339),
		"items":  totals,
	})
}
