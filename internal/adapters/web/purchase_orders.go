package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"warehouse-ops/internal/core"
)

func (h *Handler) listPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.POFilter{
		Status:       core.POStatus(q.Get("status")),
		Vendor:       q.Get("vendor"),
		IncludeLines: q.Get("include_lines") == "true",
		All:          q.Get("all") == "true",
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}

	pos, total, err := h.pos.ListOpen(r.Context(), filter)
	if err != nil {
		apiError(w, r, err)
		return
	}
	type response struct {
		PurchaseOrders []core.PurchaseOrder `json:"purchase_orders"`
		Total          int                  `json:"total"`
	}
	writeJSON(w, response{PurchaseOrders: pos, Total: total})
}

// setETA records the operator expected-arrival date and folds the PO into
// the matching delivery group.
func (h *Handler) setETA(w http.ResponseWriter, r *http.Request) {
	poNumber := chi.URLParam(r, "poNumber")
	var body struct {
		ETA string `json:"eta"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.ETA == "" {
		writeError(w, r, "eta is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	po, err := h.pos.GetByNumber(r.Context(), poNumber)
	if err != nil {
		apiError(w, r, err)
		return
	}

	// Moving an ETA pulls the PO out of its old group first.
	if po.ETA != nil && *po.ETA != body.ETA {
		if err := h.deliveries.OnETACleared(r.Context(), po.VendorName, *po.ETA, poNumber); err != nil {
			apiError(w, r, err)
			return
		}
	}
	if err := h.pos.UpdateETA(r.Context(), poNumber, &body.ETA); err != nil {
		apiError(w, r, err)
		return
	}
	if err := h.deliveries.OnETASet(r.Context(), po.VendorName, body.ETA, poNumber); err != nil {
		apiError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"po_number": poNumber, "eta": body.ETA})
}

func (h *Handler) clearETA(w http.ResponseWriter, r *http.Request) {
	poNumber := chi.URLParam(r, "poNumber")
	po, err := h.pos.GetByNumber(r.Context(), poNumber)
	if err != nil {
		apiError(w, r, err)
		return
	}
	if po.ETA == nil {
		writeJSON(w, map[string]string{"po_number": poNumber})
		return
	}
	oldETA := *po.ETA
	if err := h.pos.UpdateETA(r.Context(), poNumber, nil); err != nil {
		apiError(w, r, err)
		return
	}
	if err := h.deliveries.OnETACleared(r.Context(), po.VendorName, oldETA, poNumber); err != nil {
		apiError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"po_number": poNumber})
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	poNumber := chi.URLParam(r, "poNumber")
	var body struct {
		Status      string `json:"status"`
		RefreshOnly bool   `json:"refresh_only"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	status := core.POStatus(body.Status)
	if !body.RefreshOnly {
		switch status {
		case core.POStatusOpen, core.POStatusAwaitingSupplier, core.POStatusPaid, core.POStatusComplete:
		default:
			writeError(w, r, "unknown status: "+body.Status, "BAD_REQUEST", http.StatusBadRequest)
			return
		}
	}
	if err := h.pos.UpdateStatus(r.Context(), poNumber, status, body.RefreshOnly); err != nil {
		apiError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"po_number": poNumber, "status": body.Status, "refresh_only": body.RefreshOnly})
}

func (h *Handler) deletePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	poNumber := chi.URLParam(r, "poNumber")
	deleted, err := h.pos.DeleteByNumbers(r.Context(), []string{poNumber})
	if err != nil {
		apiError(w, r, err)
		return
	}
	if deleted == 0 {
		apiError(w, r, &core.NotFoundError{Entity: "purchase order", Key: poNumber})
		return
	}
	writeJSON(w, map[string]any{"deleted": deleted})
}
