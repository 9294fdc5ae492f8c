package web

import (
	"net/http"
)

func (h *Handler) listDeliveries(w http.ResponseWriter, r *http.Request) {
	deliveries, err := h.deliveries.ListOpen(r.Context())
	if err != nil {
		apiError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"deliveries": deliveries})
}

func (h *Handler) setDeliveryAmounts(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VendorName   string `json:"vendor_name"`
		ETA          string `json:"eta"`
		PalletAmount string `json:"pallet_amount"`
		BoxAmount    string `json:"box_amount"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.VendorName == "" || body.ETA == "" {
		writeError(w, r, "vendor_name and eta are required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if err := h.deliveries.SetAmounts(r.Context(), body.VendorName, body.ETA, body.PalletAmount, body.BoxAmount); err != nil {
		apiError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"vendor_name": body.VendorName, "eta": body.ETA})
}

// completeDeliveries marks every named PO complete and closes any delivery
// group containing one of them.
func (h *Handler) completeDeliveries(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PONumbers []string `json:"po_numbers"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if len(body.PONumbers) == 0 {
		writeError(w, r, "po_numbers is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	completed, err := h.deliveries.MarkComplete(r.Context(), body.PONumbers)
	if err != nil {
		apiError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"completed": completed})
}
