package web

import (
	"net/http"
	"strconv"

	"warehouse-ops/internal/core"
)

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.OrderFilter{
		Search: q.Get("search"),
		Status: q.Get("status"),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}

	orders, total, err := h.orders.List(r.Context(), filter)
	if err != nil {
		apiError(w, r, err)
		return
	}
	type response struct {
		Orders []core.ShippedOrder `json:"orders"`
		Total  int                 `json:"total"`
	}
	writeJSON(w, response{Orders: orders, Total: total})
}
