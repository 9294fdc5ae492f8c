package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"warehouse-ops/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONStatus writes a JSON response with an explicit status code.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// apiError maps a domain error to its HTTP shape. Guard and cooldown
// rejections become 409 with a Retry-After header; upstream throttling
// surfaces as 429; missing entities as 404.
func apiError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case core.IsPrecondition(err):
		var pe *core.PreconditionError
		if errors.As(err, &pe) && pe.RetryAfter > 0 {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(pe.RetryAfter.Round(time.Second).Seconds())))
		}
		writeError(w, r, err.Error(), "TRY_LATER", http.StatusConflict)
	case core.IsThrottled(err):
		writeError(w, r, err.Error(), "UPSTREAM_THROTTLED", http.StatusTooManyRequests)
	case core.IsNotFound(err):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	default:
		writeError(w, r, err.Error(), "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
