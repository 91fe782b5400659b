package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sbilibin2017/gw-settlement-ledger/internal/middlewares"
)

// ErrorResponse is the envelope returned by every failing endpoint. The
// correlation id matches the X-Request-ID header so operators can find the
// matching log lines.
// swagger:model ErrorResponse
type ErrorResponse struct {
	// Error message
	// default: Invalid request body
	Error string `json:"error"`

	// Correlation id for log cross-referencing
	CorrelationID string `json:"correlation_id"`

	// Time the error was produced
	Timestamp time.Time `json:"timestamp"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:         msg,
		CorrelationID: middlewares.RequestIDFromContext(r.Context()),
		Timestamp:     time.Now().UTC(),
	})
}
