package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sbilibin2017/gw-settlement-ledger/internal/logger"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/models"
)

// DashboardReader defines the interface that the service must implement.
type DashboardReader interface {
	Dashboard(ctx context.Context) (*models.Dashboard, error)
}

// NewDashboardHandler returns an HTTP handler aggregating all ledger metrics
// into one payload.
// @Summary Dashboard metrics
// @Tags metrics
// @Produce json
// @Success 200 {object} models.Dashboard "Aggregated metrics"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /dashboard [get]
// @Security BearerAuth
func NewDashboardHandler(svc DashboardReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dash, err := svc.Dashboard(r.Context())
		if err != nil {
			logger.Log.Errorw("failed to build dashboard", "error", err)
			writeError(w, r, http.StatusInternalServerError, "Internal server error")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(dash)
	}
}
