package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sbilibin2017/gw-settlement-ledger/internal/logger"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/models"
)

// PendingLister defines the interface that the service must implement.
type PendingLister interface {
	Pending(ctx context.Context) ([]models.Transaction, error)
}

// PendingResponse lists transactions awaiting settlement
// swagger:model PendingResponse
type PendingResponse struct {
	// Transactions awaiting settlement, oldest first
	Transactions []models.Transaction `json:"transactions"`

	// Number of pending transactions
	Count int `json:"count"`
}

// NewPendingHandler returns an HTTP handler listing transactions awaiting settlement.
// @Summary List pending transactions
// @Tags transactions
// @Produce json
// @Success 200 {object} handlers.PendingResponse "Pending transactions"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /transactions/pending [get]
// @Security BearerAuth
func NewPendingHandler(svc PendingLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txns, err := svc.Pending(r.Context())
		if err != nil {
			logger.Log.Errorw("failed to list pending transactions", "error", err)
			writeError(w, r, http.StatusInternalServerError, "Internal server error")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(PendingResponse{
			Transactions: txns,
			Count:        len(txns),
		})
	}
}
