package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sbilibin2017/gw-settlement-ledger/internal/logger"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/models"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/repositories"
)

// TransactionQueryer defines the interface that the service must implement.
type TransactionQueryer interface {
	Query(ctx context.Context, filter repositories.TransactionFilter, page, pageSize int) (*models.TransactionPage, error)
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// NewTransactionsHandler returns an HTTP handler for filtered transaction queries.
// The summary always covers the full filtered set, not just the returned page.
// @Summary Query transactions
// @Tags transactions
// @Produce json
// @Param reference query string false "Substring match on txn_ref"
// @Param status query string false "Exact status match"
// @Param bank query string false "Matches sender or receiver bank code"
// @Param type query string false "Exact type match"
// @Param page query int false "Page number, starting at 1"
// @Param pageSize query int false "Rows per page, capped at 100"
// @Success 200 {object} models.TransactionPage "One page plus full-set summary"
// @Failure 400 {object} handlers.ErrorResponse "Invalid pagination parameters"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /transactions [get]
// @Security BearerAuth
func NewTransactionsHandler(svc TransactionQueryer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := repositories.TransactionFilter{
			Reference: q.Get("reference"),
			Status:    q.Get("status"),
			Bank:      q.Get("bank"),
			Type:      q.Get("type"),
		}

		page, err := positiveIntParam(q.Get("page"), 1)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "Invalid page parameter")
			return
		}
		pageSize, err := positiveIntParam(q.Get("pageSize"), defaultPageSize)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "Invalid pageSize parameter")
			return
		}
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}

		result, err := svc.Query(r.Context(), filter, page, pageSize)
		if err != nil {
			logger.Log.Errorw("failed to query transactions", "filter", filter, "error", err)
			writeError(w, r, http.StatusInternalServerError, "Internal server error")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(result)
	}
}

func positiveIntParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, strconv.ErrRange
	}
	return v, nil
}
