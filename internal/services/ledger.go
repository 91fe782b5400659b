package services

import (
	"context"

	"github.com/sbilibin2017/gw-settlement-ledger/internal/logger"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/models"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/repositories"
)

// TransactionLister reads transactions from the ledger.
type TransactionLister interface {
	List(ctx context.Context, filter repositories.TransactionFilter) ([]models.Transaction, error)
}

// LedgerService serves read-side transaction queries.
type LedgerService struct {
	txns       TransactionLister
	feePercent float64
}

// NewLedgerService creates a LedgerService. feePercent is the processing fee
// fraction applied to completed volume, e.g. 0.015 for 1.5%.
func NewLedgerService(txns TransactionLister, feePercent float64) *LedgerService {
	return &LedgerService{txns: txns, feePercent: feePercent}
}

// Pending returns all pending ledger entries.
func (s *LedgerService) Pending(ctx context.Context) ([]models.Transaction, error) {
	return s.txns.List(ctx, repositories.TransactionFilter{Status: models.StatusPending})
}

// Query returns one page of the filtered ledger plus a summary computed over
// the whole filtered set, not the page.
func (s *LedgerService) Query(ctx context.Context, filter repositories.TransactionFilter, page, pageSize int) (*models.TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	filtered, err := s.txns.List(ctx, filter)
	if err != nil {
		logger.Log.Errorw("transaction query failed", "error", err)
		return nil, err
	}

	summary := models.TransactionSummary{TotalTransactions: len(filtered)}
	completed := 0
	for _, txn := range filtered {
		summary.TotalVolume += txn.Amount
		if txn.Status == models.StatusCompleted {
			completed++
			summary.TotalFees += txn.Amount * s.feePercent
		}
	}
	if len(filtered) > 0 {
		summary.SuccessRate = float64(completed) / float64(len(filtered))
	}

	totalPages := (len(filtered) + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	return &models.TransactionPage{
		Transactions: filtered[start:end],
		Page:         page,
		PageSize:     pageSize,
		TotalPages:   totalPages,
		Summary:      summary,
	}, nil
}
