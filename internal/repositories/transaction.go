package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sbilibin2017/gw-settlement-ledger/internal/logger"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/models"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/storage"
)

var (
	// ErrDuplicateRef is returned when appending a transaction whose
	// reference already exists in the ledger.
	ErrDuplicateRef = errors.New("transaction reference already exists")

	// ErrTransactionNotFound is returned by lookups that match nothing.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// TransactionFilter narrows List results. Zero fields match everything.
type TransactionFilter struct {
	Reference string // Substring match on txn_ref
	Status    string // Exact status match
	Bank      string // Matches sender or receiver bank code
	Type      string // Exact type match
}

// TransactionRepository persists ledger entries in a sequence-shaped store.
type TransactionRepository struct {
	store *storage.Store[[]models.Transaction]
}

// NewTransactionRepository creates a repository over the given store.
func NewTransactionRepository(store *storage.Store[[]models.Transaction]) *TransactionRepository {
	return &TransactionRepository{store: store}
}

// Append adds a transaction to the ledger. A duplicate txn_ref is rejected
// with ErrDuplicateRef so replayed webhooks never produce two entries.
func (r *TransactionRepository) Append(ctx context.Context, txn models.Transaction) error {
	err := r.store.Update(ctx, func(txns []models.Transaction) ([]models.Transaction, error) {
		for _, existing := range txns {
			if existing.TxnRef == txn.TxnRef {
				return nil, ErrDuplicateRef
			}
		}
		return append(txns, txn), nil
	})

	logger.Log.Infow("transactions.append",
		"txn_ref", txn.TxnRef,
		"amount", txn.Amount,
		"status", txn.Status,
		"error", err,
	)
	return err
}

// List returns a snapshot of transactions matching the filter, in ledger order.
func (r *TransactionRepository) List(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	txns, err := r.store.Read(ctx)
	if err != nil {
		logger.Log.Errorw("transactions.list", "error", err)
		return nil, err
	}

	out := make([]models.Transaction, 0, len(txns))
	for _, txn := range txns {
		if matches(txn, filter) {
			out = append(out, txn)
		}
	}
	return out, nil
}

// GetByRef returns the transaction with the exact reference.
func (r *TransactionRepository) GetByRef(ctx context.Context, ref string) (*models.Transaction, error) {
	txns, err := r.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	for _, txn := range txns {
		if txn.TxnRef == ref {
			return &txn, nil
		}
	}
	return nil, ErrTransactionNotFound
}

// PendingOlderThan returns pending transactions created before the cutoff.
func (r *TransactionRepository) PendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.Transaction, error) {
	txns, err := r.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Transaction
	for _, txn := range txns {
		if txn.Status == models.StatusPending && txn.CreatedAt.Before(cutoff) {
			out = append(out, txn)
		}
	}
	return out, nil
}

// CompleteWhere atomically transitions a subset of pending transactions to
// completed. selectRefs receives the current pending set under the store lock
// and returns the references to complete, so selection and mutation cannot
// race another settlement pass. It returns the completed transactions and the
// full pre-mutation snapshot for rollback. When selectRefs picks nothing the
// store is left untouched.
func (r *TransactionRepository) CompleteWhere(
	ctx context.Context,
	selectRefs func(pending []models.Transaction) []string,
	settledAt time.Time,
) (completed []models.Transaction, snapshot []models.Transaction, err error) {
	err = r.store.Update(ctx, func(txns []models.Transaction) ([]models.Transaction, error) {
		snapshot = append([]models.Transaction(nil), txns...)

		var pending []models.Transaction
		for _, txn := range txns {
			if txn.Status == models.StatusPending {
				pending = append(pending, txn)
			}
		}

		refs := selectRefs(pending)
		if len(refs) == 0 {
			return txns, nil
		}

		selected := make(map[string]struct{}, len(refs))
		for _, ref := range refs {
			selected[ref] = struct{}{}
		}

		for i := range txns {
			if txns[i].Status != models.StatusPending {
				continue
			}
			if _, ok := selected[txns[i].TxnRef]; !ok {
				continue
			}
			ts := settledAt
			txns[i].Status = models.StatusCompleted
			txns[i].UpdatedAt = settledAt
			txns[i].SettledAt = &ts
			completed = append(completed, txns[i])
		}
		return txns, nil
	})

	logger.Log.Infow("transactions.complete_where",
		"completed", len(completed),
		"error", err,
	)
	if err != nil {
		return nil, nil, err
	}
	return completed, snapshot, nil
}

// Restore overwrites the ledger with a previously taken snapshot. Used only
// to roll back a settlement batch whose reserve debit failed mid-flight.
func (r *TransactionRepository) Restore(ctx context.Context, snapshot []models.Transaction) error {
	err := r.store.Update(ctx, func([]models.Transaction) ([]models.Transaction, error) {
		return snapshot, nil
	})
	logger.Log.Warnw("transactions.restore", "entries", len(snapshot), "error", err)
	return err
}

func matches(txn models.Transaction, f TransactionFilter) bool {
	if f.Reference != "" && !strings.Contains(txn.TxnRef, f.Reference) {
		return false
	}
	if f.Status != "" && txn.Status != f.Status {
		return false
	}
	if f.Bank != "" && txn.SenderBank != f.Bank && txn.ReceiverBank != f.Bank {
		return false
	}
	if f.Type != "" && txn.Type != f.Type {
		return false
	}
	return true
}
