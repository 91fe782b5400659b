package repositories

import (
	"context"

	"github.com/sbilibin2017/gw-settlement-ledger/internal/logger"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/models"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/storage"
)

// BankRepository persists the bank registry in a sequence-shaped store.
type BankRepository struct {
	store *storage.Store[[]models.Bank]
}

// NewBankRepository creates a repository over the given store.
func NewBankRepository(store *storage.Store[[]models.Bank]) *BankRepository {
	return &BankRepository{store: store}
}

// List returns a snapshot of the registry.
func (r *BankRepository) List(ctx context.Context) ([]models.Bank, error) {
	banks, err := r.store.Read(ctx)
	if err != nil {
		logger.Log.Errorw("banks.list", "error", err)
	}
	return banks, err
}

// Upsert inserts or replaces a bank by code.
func (r *BankRepository) Upsert(ctx context.Context, bank models.Bank) error {
	err := r.store.Update(ctx, func(banks []models.Bank) ([]models.Bank, error) {
		for i := range banks {
			if banks[i].Code == bank.Code {
				banks[i] = bank
				return banks, nil
			}
		}
		return append(banks, bank), nil
	})
	logger.Log.Infow("banks.upsert", "code", bank.Code, "connected", bank.Connected, "error", err)
	return err
}

// Seed fills an empty registry with the given banks. A non-empty registry is
// left untouched so operator edits survive restarts.
func (r *BankRepository) Seed(ctx context.Context, banks []models.Bank) error {
	err := r.store.Update(ctx, func(existing []models.Bank) ([]models.Bank, error) {
		if len(existing) > 0 {
			return existing, nil
		}
		return banks, nil
	})
	logger.Log.Infow("banks.seed", "count", len(banks), "error", err)
	return err
}
