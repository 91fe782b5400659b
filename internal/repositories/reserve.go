package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/sbilibin2017/gw-settlement-ledger/internal/logger"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/models"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/storage"
)

// ErrInsufficientReserve is returned when a debit would push the available
// reserve below zero. The invariant 0 <= available <= total always holds.
var ErrInsufficientReserve = errors.New("insufficient reserve")

// ReserveRepository persists the reserve pool in a keyed-record store.
type ReserveRepository struct {
	store *storage.Store[models.ReservePool]
	now   func() time.Time
}

// NewReserveRepository creates a repository over the given store.
func NewReserveRepository(store *storage.Store[models.ReservePool], now func() time.Time) *ReserveRepository {
	if now == nil {
		now = time.Now
	}
	return &ReserveRepository{store: store, now: now}
}

// Get returns a snapshot of the reserve pool.
func (r *ReserveRepository) Get(ctx context.Context) (models.ReservePool, error) {
	pool, err := r.store.Read(ctx)
	if err != nil {
		logger.Log.Errorw("reserve.get", "error", err)
	}
	return pool, err
}

// Init seeds the pool with the given total when it has never been set.
// An already initialized pool is left untouched.
func (r *ReserveRepository) Init(ctx context.Context, total float64) error {
	err := r.store.Update(ctx, func(pool models.ReservePool) (models.ReservePool, error) {
		if pool.Total > 0 {
			return pool, nil
		}
		pool.Total = total
		pool.Available = total
		pool.UpdatedAt = r.now().UTC()
		return pool, nil
	})
	logger.Log.Infow("reserve.init", "total", total, "error", err)
	return err
}

// Debit decreases the available reserve by amount and returns the resulting
// pool. A debit exceeding the available amount fails without mutation.
func (r *ReserveRepository) Debit(ctx context.Context, amount float64) (models.ReservePool, error) {
	var result models.ReservePool
	err := r.store.Update(ctx, func(pool models.ReservePool) (models.ReservePool, error) {
		if amount < 0 {
			return pool, errors.New("negative debit amount")
		}
		if amount > pool.Available {
			return pool, ErrInsufficientReserve
		}
		pool.Available -= amount
		pool.UpdatedAt = r.now().UTC()
		result = pool
		return pool, nil
	})

	logger.Log.Infow("reserve.debit",
		"amount", amount,
		"available", result.Available,
		"error", err,
	)
	if err != nil {
		return models.ReservePool{}, err
	}
	return result, nil
}
