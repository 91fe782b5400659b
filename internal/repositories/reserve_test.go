package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbilibin2017/gw-settlement-ledger/internal/models"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/storage"
)

func newReserveRepo(t *testing.T) *ReserveRepository {
	t.Helper()
	store, err := storage.New(t.TempDir(), "reserve",
		func() models.ReservePool { return models.ReservePool{} }, storage.Options{})
	require.NoError(t, err)
	return NewReserveRepository(store, func() time.Time {
		return time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	})
}

func TestReserveRepository_InitOnlyOnce(t *testing.T) {
	repo := newReserveRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Init(ctx, 50000))

	pool, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, pool.Total)
	assert.Equal(t, 50000.0, pool.Available)

	// Re-init must not reset an existing pool.
	_, err = repo.Debit(ctx, 10000)
	require.NoError(t, err)
	require.NoError(t, repo.Init(ctx, 99999))

	pool, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, pool.Total)
	assert.Equal(t, 40000.0, pool.Available)
}

func TestReserveRepository_DebitEnforcesInvariant(t *testing.T) {
	repo := newReserveRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Init(ctx, 50000))

	pool, err := repo.Debit(ctx, 50000)
	require.NoError(t, err)
	assert.Equal(t, 0.0, pool.Available)

	_, err = repo.Debit(ctx, 1)
	assert.ErrorIs(t, err, ErrInsufficientReserve)

	// Failed debit leaves the pool untouched.
	pool, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, pool.Available)
	assert.Equal(t, 50000.0, pool.Total)
}

func TestReservePool_Utilization(t *testing.T) {
	assert.Equal(t, 0.0, models.ReservePool{}.Utilization())
	assert.Equal(t, 0.2, models.ReservePool{Total: 50000, Available: 40000}.Utilization())
}
