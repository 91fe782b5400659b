package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sbilibin2017/gw-settlement-ledger/internal/logger"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/models"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/storage"
)

// AuditRepository persists the append-only audit trail.
type AuditRepository struct {
	store *storage.Store[[]models.AuditEntry]
	now   func() time.Time
}

// NewAuditRepository creates a repository over the given store.
func NewAuditRepository(store *storage.Store[[]models.AuditEntry], now func() time.Time) *AuditRepository {
	if now == nil {
		now = time.Now
	}
	return &AuditRepository{store: store, now: now}
}

// Append records an audit entry. Entries are never mutated or removed.
func (r *AuditRepository) Append(ctx context.Context, action, actor, details string) error {
	entry := models.AuditEntry{
		AuditID:   uuid.NewString(),
		Action:    action,
		Actor:     actor,
		Details:   details,
		Timestamp: r.now().UTC(),
	}

	err := r.store.Update(ctx, func(entries []models.AuditEntry) ([]models.AuditEntry, error) {
		return append(entries, entry), nil
	})

	logger.Log.Infow("audit.append",
		"action", action,
		"actor", actor,
		"error", err,
	)
	return err
}

// List returns a snapshot of the trail in append order.
func (r *AuditRepository) List(ctx context.Context) ([]models.AuditEntry, error) {
	entries, err := r.store.Read(ctx)
	if err != nil {
		logger.Log.Errorw("audit.list", "error", err)
	}
	return entries, err
}
