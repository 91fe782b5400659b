package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sbilibin2017/gw-settlement-ledger/internal/logger"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/models"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/storage"
)

// UserRepository persists operator accounts in a sequence-shaped store.
type UserRepository struct {
	store *storage.Store[[]models.User]
	now   func() time.Time
}

// NewUserRepository creates a repository over the given store.
func NewUserRepository(store *storage.Store[[]models.User], now func() time.Time) *UserRepository {
	if now == nil {
		now = time.Now
	}
	return &UserRepository{store: store, now: now}
}

// GetByUsernameOrEmail returns the first operator matching the non-nil
// filters, or nil when nothing matches.
func (r *UserRepository) GetByUsernameOrEmail(ctx context.Context, username, email *string) (*models.User, error) {
	users, err := r.store.Read(ctx)
	if err != nil {
		logger.Log.Errorw("users.get", "error", err)
		return nil, err
	}

	for _, u := range users {
		if username != nil && u.Username != *username {
			continue
		}
		if email != nil && u.Email != *email {
			continue
		}
		return &u, nil
	}
	return nil, nil
}

// Save inserts or updates an operator keyed by username. The role of an
// existing operator is assigned once at registration and never changed by an
// update.
func (r *UserRepository) Save(ctx context.Context, username, passwordHash, email, role string) error {
	now := r.now().UTC()
	err := r.store.Update(ctx, func(users []models.User) ([]models.User, error) {
		for i := range users {
			if users[i].Username == username {
				users[i].Password = passwordHash
				users[i].Email = email
				users[i].UpdatedAt = now
				return users, nil
			}
		}
		return append(users, models.User{
			UserID:    uuid.New(),
			Username:  username,
			Email:     email,
			Password:  passwordHash,
			Role:      role,
			CreatedAt: now,
			UpdatedAt: now,
		}), nil
	})

	logger.Log.Infow("users.save", "username", username, "role", role, "error", err)
	return err
}

// Count returns the number of registered operators.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	users, err := r.store.Read(ctx)
	if err != nil {
		return 0, err
	}
	return len(users), nil
}
