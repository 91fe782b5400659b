package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbilibin2017/gw-settlement-ledger/internal/jwt"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/models"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/repositories"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/storage"
)

func newAuthFixture(t *testing.T) (*AuthService, *jwt.JWT) {
	t.Helper()
	store, err := storage.New(t.TempDir(), "users",
		func() []models.User { return []models.User{} }, storage.Options{})
	require.NoError(t, err)
	repo := repositories.NewUserRepository(store, nil)
	j := jwt.New(jwt.WithSecretKey("test-secret"), jwt.WithExpiration(time.Minute))
	return NewAuthService(repo, repo, j), j
}

func TestAuthService_FirstRegisteredUserIsAdmin(t *testing.T) {
	svc, j := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "first", "secret123", "first@bank.test"))
	require.NoError(t, svc.Register(ctx, "second", "secret123", "second@bank.test"))

	token, err := svc.Login(ctx, "first", "secret123")
	require.NoError(t, err)
	claims, err := j.GetClaims(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "first", claims.Username)

	token, err = svc.Login(ctx, "second", "secret123")
	require.NoError(t, err)
	claims, err = j.GetClaims(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOperator, claims.Role)
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "ops", "secret123", "ops@bank.test"))
	err := svc.Register(ctx, "ops", "other", "ops@bank.test")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestAuthService_RegisterCannotOverwriteExistingAccount(t *testing.T) {
	svc, j := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "ops_admin", "secret123", "admin@bank.test"))

	// Same username under a fresh email must not replace the account.
	err := svc.Register(ctx, "ops_admin", "attacker-pass", "evil@example.com")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	// Same email under a fresh username is rejected too.
	err = svc.Register(ctx, "ops_admin2", "attacker-pass", "admin@bank.test")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	// The original credentials and the admin role survive.
	token, err := svc.Login(ctx, "ops_admin", "secret123")
	require.NoError(t, err)
	claims, err := j.GetClaims(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	_, err = svc.Login(ctx, "ops_admin", "attacker-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_LoginFailures(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, "ghost", "secret123")
	assert.ErrorIs(t, err, ErrUserDoesNotExist)

	require.NoError(t, svc.Register(ctx, "ops", "secret123", "ops@bank.test"))
	_, err = svc.Login(ctx, "ops", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
