package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/auth"
	"github.com/ahc-eng/payflow-api/internal/config"
	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/repository"
	"github.com/ahc-eng/payflow-api/internal/service"
	"github.com/ahc-eng/payflow-api/internal/testutil"
)

func TestLogin(t *testing.T) {
	db := testutil.OpenTestDB(t)
	userRepo := repository.NewUserRepository(db)
	tokens := auth.NewTokenManager(&config.AuthConfig{
		JWTSecret:     config.SecretValue{Value: "test-signing-secret"},
		Issuer:        "payflow-test",
		TokenTTLHours: 8,
	})
	svc := service.NewAuthService(userRepo, tokens, zap.NewNop())
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "Finance User", domain.RoleFinance)

	t.Run("valid credentials", func(t *testing.T) {
		resp, err := svc.Login(ctx, &domain.LoginRequest{Email: user.Email, Password: "test-password"})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, user.ID, resp.User.ID)

		claims, err := tokens.ValidateToken(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.Equal(t, domain.RoleFinance, claims.Role)

		var reloaded domain.User
		require.NoError(t, db.First(&reloaded, "id = ?", user.ID).Error)
		assert.NotNil(t, reloaded.LastLoginAt)
	})

	t.Run("email is matched case insensitively", func(t *testing.T) {
		_, err := svc.Login(ctx, &domain.LoginRequest{Email: "  " + user.Email, Password: "test-password"})
		require.NoError(t, err)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, &domain.LoginRequest{Email: user.Email, Password: "nope"})
		assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	})

	t.Run("unknown email gets the same error", func(t *testing.T) {
		_, err := svc.Login(ctx, &domain.LoginRequest{Email: "nobody@example.com", Password: "test-password"})
		assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	})

	t.Run("disabled account", func(t *testing.T) {
		disabled := testutil.CreateUser(t, db, "Former", domain.RoleEngineer)
		require.NoError(t, db.Model(disabled).Update("is_active", false).Error)

		_, err := svc.Login(ctx, &domain.LoginRequest{Email: disabled.Email, Password: "test-password"})
		assert.ErrorIs(t, err, service.ErrAccountDisabled)
	})
}
