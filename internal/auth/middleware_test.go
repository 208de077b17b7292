package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/config"
	"github.com/ahc-eng/payflow-api/internal/domain"
)

func testTokenManager() *TokenManager {
	return NewTokenManager(&config.AuthConfig{
		JWTSecret:     config.SecretValue{Value: "test-secret-which-is-long-enough"},
		Issuer:        "payflow-test",
		TokenTTLHours: 1,
	})
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := testTokenManager()
	projectID := uuid.New()
	user := &domain.User{
		BaseModel: domain.BaseModel{ID: uuid.New()},
		FullName:  "Test Engineer",
		Email:     "eng@example.com",
		Role:      domain.RoleEngineer,
		ProjectID: &projectID,
	}

	signed, expiresAt, err := tokens.IssueToken(user)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	userCtx, err := tokens.ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userCtx.UserID)
	assert.Equal(t, domain.RoleEngineer, userCtx.Role)
	require.NotNil(t, userCtx.ProjectID)
	assert.Equal(t, projectID, *userCtx.ProjectID)
}

func TestValidateToken_Garbage(t *testing.T) {
	tokens := testTokenManager()
	_, err := tokens.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func requestAs(role domain.RoleName, method string) *http.Request {
	req := httptest.NewRequest(method, "/api/v1/payments", nil)
	userCtx := &UserContext{UserID: uuid.New(), Role: role}
	return req.WithContext(WithUserContext(req.Context(), userCtx))
}

func TestRequireRoles(t *testing.T) {
	m := NewMiddleware(testTokenManager(), zap.NewNop())
	handler := m.RequireRoles(domain.RoleFinance, domain.RoleChairman)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	t.Run("listed role passes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestAs(domain.RoleFinance, http.MethodGet))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unlisted role rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestAs(domain.RoleEngineer, http.MethodGet))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin always passes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestAs(domain.RoleAdmin, http.MethodPost))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("chairman may read when listed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestAs(domain.RoleChairman, http.MethodGet))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("chairman may never mutate", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestAs(domain.RoleChairman, http.MethodPost))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("chairman rejected when not listed", func(t *testing.T) {
		gate := m.RequireRoles(domain.RoleFinance)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, requestAs(domain.RoleChairman, http.MethodGet))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("missing principal gets 401", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("project_engineer counts as engineer", func(t *testing.T) {
		gate := m.RequireRoles(domain.RoleEngineer)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, requestAs(domain.RoleProjectEngineer, http.MethodGet))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAuthenticate(t *testing.T) {
	tokens := testTokenManager()
	m := NewMiddleware(tokens, zap.NewNop())
	handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userCtx := MustFromContext(r.Context())
		w.Header().Set("X-Role", string(userCtx.Role))
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid bearer token", func(t *testing.T) {
		user := &domain.User{
			BaseModel: domain.BaseModel{ID: uuid.New()},
			FullName:  "Finance User",
			Email:     "fin@example.com",
			Role:      domain.RoleFinance,
		}
		signed, _, err := tokens.IssueToken(user)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, string(domain.RoleFinance), rec.Header().Get("X-Role"))
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
