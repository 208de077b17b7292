package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ahc-eng/payflow-api/internal/config"
	"github.com/ahc-eng/payflow-api/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// TokenManager issues and validates the service's own HS256 session tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenManager creates a token manager from config.
func NewTokenManager(cfg *config.AuthConfig) *TokenManager {
	return &TokenManager{
		secret: []byte(cfg.JWTSecret.Value),
		issuer: cfg.Issuer,
		ttl:    cfg.TokenTTL(),
	}
}

type sessionClaims struct {
	FullName  string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	ProjectID string `json:"projectId,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs a session token for the user.
func (m *TokenManager) IssueToken(user *domain.User) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(m.ttl)

	claims := sessionClaims{
		FullName: user.FullName,
		Email:    user.Email,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if user.ProjectID != nil {
		claims.ProjectID = user.ProjectID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a session token and returns the user context.
func (m *TokenManager) ValidateToken(tokenString string) (*UserContext, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	role := domain.RoleName(claims.Role)
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role", ErrInvalidToken)
	}

	userCtx := &UserContext{
		UserID:   userID,
		FullName: claims.FullName,
		Email:    claims.Email,
		Role:     role,
	}
	if claims.ProjectID != "" {
		if projectID, err := uuid.Parse(claims.ProjectID); err == nil {
			userCtx.ProjectID = &projectID
		}
	}
	return userCtx, nil
}
