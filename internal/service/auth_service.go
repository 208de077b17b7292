package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ahc-eng/payflow-api/internal/auth"
	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/mapper"
	"github.com/ahc-eng/payflow-api/internal/repository"
)

// ErrInvalidCredentials is returned on a bad email/password pair. The same
// error covers unknown emails and wrong passwords so the login endpoint does
// not leak which accounts exist.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrAccountDisabled is returned when a deactivated user tries to log in
var ErrAccountDisabled = errors.New("account is disabled")

// AuthService handles login and token issuance
type AuthService struct {
	userRepo *repository.UserRepository
	tokens   *auth.TokenManager
	logger   *zap.Logger
}

// NewAuthService creates a new auth service instance
func NewAuthService(userRepo *repository.UserRepository, tokens *auth.TokenManager, logger *zap.Logger) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		logger:   logger,
	}
}

// Login verifies credentials and issues a session token
func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !user.CheckPassword(req.Password) {
		s.logger.Warn("failed login attempt", zap.String("email", req.Email))
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	token, expiresAt, err := s.tokens.IssueToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	now := time.Now().UTC()
	if err := s.userRepo.TouchLastLogin(ctx, user.ID, now); err != nil {
		// Login still succeeds; the timestamp is informational.
		s.logger.Warn("failed to record last login", zap.Error(err))
	}
	user.LastLoginAt = &now

	s.logger.Info("user logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)))

	return &domain.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format("2006-01-02T15:04:05Z"),
		User:      mapper.ToUserDTO(user),
	}, nil
}
