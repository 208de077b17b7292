package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/mapper"
	"github.com/ahc-eng/payflow-api/internal/repository"
	"github.com/ahc-eng/payflow-api/internal/scope"
)

// ErrUserNotFound is returned when a user is not found
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicateEmail is returned when the email is already registered
var ErrDuplicateEmail = errors.New("user with this email already exists")

// ErrInvalidRole is returned when an unknown role name is submitted
var ErrInvalidRole = errors.New("invalid role")

// UserService handles admin-side user management
type UserService struct {
	userRepo       *repository.UserRepository
	assignmentRepo *repository.AssignmentRepository
	projectRepo    *repository.ProjectRepository
	logger         *zap.Logger
}

// NewUserService creates a new user service instance
func NewUserService(
	userRepo *repository.UserRepository,
	assignmentRepo *repository.AssignmentRepository,
	projectRepo *repository.ProjectRepository,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		userRepo:       userRepo,
		assignmentRepo: assignmentRepo,
		projectRepo:    projectRepo,
		logger:         logger,
	}
}

// Create creates a user with an initial password and project assignments
func (s *UserService) Create(ctx context.Context, req *domain.CreateUserRequest) (*domain.UserDTO, error) {
	if !req.Role.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRole, req.Role)
	}

	user := &domain.User{
		FullName: strings.TrimSpace(req.FullName),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Role:     req.Role,
		IsActive: true,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, err
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique constraint") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.replaceAssignments(ctx, user, req.ProjectIDs); err != nil {
		return nil, err
	}

	s.logger.Info("user created",
		zap.String("user_id", user.ID.String()),
		zap.String("email", user.Email),
		zap.String("role", string(user.Role)))

	return s.loadDTO(ctx, user.ID)
}

// Update updates a user's profile, role, activation and assignments
func (s *UserService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateUserRequest) (*domain.UserDTO, error) {
	if !req.Role.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRole, req.Role)
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.FullName = strings.TrimSpace(req.FullName)
	user.Email = strings.ToLower(strings.TrimSpace(req.Email))
	user.Role = req.Role
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.Password != "" {
		if err := user.SetPassword(req.Password); err != nil {
			return nil, err
		}
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique constraint") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if err := s.replaceAssignments(ctx, user, req.ProjectIDs); err != nil {
		return nil, err
	}

	return s.loadDTO(ctx, user.ID)
}

// replaceAssignments swaps the user's project set. Assignments are only kept
// for scoped roles; other roles see everything and carry none.
func (s *UserService) replaceAssignments(ctx context.Context, user *domain.User, projectIDs []uuid.UUID) error {
	role := user.EffectiveRole()
	if !scope.IsScopedRole(role) {
		projectIDs = nil
	}

	if len(projectIDs) > 0 {
		projects, err := s.projectRepo.GetByIDs(ctx, projectIDs)
		if err != nil {
			return fmt.Errorf("failed to verify projects: %w", err)
		}
		if len(projects) != len(uniqueIDs(projectIDs)) {
			return fmt.Errorf("%w: projectIds", ErrInvalidInput)
		}
	}

	if err := s.assignmentRepo.ReplaceForUser(ctx, user.ID, &role, projectIDs); err != nil {
		return fmt.Errorf("failed to replace assignments: %w", err)
	}
	return nil
}

// GetByID retrieves one user with assignments
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.UserDTO, error) {
	return s.loadDTO(ctx, id)
}

// List returns a paginated user listing
func (s *UserService) List(ctx context.Context, page, pageSize int, search string) (*domain.PaginatedResponse, error) {
	users, total, err := s.userRepo.List(ctx, page, pageSize, search)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	dtos := make([]domain.UserDTO, len(users))
	for i := range users {
		dtos[i] = mapper.ToUserDTO(&users[i])
	}

	return paginated(dtos, total, page, pageSize), nil
}

// Deactivate turns off a user's access without deleting history
func (s *UserService) Deactivate(ctx context.Context, id uuid.UUID) error {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	user.IsActive = false
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	s.logger.Info("user deactivated", zap.String("user_id", id.String()))
	return nil
}

func (s *UserService) loadDTO(ctx context.Context, id uuid.UUID) (*domain.UserDTO, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	dto := mapper.ToUserDTO(user)
	return &dto, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
