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
)

// ErrProjectNotFound is returned when a project is not found
var ErrProjectNotFound = errors.New("project not found")

// ErrDuplicateProjectCode is returned when a project code is already taken
var ErrDuplicateProjectCode = errors.New("project with this code already exists")

// ProjectService handles business logic for projects
type ProjectService struct {
	projectRepo *repository.ProjectRepository
	logger      *zap.Logger
}

// NewProjectService creates a new project service instance
func NewProjectService(projectRepo *repository.ProjectRepository, logger *zap.Logger) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		logger:      logger,
	}
}

// Create creates a new project
func (s *ProjectService) Create(ctx context.Context, req *domain.CreateProjectRequest) (*domain.ProjectDTO, error) {
	project := &domain.Project{
		Name: strings.TrimSpace(req.Name),
		Code: strings.TrimSpace(req.Code),
	}
	if project.Name == "" {
		return nil, fmt.Errorf("%w: name", ErrInvalidInput)
	}

	if err := s.projectRepo.Create(ctx, project); err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique constraint") {
			return nil, ErrDuplicateProjectCode
		}
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.logger.Info("project created",
		zap.String("project_id", project.ID.String()),
		zap.String("name", project.Name))

	dto := mapper.ToProjectDTO(project)
	return &dto, nil
}

// Update renames a project or changes its code
func (s *ProjectService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateProjectRequest) (*domain.ProjectDTO, error) {
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	project.Name = strings.TrimSpace(req.Name)
	project.Code = strings.TrimSpace(req.Code)
	if project.Name == "" {
		return nil, fmt.Errorf("%w: name", ErrInvalidInput)
	}

	if err := s.projectRepo.Update(ctx, project); err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique constraint") {
			return nil, ErrDuplicateProjectCode
		}
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	s.logger.Info("project updated",
		zap.String("project_id", project.ID.String()),
		zap.String("name", project.Name))

	dto := mapper.ToProjectDTO(project)
	return &dto, nil
}

// GetByID retrieves a project by ID
func (s *ProjectService) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProjectDTO, error) {
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	dto := mapper.ToProjectDTO(project)
	return &dto, nil
}

// List returns a paginated project listing
func (s *ProjectService) List(ctx context.Context, page, pageSize int, search string) (*domain.PaginatedResponse, error) {
	projects, total, err := s.projectRepo.List(ctx, page, pageSize, search)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	dtos := make([]domain.ProjectDTO, len(projects))
	for i := range projects {
		dtos[i] = mapper.ToProjectDTO(&projects[i])
	}

	return paginated(dtos, total, page, pageSize), nil
}

// ListAll returns every project, for dropdowns and assignment screens
func (s *ProjectService) ListAll(ctx context.Context) ([]domain.ProjectDTO, error) {
	projects, err := s.projectRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	dtos := make([]domain.ProjectDTO, len(projects))
	for i := range projects {
		dtos[i] = mapper.ToProjectDTO(&projects[i])
	}
	return dtos, nil
}
