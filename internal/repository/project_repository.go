package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ahc-eng/payflow-api/internal/domain"
)

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	var project domain.Project
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *ProjectRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Project, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var projects []domain.Project
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&projects).Error
	return projects, err
}

func (r *ProjectRepository) Update(ctx context.Context, project *domain.Project) error {
	return r.db.WithContext(ctx).Save(project).Error
}

func (r *ProjectRepository) List(ctx context.Context, page, pageSize int, search string) ([]domain.Project, int64, error) {
	page = ClampPage(page)
	pageSize = ClampPageSize(pageSize)

	query := r.db.WithContext(ctx).Model(&domain.Project{})
	if search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(project_name) LIKE ? OR LOWER(code) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var projects []domain.Project
	err := query.
		Order("project_name ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&projects).Error

	return projects, total, err
}

// ListAll returns every project ordered by name, for dropdowns and scope
// assignment screens.
func (r *ProjectRepository) ListAll(ctx context.Context) ([]domain.Project, error) {
	var projects []domain.Project
	err := r.db.WithContext(ctx).Order("project_name ASC").Find(&projects).Error
	return projects, err
}
