package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ahc-eng/payflow-api/internal/domain"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(user).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).
		Preload("Assignments").
		First(&user, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).
		First(&user, "LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(user).Error
}

// TouchLastLogin records a successful login without rewriting the row.
func (r *UserRepository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
}

func (r *UserRepository) List(ctx context.Context, page, pageSize int, search string) ([]domain.User, int64, error) {
	page = ClampPage(page)
	pageSize = ClampPageSize(pageSize)

	query := r.db.WithContext(ctx).Model(&domain.User{})
	if search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []domain.User
	err := query.
		Preload("Assignments").
		Order("full_name ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&users).Error

	return users, total, err
}

// ListByRoles returns active users holding any of the given roles. Used by
// notification fan-out; the caller may pass a transaction handle so recipient
// resolution runs inside the same unit of work as the fan-out writes.
func (r *UserRepository) ListByRoles(ctx context.Context, tx *gorm.DB, roles []domain.RoleName) ([]domain.User, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	if tx == nil {
		tx = r.db
	}
	var users []domain.User
	err := tx.WithContext(ctx).
		Where("role IN ? AND is_active = ?", roles, true).
		Find(&users).Error
	return users, err
}

// ListByRolesForProject returns active users holding any of the given roles
// who are linked to the project, either through user_projects or the legacy
// users.project_id column.
func (r *UserRepository) ListByRolesForProject(ctx context.Context, tx *gorm.DB, roles []domain.RoleName, projectID uuid.UUID) ([]domain.User, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	if tx == nil {
		tx = r.db
	}
	var users []domain.User
	err := tx.WithContext(ctx).
		Where("role IN ? AND is_active = ?", roles, true).
		Where("project_id = ? OR EXISTS (SELECT 1 FROM user_projects up WHERE up.user_id = users.id AND up.project_id = ?)",
			projectID, projectID).
		Find(&users).Error
	return users, err
}
