package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ahc-eng/payflow-api/internal/domain"
)

// AssignmentRepository handles database operations for project assignments
type AssignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// ListForUser returns every project assignment of the given user
func (r *AssignmentRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.ProjectAssignment, error) {
	var assignments []domain.ProjectAssignment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, fmt.Errorf("list assignments for user: %w", err)
	}
	return assignments, nil
}

// ReplaceForUser swaps the user's assignment set inside one transaction.
// Role-specific rows are left untouched when role is nil; passing a role
// replaces only the rows carrying that role.
func (r *AssignmentRepository) ReplaceForUser(ctx context.Context, userID uuid.UUID, role *domain.RoleName, projectIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scope := tx.Where("user_id = ?", userID)
		if role != nil {
			scope = scope.Where("role = ?", *role)
		} else {
			scope = scope.Where("role IS NULL")
		}
		if err := scope.Delete(&domain.ProjectAssignment{}).Error; err != nil {
			return fmt.Errorf("clear assignments: %w", err)
		}

		if len(projectIDs) == 0 {
			return nil
		}

		rows := make([]domain.ProjectAssignment, 0, len(projectIDs))
		seen := make(map[uuid.UUID]bool, len(projectIDs))
		for _, projectID := range projectIDs {
			if seen[projectID] {
				continue
			}
			seen[projectID] = true
			rows = append(rows, domain.ProjectAssignment{
				ID:        uuid.New(),
				UserID:    userID,
				ProjectID: projectID,
				Role:      role,
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("create assignments: %w", err)
		}
		return nil
	})
}

// CountForProject returns how many users are assigned to a project
func (r *AssignmentRepository) CountForProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.ProjectAssignment{}).
		Where("project_id = ?", projectID).
		Count(&count).Error
	return count, err
}
