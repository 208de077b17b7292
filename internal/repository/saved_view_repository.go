package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ahc-eng/payflow-api/internal/domain"
)

type SavedViewRepository struct {
	db *gorm.DB
}

func NewSavedViewRepository(db *gorm.DB) *SavedViewRepository {
	return &SavedViewRepository{db: db}
}

func (r *SavedViewRepository) Create(ctx context.Context, view *domain.SavedView) error {
	return r.db.WithContext(ctx).Create(view).Error
}

func (r *SavedViewRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SavedView, error) {
	var view domain.SavedView
	err := r.db.WithContext(ctx).First(&view, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (r *SavedViewRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.SavedView, error) {
	var views []domain.SavedView
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("name ASC").
		Find(&views).Error
	return views, err
}

// Delete removes a view only when it belongs to the given user.
func (r *SavedViewRepository) Delete(ctx context.Context, id, userID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.SavedView{})
	return result.RowsAffected, result.Error
}
