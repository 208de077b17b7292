package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/auth"
	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/mapper"
	"github.com/ahc-eng/payflow-api/internal/repository"
)

// ErrSavedViewNotFound is returned when a saved view is not found
var ErrSavedViewNotFound = errors.New("saved view not found")

// SavedViewService manages per-user listing bookmarks
type SavedViewService struct {
	viewRepo *repository.SavedViewRepository
	logger   *zap.Logger
}

// NewSavedViewService creates a new saved view service instance
func NewSavedViewService(viewRepo *repository.SavedViewRepository, logger *zap.Logger) *SavedViewService {
	return &SavedViewService{viewRepo: viewRepo, logger: logger}
}

// Create stores a view for the current user
func (s *SavedViewService) Create(ctx context.Context, req *domain.CreateSavedViewRequest) (*domain.SavedViewDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	view := &domain.SavedView{
		ID:          uuid.New(),
		UserID:      userCtx.UserID,
		Name:        strings.TrimSpace(req.Name),
		Endpoint:    strings.TrimSpace(req.Endpoint),
		QueryString: strings.TrimPrefix(strings.TrimSpace(req.QueryString), "?"),
	}
	if view.Name == "" || view.Endpoint == "" {
		return nil, fmt.Errorf("%w: name and endpoint are required", ErrInvalidInput)
	}

	if err := s.viewRepo.Create(ctx, view); err != nil {
		return nil, fmt.Errorf("failed to create saved view: %w", err)
	}

	dto := mapper.ToSavedViewDTO(view)
	return &dto, nil
}

// List returns the current user's saved views
func (s *SavedViewService) List(ctx context.Context) ([]domain.SavedViewDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	views, err := s.viewRepo.ListByUser(ctx, userCtx.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved views: %w", err)
	}

	dtos := make([]domain.SavedViewDTO, len(views))
	for i := range views {
		dtos[i] = mapper.ToSavedViewDTO(&views[i])
	}
	return dtos, nil
}

// Delete removes one of the current user's views
func (s *SavedViewService) Delete(ctx context.Context, id uuid.UUID) error {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return ErrUserContextRequired
	}

	affected, err := s.viewRepo.Delete(ctx, id, userCtx.UserID)
	if err != nil {
		return fmt.Errorf("failed to delete saved view: %w", err)
	}
	if affected == 0 {
		return ErrSavedViewNotFound
	}
	return nil
}
