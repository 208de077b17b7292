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

// ErrSupplierNotFound is returned when a supplier is not found
var ErrSupplierNotFound = errors.New("supplier not found")

// ErrDuplicateSupplierName is returned when a supplier with the same name
// (compared case-insensitively) already exists
var ErrDuplicateSupplierName = errors.New("supplier with this name already exists")

// SupplierService handles business logic for suppliers
type SupplierService struct {
	supplierRepo *repository.SupplierRepository
	logger       *zap.Logger
}

// NewSupplierService creates a new supplier service instance
func NewSupplierService(supplierRepo *repository.SupplierRepository, logger *zap.Logger) *SupplierService {
	return &SupplierService{
		supplierRepo: supplierRepo,
		logger:       logger,
	}
}

// Create creates a new supplier with an explicit type
func (s *SupplierService) Create(ctx context.Context, req *domain.CreateSupplierRequest) (*domain.SupplierDTO, error) {
	name := domain.NormalizeSupplierName(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name", ErrInvalidInput)
	}

	existing, err := s.supplierRepo.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check supplier name: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateSupplierName
	}

	supplierType := strings.TrimSpace(req.SupplierType)
	if supplierType == "" {
		supplierType = domain.DefaultSupplierType
	}

	supplier := &domain.Supplier{
		Name:         name,
		SupplierType: supplierType,
	}
	if err := s.supplierRepo.Create(ctx, supplier); err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique constraint") {
			return nil, ErrDuplicateSupplierName
		}
		return nil, fmt.Errorf("failed to create supplier: %w", err)
	}

	s.logger.Info("supplier created",
		zap.String("supplier_id", supplier.ID.String()),
		zap.String("name", supplier.Name))

	dto := mapper.ToSupplierDTO(supplier)
	return &dto, nil
}

// GetOrCreateByName resolves a free-text supplier name from a payment form,
// creating the supplier with the default type when no match exists.
func (s *SupplierService) GetOrCreateByName(ctx context.Context, name string) (*domain.Supplier, error) {
	normalized := domain.NormalizeSupplierName(name)
	if normalized == "" {
		return nil, fmt.Errorf("%w: supplierName", ErrInvalidInput)
	}
	supplier, err := s.supplierRepo.GetOrCreateByName(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve supplier: %w", err)
	}
	return supplier, nil
}

// GetByID retrieves a supplier by ID
func (s *SupplierService) GetByID(ctx context.Context, id uuid.UUID) (*domain.SupplierDTO, error) {
	supplier, err := s.supplierRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSupplierNotFound
		}
		return nil, fmt.Errorf("failed to get supplier: %w", err)
	}
	dto := mapper.ToSupplierDTO(supplier)
	return &dto, nil
}

// List returns a paginated supplier listing
func (s *SupplierService) List(ctx context.Context, page, pageSize int, search string) (*domain.PaginatedResponse, error) {
	suppliers, total, err := s.supplierRepo.List(ctx, page, pageSize, search)
	if err != nil {
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}

	dtos := make([]domain.SupplierDTO, len(suppliers))
	for i := range suppliers {
		dtos[i] = mapper.ToSupplierDTO(&suppliers[i])
	}

	return paginated(dtos, total, page, pageSize), nil
}
