package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ahc-eng/payflow-api/internal/domain"
)

// SupplierRepository handles supplier data access operations
type SupplierRepository struct {
	db *gorm.DB
}

// NewSupplierRepository creates a new supplier repository instance
func NewSupplierRepository(db *gorm.DB) *SupplierRepository {
	return &SupplierRepository{db: db}
}

// Create creates a new supplier in the database
func (r *SupplierRepository) Create(ctx context.Context, supplier *domain.Supplier) error {
	return r.db.WithContext(ctx).Create(supplier).Error
}

// GetByID retrieves a supplier by its ID
func (r *SupplierRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Supplier, error) {
	var supplier domain.Supplier
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&supplier).Error
	if err != nil {
		return nil, err
	}
	return &supplier, nil
}

// GetByName finds a supplier by name, case-insensitively. Returns nil, nil
// when no supplier matches.
func (r *SupplierRepository) GetByName(ctx context.Context, name string) (*domain.Supplier, error) {
	normalized := domain.NormalizeSupplierName(name)
	var supplier domain.Supplier
	err := r.db.WithContext(ctx).
		Where("LOWER(name) = ?", strings.ToLower(normalized)).
		First(&supplier).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &supplier, nil
}

// GetOrCreateByName returns the supplier with the given name, creating it
// with the default type when absent. Matching is case-insensitive on the
// whitespace-normalized name.
func (r *SupplierRepository) GetOrCreateByName(ctx context.Context, name string) (*domain.Supplier, error) {
	existing, err := r.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	supplier := &domain.Supplier{
		Name:         domain.NormalizeSupplierName(name),
		SupplierType: domain.DefaultSupplierType,
	}
	if err := r.db.WithContext(ctx).Create(supplier).Error; err != nil {
		// A concurrent create may have won the unique index race.
		if winner, lookupErr := r.GetByName(ctx, name); lookupErr == nil && winner != nil {
			return winner, nil
		}
		return nil, err
	}
	return supplier, nil
}

// Update updates an existing supplier in the database
func (r *SupplierRepository) Update(ctx context.Context, supplier *domain.Supplier) error {
	return r.db.WithContext(ctx).Save(supplier).Error
}

// List returns a paginated list of suppliers
func (r *SupplierRepository) List(ctx context.Context, page, pageSize int, search string) ([]domain.Supplier, int64, error) {
	page = ClampPage(page)
	pageSize = ClampPageSize(pageSize)

	query := r.db.WithContext(ctx).Model(&domain.Supplier{})
	if search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ?", pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var suppliers []domain.Supplier
	err := query.
		Order("name ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&suppliers).Error

	return suppliers, total, err
}
