package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ahc-eng/payflow-api/internal/domain"
)

type PurchaseOrderRepository struct {
	db *gorm.DB
}

func NewPurchaseOrderRepository(db *gorm.DB) *PurchaseOrderRepository {
	return &PurchaseOrderRepository{db: db}
}

// DB exposes the underlying handle for transaction scoping.
func (r *PurchaseOrderRepository) DB() *gorm.DB {
	return r.db
}

func (r *PurchaseOrderRepository) Create(ctx context.Context, po *domain.PurchaseOrder) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(po).Error
}

func (r *PurchaseOrderRepository) Save(ctx context.Context, po *domain.PurchaseOrder) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(po).Error
}

func (r *PurchaseOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PurchaseOrder, error) {
	var po domain.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Project").
		Preload("Supplier").
		Preload("CreatedBy").
		Preload("Decisions", func(db *gorm.DB) *gorm.DB {
			return db.Order("decided_at ASC").Preload("DecidedBy")
		}).
		First(&po, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &po, nil
}

// GetByIDForUpdate loads a purchase order inside tx with a row lock.
func (r *PurchaseOrderRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.PurchaseOrder, error) {
	var po domain.PurchaseOrder
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&po, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &po, nil
}

// GetByBONumber matches the BO number case-insensitively.
func (r *PurchaseOrderRepository) GetByBONumber(ctx context.Context, boNumber string) (*domain.PurchaseOrder, error) {
	var po domain.PurchaseOrder
	err := r.db.WithContext(ctx).
		Where("LOWER(bo_number) = ?", strings.ToLower(strings.TrimSpace(boNumber))).
		First(&po).Error
	if err != nil {
		return nil, err
	}
	return &po, nil
}

// PurchaseOrderFilters are the user filters for PO listings.
type PurchaseOrderFilters struct {
	ProjectID  *uuid.UUID
	SupplierID *uuid.UUID
	Status     *domain.PurchaseOrderStatus
	Search     string

	Page     int
	PageSize int
}

// List returns a page of purchase orders inside the user's visibility.
func (r *PurchaseOrderRepository) List(ctx context.Context, v Visibility, f PurchaseOrderFilters) ([]domain.PurchaseOrder, int64, error) {
	f.Page = ClampPage(f.Page)
	f.PageSize = ClampPageSize(f.PageSize)

	query := r.db.WithContext(ctx).Model(&domain.PurchaseOrder{})
	query = ApplyPurchaseOrderVisibility(query, v)

	if f.ProjectID != nil {
		query = query.Where("purchase_orders.project_id = ?", *f.ProjectID)
	}
	if f.SupplierID != nil {
		query = query.Where("purchase_orders.supplier_id = ?", *f.SupplierID)
	}
	if f.Status != nil {
		query = query.Where("purchase_orders.status = ?", *f.Status)
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		query = query.Where("purchase_orders.bo_number LIKE ? OR purchase_orders.supplier_name LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []domain.PurchaseOrder
	err := query.
		Preload("Project").
		Preload("Supplier").
		Preload("CreatedBy").
		Order("purchase_orders.created_at DESC").
		Order("purchase_orders.id DESC").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&orders).Error

	return orders, total, err
}

// CreateDecision appends an audit row, usually inside the transition tx.
func (r *PurchaseOrderRepository) CreateDecision(ctx context.Context, tx *gorm.DB, decision *domain.PurchaseOrderDecision) error {
	return tx.WithContext(ctx).Omit(clause.Associations).Create(decision).Error
}

// Delete removes a purchase order and its decision log. Only draft orders
// with no linked payments should reach here; the service enforces that.
func (r *PurchaseOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("purchase_order_id = ?", id).Delete(&domain.PurchaseOrderDecision{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.PurchaseOrder{}, "id = ?", id).Error
	})
}

// CountLinkedPayments counts payment requests drawing on this order.
func (r *PurchaseOrderRepository) CountLinkedPayments(ctx context.Context, id uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.PaymentRequest{}).
		Where("purchase_order_id = ?", id).
		Count(&count).Error
	return count, err
}
