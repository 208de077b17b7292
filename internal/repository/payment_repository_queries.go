package repository

// Listing, inbox and export queries for payment requests. Every query in
// this file funnels through ApplyPaymentVisibility so listings, aggregates
// and exports agree on which rows exist for a given user.

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ahc-eng/payflow-api/internal/domain"
)

// PaymentFilters are the user-selected filters on top of the role's base
// predicate.
type PaymentFilters struct {
	ProjectID   *uuid.UUID
	SupplierID  *uuid.UUID
	Status      *domain.PaymentStatus
	RequestType *domain.RequestType
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	AmountMin   *decimal.Decimal
	AmountMax   *decimal.Decimal
	// Search matches description and supplier name, case-insensitively.
	Search string

	Page     int
	PageSize int
	SortBy   string // created_at | project | supplier
	SortDesc bool
}

// scopedQuery builds the common filtered query.
func (r *PaymentRepository) scopedQuery(ctx context.Context, v Visibility, f PaymentFilters) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&domain.PaymentRequest{})
	query = ApplyPaymentVisibility(query, v)

	if f.ProjectID != nil {
		query = query.Where("payment_requests.project_id = ?", *f.ProjectID)
	}
	if f.SupplierID != nil {
		query = query.Where("payment_requests.supplier_id = ?", *f.SupplierID)
	}
	if f.Status != nil {
		query = query.Where("payment_requests.status = ?", *f.Status)
	}
	if f.RequestType != nil {
		query = query.Where("payment_requests.request_type = ?", *f.RequestType)
	}
	if f.CreatedFrom != nil {
		query = query.Where("payment_requests.created_at >= ?", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		query = query.Where("payment_requests.created_at <= ?", *f.CreatedTo)
	}
	if f.AmountMin != nil {
		query = query.Where("payment_requests.amount >= ?", *f.AmountMin)
	}
	if f.AmountMax != nil {
		query = query.Where("payment_requests.amount <= ?", *f.AmountMax)
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		query = query.
			Joins("LEFT JOIN suppliers AS search_supplier ON search_supplier.id = payment_requests.supplier_id").
			Where("payment_requests.description LIKE ? OR search_supplier.name LIKE ?", pattern, pattern)
	}
	return query
}

// applySort orders by the requested key with an id tiebreak so pagination is
// stable.
func applySort(query *gorm.DB, f PaymentFilters) *gorm.DB {
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}
	switch f.SortBy {
	case "project":
		query = query.
			Joins("LEFT JOIN projects AS sort_project ON sort_project.id = payment_requests.project_id").
			Order("sort_project.project_name " + dir)
	case "supplier":
		query = query.
			Joins("LEFT JOIN suppliers AS sort_supplier ON sort_supplier.id = payment_requests.supplier_id").
			Order("sort_supplier.name " + dir)
	default:
		query = query.Order("payment_requests.created_at " + dir)
	}
	return query.Order("payment_requests.id DESC")
}

// List returns a page of payments inside the user's visibility plus the
// pre-pagination total.
func (r *PaymentRepository) List(ctx context.Context, v Visibility, f PaymentFilters) ([]domain.PaymentRequest, int64, error) {
	f.Page = ClampPage(f.Page)
	f.PageSize = ClampPageSize(f.PageSize)

	query := r.scopedQuery(ctx, v, f)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payments []domain.PaymentRequest
	offset := (f.Page - 1) * f.PageSize
	err := applySort(query, f).
		Preload("Project").
		Preload("Supplier").
		Preload("Creator").
		Offset(offset).
		Limit(f.PageSize).
		Find(&payments).Error

	return payments, total, err
}

// CountVisible returns the filtered row count without fetching.
func (r *PaymentRepository) CountVisible(ctx context.Context, v Visibility, f PaymentFilters) (int64, error) {
	var total int64
	err := r.scopedQuery(ctx, v, f).Count(&total).Error
	return total, err
}

// Export returns all matching rows up to ExportRowCap+1. The caller treats a
// result longer than ExportRowCap as "too large"; the +1 avoids a second
// count query racing the fetch.
func (r *PaymentRepository) Export(ctx context.Context, v Visibility, f PaymentFilters) ([]domain.PaymentRequest, error) {
	var payments []domain.PaymentRequest
	err := applySort(r.scopedQuery(ctx, v, f), f).
		Preload("Project").
		Preload("Supplier").
		Preload("Creator").
		Limit(ExportRowCap + 1).
		Find(&payments).Error
	return payments, err
}

// ListByStatuses returns visible payments in the given statuses, oldest
// update first, for inbox views.
func (r *PaymentRepository) ListByStatuses(ctx context.Context, v Visibility, statuses []domain.PaymentStatus, page, pageSize int) ([]domain.PaymentRequest, int64, error) {
	if len(statuses) == 0 {
		return nil, 0, nil
	}
	page = ClampPage(page)
	pageSize = ClampPageSize(pageSize)

	query := r.db.WithContext(ctx).Model(&domain.PaymentRequest{})
	query = ApplyPaymentVisibility(query, v).
		Where("payment_requests.status IN ?", statuses)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payments []domain.PaymentRequest
	err := query.
		Preload("Project").
		Preload("Supplier").
		Preload("Creator").
		Order("payment_requests.updated_at ASC").
		Order("payment_requests.id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&payments).Error

	return payments, total, err
}

// ListWithTrail returns every visible payment in the given statuses with its
// approval trail preloaded in decision order. No pagination: the
// stage-duration report aggregates over the full set.
func (r *PaymentRepository) ListWithTrail(ctx context.Context, v Visibility, statuses []domain.PaymentStatus) ([]domain.PaymentRequest, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	var payments []domain.PaymentRequest
	query := r.db.WithContext(ctx).Model(&domain.PaymentRequest{})
	err := ApplyPaymentVisibility(query, v).
		Where("payment_requests.status IN ?", statuses).
		Preload("Project").
		Preload("Supplier").
		Preload("Approvals", func(db *gorm.DB) *gorm.DB {
			return db.Order("decided_at ASC")
		}).
		Order("payment_requests.updated_at ASC").
		Order("payment_requests.id DESC").
		Find(&payments).Error
	return payments, err
}

// CountByStatuses counts visible payments in the given statuses.
func (r *PaymentRepository) CountByStatuses(ctx context.Context, v Visibility, statuses []domain.PaymentStatus) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	var total int64
	query := r.db.WithContext(ctx).Model(&domain.PaymentRequest{})
	err := ApplyPaymentVisibility(query, v).
		Where("payment_requests.status IN ?", statuses).
		Count(&total).Error
	return total, err
}

// AgingRow is the lightweight projection the SLA calculator works on.
type AgingRow struct {
	ID        uuid.UUID
	Status    domain.PaymentStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// agingStatuses are the stages with an SLA clock.
var agingStatuses = []domain.PaymentStatus{
	domain.StatusPendingPM,
	domain.StatusPendingEng,
	domain.StatusPendingFinance,
	domain.StatusReadyForPayment,
}

// ListForAging returns the visible in-flight rows the SLA calculator needs.
func (r *PaymentRepository) ListForAging(ctx context.Context, v Visibility) ([]AgingRow, error) {
	var rows []AgingRow
	query := r.db.WithContext(ctx).Model(&domain.PaymentRequest{})
	err := ApplyPaymentVisibility(query, v).
		Where("payment_requests.status IN ?", agingStatuses).
		Select("payment_requests.id, payment_requests.status, payment_requests.created_at, payment_requests.updated_at").
		Find(&rows).Error
	return rows, err
}

// ListAllForAging is the unscoped variant used by the overdue sweep job.
func (r *PaymentRepository) ListAllForAging(ctx context.Context) ([]AgingRow, error) {
	var rows []AgingRow
	err := r.db.WithContext(ctx).Model(&domain.PaymentRequest{}).
		Where("payment_requests.status IN ?", agingStatuses).
		Select("payment_requests.id, payment_requests.status, payment_requests.created_at, payment_requests.updated_at").
		Find(&rows).Error
	return rows, err
}

// ListRecent returns the newest visible payments for the dashboard.
func (r *PaymentRepository) ListRecent(ctx context.Context, v Visibility, limit int) ([]domain.PaymentRequest, error) {
	if limit < 1 || limit > MaxPageSize {
		limit = 10
	}
	var payments []domain.PaymentRequest
	query := r.db.WithContext(ctx).Model(&domain.PaymentRequest{})
	err := ApplyPaymentVisibility(query, v).
		Preload("Project").
		Preload("Supplier").
		Order("payment_requests.created_at DESC").
		Order("payment_requests.id DESC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

// ListStaleDrafts returns drafts idle since before the cutoff, judged by
// submitted_to_pm_at when present and created_at otherwise. Used by the
// purge command.
func (r *PaymentRepository) ListStaleDrafts(ctx context.Context, cutoff time.Time) ([]domain.PaymentRequest, error) {
	var payments []domain.PaymentRequest
	err := r.db.WithContext(ctx).Model(&domain.PaymentRequest{}).
		Preload("Attachments").
		Where("status = ?", domain.StatusDraft).
		Where("COALESCE(submitted_to_pm_at, created_at) < ?", cutoff).
		Find(&payments).Error
	return payments, err
}
