package repository

// KPI aggregates for dashboards and listing headers. All aggregates run over
// the same visibility predicate as the listings, pre-pagination.

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ahc-eng/payflow-api/internal/domain"
)

// AmountTotals is the KPI header: sums over the filtered, visible rows.
type AmountTotals struct {
	TotalAmount    decimal.Decimal
	PaidAmount     decimal.Decimal
	PendingAmount  decimal.Decimal
	RejectedAmount decimal.Decimal
}

var pendingStatuses = []domain.PaymentStatus{
	domain.StatusPendingPM,
	domain.StatusPendingEng,
	domain.StatusPendingFinance,
	domain.StatusReadyForPayment,
}

// StatusCounts groups the visible, filtered rows by status.
func (r *PaymentRepository) StatusCounts(ctx context.Context, v Visibility, f PaymentFilters) ([]domain.StatusCountDTO, error) {
	var rows []domain.StatusCountDTO
	err := r.scopedQuery(ctx, v, f).
		Select("payment_requests.status AS status, COUNT(*) AS count").
		Group("payment_requests.status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	// Emit every declared status so clients need no zero-fill logic.
	byStatus := make(map[domain.PaymentStatus]int64, len(rows))
	for _, row := range rows {
		byStatus[row.Status] = row.Count
	}
	out := make([]domain.StatusCountDTO, 0, len(domain.AllPaymentStatuses))
	for _, status := range domain.AllPaymentStatuses {
		out = append(out, domain.StatusCountDTO{Status: status, Count: byStatus[status]})
	}
	return out, nil
}

// Totals computes the KPI amount sums in one pass. Paid rows count at the
// finance amount when one was recorded, the requested amount otherwise.
func (r *PaymentRepository) Totals(ctx context.Context, v Visibility, f PaymentFilters) (AmountTotals, error) {
	var totals AmountTotals
	err := r.scopedQuery(ctx, v, f).
		Select(`COALESCE(SUM(payment_requests.amount), 0) AS total_amount,
			COALESCE(SUM(CASE WHEN payment_requests.status = ? THEN COALESCE(payment_requests.finance_amount, payment_requests.amount) ELSE 0 END), 0) AS paid_amount,
			COALESCE(SUM(CASE WHEN payment_requests.status IN ? THEN payment_requests.amount ELSE 0 END), 0) AS pending_amount,
			COALESCE(SUM(CASE WHEN payment_requests.status = ? THEN payment_requests.amount ELSE 0 END), 0) AS rejected_amount`,
			domain.StatusPaid, pendingStatuses, domain.StatusRejected).
		Scan(&totals).Error
	return totals, err
}

// SupplierPaidTotal is one supplier's settled volume in the period, used to
// reconcile against the accounting ledger.
type SupplierPaidTotal struct {
	SupplierID   uuid.UUID
	SupplierName string
	PaidCount    int64
	PaidAmount   decimal.Decimal
}

// SupplierPaidTotals sums settled payments per supplier in [from, to). Paid
// rows count at the finance amount when one was recorded, the requested
// amount otherwise, matching what finance actually disbursed.
func (r *PaymentRepository) SupplierPaidTotals(ctx context.Context, from, to time.Time) ([]SupplierPaidTotal, error) {
	var rows []SupplierPaidTotal
	err := r.db.WithContext(ctx).Model(&domain.PaymentRequest{}).
		Joins("JOIN suppliers ON suppliers.id = payment_requests.supplier_id").
		Where("payment_requests.status = ?", domain.StatusPaid).
		Where("payment_requests.updated_at >= ? AND payment_requests.updated_at < ?", from, to).
		Select(`payment_requests.supplier_id AS supplier_id,
			suppliers.name AS supplier_name,
			COUNT(*) AS paid_count,
			COALESCE(SUM(COALESCE(payment_requests.finance_amount, payment_requests.amount)), 0) AS paid_amount`).
		Group("payment_requests.supplier_id, suppliers.name").
		Order("paid_amount DESC").
		Scan(&rows).Error
	return rows, err
}

// ProjectTotals aggregates per project within the visible rows.
func (r *PaymentRepository) ProjectTotals(ctx context.Context, v Visibility) ([]domain.ProjectTotalDTO, error) {
	query := r.db.WithContext(ctx).Model(&domain.PaymentRequest{})
	query = ApplyPaymentVisibility(query, v)

	var rows []domain.ProjectTotalDTO
	err := query.
		Joins("JOIN projects ON projects.id = payment_requests.project_id").
		Select(`payment_requests.project_id AS project_id,
			projects.project_name AS project_name,
			COUNT(*) AS request_count,
			COALESCE(SUM(payment_requests.amount), 0) AS total_amount,
			COALESCE(SUM(CASE WHEN payment_requests.status = ? THEN COALESCE(payment_requests.finance_amount, payment_requests.amount) ELSE 0 END), 0) AS paid_amount,
			COALESCE(SUM(CASE WHEN payment_requests.status IN ? THEN payment_requests.amount ELSE 0 END), 0) AS pending_amount`,
			domain.StatusPaid, pendingStatuses).
		Group("payment_requests.project_id, projects.project_name").
		Order("total_amount DESC").
		Scan(&rows).Error
	return rows, err
}
