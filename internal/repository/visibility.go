package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ahc-eng/payflow-api/internal/domain"
)

// Pagination bounds shared by the listing queries.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// ExportRowCap is the hard ceiling on unpaginated export queries.
	ExportRowCap = 10000
)

// ClampPage normalizes a page number.
func ClampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// ClampPageSize normalizes a page size into [1, MaxPageSize].
func ClampPageSize(pageSize int) int {
	if pageSize < 1 {
		return DefaultPageSize
	}
	if pageSize > MaxPageSize {
		return MaxPageSize
	}
	return pageSize
}

// Visibility captures the requesting principal for row filtering. Role is
// the effective (normalized) role; ScopedProjects is the resolver output and
// only meaningful for scoped roles, where empty means no project access.
type Visibility struct {
	UserID         uuid.UUID
	Role           domain.RoleName
	ScopedProjects []uuid.UUID
}

// ApplyPaymentVisibility adds the role's base predicate to a payment query.
// Every listing, aggregate and export goes through here so the row universe
// is identical across them.
func ApplyPaymentVisibility(query *gorm.DB, v Visibility) *gorm.DB {
	switch v.Role.Normalized() {
	case domain.RoleAdmin, domain.RoleEngineeringManager, domain.RoleFinance,
		domain.RoleChairman, domain.RolePlanning:
		return query

	case domain.RoleProjectManager:
		if len(v.ScopedProjects) == 0 {
			return query.Where("1 = 0")
		}
		return query.Where("payment_requests.project_id IN ?", v.ScopedProjects)

	case domain.RoleEngineer:
		// An engineer with no assignments still sees their own requests.
		if len(v.ScopedProjects) == 0 {
			return query.Where("payment_requests.created_by = ?", v.UserID)
		}
		return query.Where("payment_requests.project_id IN ?", v.ScopedProjects)

	case domain.RoleProcurement:
		if len(v.ScopedProjects) == 0 {
			return query.Where("1 = 0")
		}
		return query.Where("payment_requests.request_type = ? AND payment_requests.project_id IN ?",
			domain.RequestTypeProcurement, v.ScopedProjects)

	case domain.RolePaymentNotifier:
		return query.Where("payment_requests.status IN ?",
			[]domain.PaymentStatus{domain.StatusReadyForPayment, domain.StatusPaid})

	default:
		// dc and anything unrecognized sees nothing.
		return query.Where("1 = 0")
	}
}

// ApplyPurchaseOrderVisibility is the purchase order analogue. Procurement
// sees its scoped projects' orders (all of them, not only its own), scoped
// pm/engineer see their projects, the rest follow the payment rules.
func ApplyPurchaseOrderVisibility(query *gorm.DB, v Visibility) *gorm.DB {
	switch v.Role.Normalized() {
	case domain.RoleAdmin, domain.RoleEngineeringManager, domain.RoleFinance,
		domain.RoleChairman, domain.RolePlanning:
		return query

	case domain.RoleProjectManager, domain.RoleEngineer, domain.RoleProcurement:
		if len(v.ScopedProjects) == 0 {
			return query.Where("1 = 0")
		}
		return query.Where("purchase_orders.project_id IN ?", v.ScopedProjects)

	default:
		return query.Where("1 = 0")
	}
}
