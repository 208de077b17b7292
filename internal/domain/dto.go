package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DTOs for API responses. Timestamps are ISO 8601 strings; monetary amounts
// serialize as decimal strings.

type UserDTO struct {
	ID          uuid.UUID        `json:"id"`
	FullName    string           `json:"fullName"`
	Email       string           `json:"email"`
	Role        RoleName         `json:"role"`
	ProjectID   *uuid.UUID       `json:"projectId,omitempty"`
	ProjectName string           `json:"projectName,omitempty"`
	Projects    []UserProjectDTO `json:"projects,omitempty"`
	IsActive    bool             `json:"isActive"`
	LastLoginAt *string          `json:"lastLoginAt,omitempty"`
	CreatedAt   string           `json:"createdAt"` // ISO 8601
}

// UserProjectDTO is one row of a user's project assignments.
type UserProjectDTO struct {
	ProjectID   uuid.UUID `json:"projectId"`
	ProjectName string    `json:"projectName"`
	Role        *RoleName `json:"role,omitempty"`
}

type ProjectDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code,omitempty"`
	CreatedAt string    `json:"createdAt"`
}

type SupplierDTO struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	SupplierType string    `json:"supplierType"`
	CreatedAt    string    `json:"createdAt"`
}

// SLAInfoDTO describes how long a payment has sat in its current stage.
type SLAInfoDTO struct {
	Status      PaymentStatus `json:"status"`
	EnteredAt   string        `json:"enteredAt"`
	LimitDays   int           `json:"limitDays"`
	AgeDays     float64       `json:"ageDays"`
	IsOverdue   bool          `json:"isOverdue"`
	DaysOverdue int           `json:"daysOverdue"`
}

type PaymentRequestDTO struct {
	ID          uuid.UUID   `json:"id"`
	ProjectID   uuid.UUID   `json:"projectId"`
	ProjectName string      `json:"projectName,omitempty"`
	SupplierID  uuid.UUID   `json:"supplierId"`
	Supplier    string      `json:"supplier,omitempty"`
	RequestType RequestType `json:"requestType"`

	Amount             decimal.Decimal  `json:"amount"`
	FinanceAmount      *decimal.Decimal `json:"financeAmount,omitempty"`
	FinanceEffective   *decimal.Decimal `json:"financeEffectiveAmount,omitempty"`
	FinanceDiff        *decimal.Decimal `json:"financeDiff,omitempty"`
	ProgressPercentage *float64         `json:"progressPercentage,omitempty"`
	Description        string           `json:"description,omitempty"`

	Status PaymentStatus `json:"status"`
	SLA    *SLAInfoDTO   `json:"sla,omitempty"`

	PurchaseOrderID *uuid.UUID `json:"purchaseOrderId,omitempty"`
	BONumber        string     `json:"boNumber,omitempty"`

	CreatedBy       *uuid.UUID `json:"createdBy,omitempty"`
	CreatedByName   string     `json:"createdByName,omitempty"`
	SubmittedToPMAt *string    `json:"submittedToPmAt,omitempty"`
	CreatedAt       string     `json:"createdAt"`
	UpdatedAt       string     `json:"updatedAt"`

	Approvals         []PaymentApprovalDTO         `json:"approvals,omitempty"`
	Attachments       []PaymentAttachmentDTO       `json:"attachments,omitempty"`
	NotificationNotes []PaymentNotificationNoteDTO `json:"notificationNotes,omitempty"`
	Adjustments       []FinanceAdjustmentDTO       `json:"adjustments,omitempty"`

	// AllowedActions lists the workflow actions the requesting user may take
	// on this payment in its current status.
	AllowedActions []string `json:"allowedActions,omitempty"`
}

type PaymentApprovalDTO struct {
	ID            uuid.UUID      `json:"id"`
	Step          ApprovalStep   `json:"step"`
	Action        ApprovalAction `json:"action"`
	OldStatus     *PaymentStatus `json:"oldStatus,omitempty"`
	NewStatus     PaymentStatus  `json:"newStatus"`
	Comment       string         `json:"comment,omitempty"`
	DecidedByID   *uuid.UUID     `json:"decidedById,omitempty"`
	DecidedByName string         `json:"decidedByName,omitempty"`
	DecidedAt     string         `json:"decidedAt"`
}

type PaymentAttachmentDTO struct {
	ID               uuid.UUID  `json:"id"`
	OriginalFilename string     `json:"originalFilename"`
	MimeType         string     `json:"mimeType,omitempty"`
	Size             int64      `json:"size"`
	UploadedByID     *uuid.UUID `json:"uploadedById,omitempty"`
	UploadedByName   string     `json:"uploadedByName,omitempty"`
	UploadedAt       string     `json:"uploadedAt"`
}

type PaymentNotificationNoteDTO struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	UserName  string    `json:"userName,omitempty"`
	Note      string    `json:"note"`
	CreatedAt string    `json:"createdAt"`
}

type FinanceAdjustmentDTO struct {
	ID            uuid.UUID       `json:"id"`
	DeltaAmount   decimal.Decimal `json:"deltaAmount"`
	Reason        string          `json:"reason"`
	Notes         string          `json:"notes,omitempty"`
	CreatedByID   uuid.UUID       `json:"createdById"`
	CreatedByName string          `json:"createdByName,omitempty"`
	CreatedAt     string          `json:"createdAt"`
	IsVoid        bool            `json:"isVoid"`
	VoidedByID    *uuid.UUID      `json:"voidedById,omitempty"`
	VoidedByName  string          `json:"voidedByName,omitempty"`
	VoidedAt      *string         `json:"voidedAt,omitempty"`
	VoidReason    string          `json:"voidReason,omitempty"`
}

type PurchaseOrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	BONumber        string              `json:"boNumber"`
	ProjectID       uuid.UUID           `json:"projectId"`
	ProjectName     string              `json:"projectName,omitempty"`
	SupplierID      uuid.UUID           `json:"supplierId"`
	SupplierName    string              `json:"supplierName"`
	TotalAmount     decimal.Decimal     `json:"totalAmount"`
	AdvanceAmount   decimal.Decimal     `json:"advanceAmount"`
	ReservedAmount  decimal.Decimal     `json:"reservedAmount"`
	PaidAmount      decimal.Decimal     `json:"paidAmount"`
	RemainingAmount decimal.Decimal     `json:"remainingAmount"`
	Status          PurchaseOrderStatus `json:"status"`
	CreatedByID     uuid.UUID           `json:"createdById"`
	CreatedByName   string              `json:"createdByName,omitempty"`
	CreatedAt       string              `json:"createdAt"`
	UpdatedAt       string              `json:"updatedAt"`

	Decisions      []PurchaseOrderDecisionDTO `json:"decisions,omitempty"`
	AllowedActions []string                   `json:"allowedActions,omitempty"`
}

type PurchaseOrderDecisionDTO struct {
	ID            uuid.UUID           `json:"id"`
	Action        string              `json:"action"`
	FromStatus    PurchaseOrderStatus `json:"fromStatus"`
	ToStatus      PurchaseOrderStatus `json:"toStatus"`
	Comment       string              `json:"comment,omitempty"`
	DecidedByID   uuid.UUID           `json:"decidedById"`
	DecidedByName string              `json:"decidedByName,omitempty"`
	DecidedAt     string              `json:"decidedAt"`
}

type NotificationDTO struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	URL       string    `json:"url,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt string    `json:"createdAt"` // ISO 8601
}

// UnreadCountDTO represents the count of unread notifications
type UnreadCountDTO struct {
	Count int `json:"count"`
}

type SavedViewDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Endpoint    string    `json:"endpoint"`
	QueryString string    `json:"queryString,omitempty"`
	CreatedAt   string    `json:"createdAt"`
}

// Dashboard DTOs

// ChipCountsDTO drives the navbar badge counts. Values are computed per
// requesting user and cached briefly server-side.
type ChipCountsDTO struct {
	ActionRequired int `json:"actionRequired"`
	Overdue        int `json:"overdue"`
	UnreadNotices  int `json:"unreadNotices"`
}

// StatusCountDTO is one slice of the status breakdown.
type StatusCountDTO struct {
	Status PaymentStatus `json:"status"`
	Count  int64         `json:"count"`
}

// ProjectTotalDTO aggregates payment value per project.
type ProjectTotalDTO struct {
	ProjectID     uuid.UUID       `json:"projectId"`
	ProjectName   string          `json:"projectName"`
	RequestCount  int64           `json:"requestCount"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	PaidAmount    decimal.Decimal `json:"paidAmount"`
	PendingAmount decimal.Decimal `json:"pendingAmount"`
}

// DashboardMetrics contains the KPI header and breakdowns. All values are
// computed inside the requesting user's visibility scope.
type DashboardMetrics struct {
	TotalRequests  int64           `json:"totalRequests"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	PaidAmount     decimal.Decimal `json:"paidAmount"`
	PendingAmount  decimal.Decimal `json:"pendingAmount"`
	RejectedAmount decimal.Decimal `json:"rejectedAmount"`
	OverdueCount   int64           `json:"overdueCount"`

	StatusBreakdown []StatusCountDTO  `json:"statusBreakdown"`
	ProjectTotals   []ProjectTotalDTO `json:"projectTotals"`

	RecentPayments []PaymentRequestDTO `json:"recentPayments"`
}

// StageDurationDTO is one payment's dwell time in one stage, for the
// stage-duration report.
type StageDurationDTO struct {
	PaymentID   uuid.UUID     `json:"paymentId"`
	ProjectName string        `json:"projectName"`
	Supplier    string        `json:"supplier"`
	Status      PaymentStatus `json:"status"`
	EnteredAt   string        `json:"enteredAt"`
	AgeDays     float64       `json:"ageDays"`
	LimitDays   int           `json:"limitDays"`
	DaysOverdue int           `json:"daysOverdue"`
}

// StageAverageDTO is the average time payments spent in one stage, derived
// from the approval trail.
type StageAverageDTO struct {
	Status      PaymentStatus `json:"status"`
	Samples     int           `json:"samples"`
	AverageDays float64       `json:"averageDays"`
}

// StageOverdueDTO counts overdue payments sitting in one stage.
type StageOverdueDTO struct {
	Status  PaymentStatus `json:"status"`
	Overdue int           `json:"overdue"`
}

// StageDurationReportDTO combines the per-payment dwell rows with the
// trail-derived stage averages and the overdue breakdown.
type StageDurationReportDTO struct {
	Rows           []StageDurationDTO `json:"rows"`
	StageAverages  []StageAverageDTO  `json:"stageAverages"`
	OverdueByStage []StageOverdueDTO  `json:"overdueByStage"`
	WorstStage     PaymentStatus      `json:"worstStage,omitempty"`
}

// ReconciliationLineDTO compares one supplier's settled volume in this system
// against what the accounting ledger has booked for the same period.
type ReconciliationLineDTO struct {
	SupplierID   *uuid.UUID      `json:"supplierId,omitempty"`
	SupplierName string          `json:"supplierName"`
	SystemCount  int64           `json:"systemCount"`
	SystemAmount decimal.Decimal `json:"systemAmount"`
	LedgerCount  int64           `json:"ledgerCount"`
	LedgerAmount decimal.Decimal `json:"ledgerAmount"`
	// Difference is ledger minus system; zero means the supplier reconciles.
	Difference decimal.Decimal `json:"difference"`
	Matched    bool            `json:"matched"`
}

// ReconciliationReportDTO is the finance reconciliation report for a period.
type ReconciliationReportDTO struct {
	From            string                  `json:"from"`
	To              string                  `json:"to"`
	GeneratedAt     string                  `json:"generatedAt"`
	Lines           []ReconciliationLineDTO `json:"lines"`
	MatchedCount    int                     `json:"matchedCount"`
	MismatchedCount int                     `json:"mismatchedCount"`
}

// Pagination response wrapper
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// API Response wrapper
type APIResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// Request DTOs

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string  `json:"token"`
	ExpiresAt string  `json:"expiresAt"`
	User      UserDTO `json:"user"`
}

type CreateUserRequest struct {
	FullName   string      `json:"fullName" validate:"required,max=150"`
	Email      string      `json:"email" validate:"required,email,max=120"`
	Password   string      `json:"password" validate:"required,min=8"`
	Role       RoleName    `json:"role" validate:"required"`
	ProjectIDs []uuid.UUID `json:"projectIds,omitempty"`
}

type UpdateUserRequest struct {
	FullName   string      `json:"fullName" validate:"required,max=150"`
	Email      string      `json:"email" validate:"required,email,max=120"`
	Password   string      `json:"password,omitempty" validate:"omitempty,min=8"`
	Role       RoleName    `json:"role" validate:"required"`
	ProjectIDs []uuid.UUID `json:"projectIds,omitempty"`
	IsActive   *bool       `json:"isActive,omitempty"`
}

type CreateProjectRequest struct {
	Name string `json:"name" validate:"required,max=200"`
	Code string `json:"code,omitempty" validate:"max=50"`
}

type UpdateProjectRequest struct {
	Name string `json:"name" validate:"required,max=200"`
	Code string `json:"code,omitempty" validate:"max=50"`
}

type CreateSupplierRequest struct {
	Name         string `json:"name" validate:"required,max=200"`
	SupplierType string `json:"supplierType,omitempty" validate:"max=50"`
}

type CreatePaymentRequest struct {
	ProjectID uuid.UUID `json:"projectId" validate:"required"`
	// SupplierName is matched case-insensitively against existing suppliers;
	// an unknown name creates one.
	SupplierName       string          `json:"supplierName" validate:"required,max=200"`
	RequestType        RequestType     `json:"requestType" validate:"required"`
	Amount             decimal.Decimal `json:"amount" validate:"required"`
	Description        string          `json:"description,omitempty" validate:"max=2000"`
	ProgressPercentage *float64        `json:"progressPercentage,omitempty" validate:"omitempty,gte=0,lte=100"`
	PurchaseOrderID    *uuid.UUID      `json:"purchaseOrderId,omitempty"`
	// SubmitNow skips the draft stage and submits straight to the PM queue.
	SubmitNow bool `json:"submitNow,omitempty"`
}

type UpdatePaymentRequest struct {
	SupplierName       string          `json:"supplierName" validate:"required,max=200"`
	RequestType        RequestType     `json:"requestType" validate:"required"`
	Amount             decimal.Decimal `json:"amount" validate:"required"`
	Description        string          `json:"description,omitempty" validate:"max=2000"`
	ProgressPercentage *float64        `json:"progressPercentage,omitempty" validate:"omitempty,gte=0,lte=100"`
	PurchaseOrderID    *uuid.UUID      `json:"purchaseOrderId,omitempty"`
}

// PaymentTransitionRequest asks to move a payment to an explicit target
// status. The server validates the move against the transition table.
type PaymentTransitionRequest struct {
	To      PaymentStatus `json:"to" validate:"required"`
	Comment string        `json:"comment,omitempty" validate:"max=2000"`
	// FinanceAmount is honored only on the finance approval step.
	FinanceAmount *decimal.Decimal `json:"financeAmount,omitempty"`
}

// PaymentDecisionRequest carries an approve/reject/mark-paid verdict.
type PaymentDecisionRequest struct {
	Comment string `json:"comment,omitempty" validate:"max=2000"`
	// FinanceAmount is honored only on the finance approval step.
	FinanceAmount *decimal.Decimal `json:"financeAmount,omitempty"`
}

type CreateFinanceAdjustmentRequest struct {
	DeltaAmount decimal.Decimal `json:"deltaAmount" validate:"required"`
	Reason      string          `json:"reason" validate:"required,max=255"`
	Notes       string          `json:"notes,omitempty" validate:"max=2000"`
}

type VoidFinanceAdjustmentRequest struct {
	Reason string `json:"reason" validate:"required,max=255"`
}

type CreateNotificationNoteRequest struct {
	Note string `json:"note" validate:"required,max=2000"`
}

type CreatePurchaseOrderRequest struct {
	BONumber      string          `json:"boNumber" validate:"required,max=50"`
	ProjectID     uuid.UUID       `json:"projectId" validate:"required"`
	SupplierName  string          `json:"supplierName" validate:"required,max=200"`
	TotalAmount   decimal.Decimal `json:"totalAmount" validate:"required"`
	AdvanceAmount decimal.Decimal `json:"advanceAmount,omitempty"`
}

type UpdatePurchaseOrderRequest struct {
	BONumber      string          `json:"boNumber" validate:"required,max=50"`
	SupplierName  string          `json:"supplierName" validate:"required,max=200"`
	TotalAmount   decimal.Decimal `json:"totalAmount" validate:"required"`
	AdvanceAmount decimal.Decimal `json:"advanceAmount,omitempty"`
}

// PurchaseOrderDecisionRequest carries an approve/reject verdict.
// PurchaseOrderTransitionRequest asks to move a purchase order to an
// explicit target status.
type PurchaseOrderTransitionRequest struct {
	To      PurchaseOrderStatus `json:"to" validate:"required"`
	Comment string              `json:"comment,omitempty" validate:"max=2000"`
}

type PurchaseOrderDecisionRequest struct {
	Comment string `json:"comment,omitempty" validate:"max=2000"`
}

type CreateSavedViewRequest struct {
	Name        string `json:"name" validate:"required,max=150"`
	Endpoint    string `json:"endpoint" validate:"required,max=255"`
	QueryString string `json:"queryString,omitempty" validate:"max=2000"`
}
