package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate assigns the primary key when the caller left it unset. The
// migrations carry a gen_random_uuid() column default, but sqlite has no
// such function, so ids are generated in Go.
func (b *BaseModel) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// RoleName identifies a user's primary role. Role name is the sole
// authorization key; there are no finer-grained permission objects.
type RoleName string

const (
	RoleAdmin              RoleName = "admin"
	RoleEngineeringManager RoleName = "engineering_manager"
	RolePlanning           RoleName = "planning"
	RoleProjectManager     RoleName = "project_manager"
	RoleProjectEngineer    RoleName = "project_engineer"
	RoleEngineer           RoleName = "engineer"
	RoleFinance            RoleName = "finance"
	RoleChairman           RoleName = "chairman"
	RoleDC                 RoleName = "dc"
	RolePaymentNotifier    RoleName = "payment_notifier"
	RoleProcurement        RoleName = "procurement"
)

// AllRoles lists every role the system seeds, in display order.
var AllRoles = []RoleName{
	RoleAdmin,
	RoleEngineeringManager,
	RolePlanning,
	RoleProjectManager,
	RoleProjectEngineer,
	RoleEngineer,
	RoleFinance,
	RoleChairman,
	RoleDC,
	RolePaymentNotifier,
	RoleProcurement,
}

// IsValid checks if the RoleName is a valid enum value
func (r RoleName) IsValid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// Normalized returns the role used for permission evaluation.
// project_engineer is a historical alias for engineer.
func (r RoleName) Normalized() RoleName {
	if r == RoleProjectEngineer {
		return RoleEngineer
	}
	return r
}

// PaymentStatus represents the workflow status of a payment request
type PaymentStatus string

const (
	StatusDraft           PaymentStatus = "draft"
	StatusPendingPM       PaymentStatus = "pending_pm"
	StatusPendingEng      PaymentStatus = "pending_eng"
	StatusPendingFinance  PaymentStatus = "pending_finance"
	StatusReadyForPayment PaymentStatus = "ready_for_payment"
	StatusPaid            PaymentStatus = "paid"
	StatusRejected        PaymentStatus = "rejected"
)

// AllPaymentStatuses lists the workflow states in chain order, terminal
// states last.
var AllPaymentStatuses = []PaymentStatus{
	StatusDraft,
	StatusPendingPM,
	StatusPendingEng,
	StatusPendingFinance,
	StatusReadyForPayment,
	StatusPaid,
	StatusRejected,
}

// IsValid checks if the PaymentStatus is a valid enum value
func (s PaymentStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusPendingPM, StatusPendingEng, StatusPendingFinance,
		StatusReadyForPayment, StatusPaid, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition may leave this status.
func (s PaymentStatus) IsTerminal() bool {
	return s == StatusPaid || s == StatusRejected
}

// RequestType classifies what a payment request pays for
type RequestType string

const (
	RequestTypeContractor RequestType = "contractor"
	// RequestTypeProcurement is the distinguished type whose requests draw
	// against a purchase order.
	RequestTypeProcurement RequestType = "procurement"
	RequestTypePettyCash   RequestType = "petty_cash"
)

// IsValid checks if the RequestType is a valid enum value
func (t RequestType) IsValid() bool {
	switch t {
	case RequestTypeContractor, RequestTypeProcurement, RequestTypePettyCash:
		return true
	}
	return false
}

// User represents a user in the system
type User struct {
	BaseModel
	FullName     string   `gorm:"type:varchar(150);not null;column:full_name"`
	Email        string   `gorm:"type:varchar(120);not null;unique"`
	PasswordHash string   `gorm:"type:varchar(255);not null;column:password_hash"`
	Role         RoleName `gorm:"type:varchar(50);not null;index"`
	// ProjectID is the legacy single-project assignment; the user_projects
	// relation supersedes it but old rows still rely on this column.
	ProjectID   *uuid.UUID          `gorm:"type:uuid;column:project_id"`
	Project     *Project            `gorm:"foreignKey:ProjectID"`
	Assignments []ProjectAssignment `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	IsActive    bool                `gorm:"not null;default:true;column:is_active"`
	LastLoginAt *time.Time          `gorm:"column:last_login_at"`
}

// EffectiveRole returns the role used for permission evaluation.
func (u *User) EffectiveRole() RoleName {
	return u.Role.Normalized()
}

// SetPassword hashes and stores the given password
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword verifies a password against the stored hash
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// Project represents a construction project payments are booked against
type Project struct {
	BaseModel
	Name string `gorm:"type:varchar(200);not null;index;column:project_name"`
	Code string `gorm:"type:varchar(50);unique"`
}

// ProjectAssignment pairs a user with a project in the user_projects
// relation. Role is the scoped role the assignment was granted under; it is
// nullable because rows written before the column existed carry no role.
type ProjectAssignment struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index;column:user_id"`
	User      *User     `gorm:"foreignKey:UserID"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index;column:project_id"`
	Project   *Project  `gorm:"foreignKey:ProjectID"`
	Role      *RoleName `gorm:"type:varchar(50)"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName overrides the default table name to match the migration
func (ProjectAssignment) TableName() string {
	return "user_projects"
}

// DefaultSupplierType is assigned when a supplier is auto-created from a
// free-text name on a payment form.
const DefaultSupplierType = "unspecified"

// Supplier represents a contractor or materials vendor
type Supplier struct {
	BaseModel
	// Name is unique case-insensitively (enforced by a lower(name) unique
	// index in the migration).
	Name         string `gorm:"type:varchar(200);not null"`
	SupplierType string `gorm:"type:varchar(50);not null;column:supplier_type"`
}

// NormalizeSupplierName collapses internal whitespace before case-insensitive
// matching.
func NormalizeSupplierName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// PaymentRequest is the central entity: one payment working its way through
// the approval chain.
type PaymentRequest struct {
	BaseModel
	ProjectID  uuid.UUID `gorm:"type:uuid;not null;index;column:project_id"`
	Project    *Project  `gorm:"foreignKey:ProjectID"`
	SupplierID uuid.UUID `gorm:"type:uuid;not null;index;column:supplier_id"`
	Supplier   *Supplier `gorm:"foreignKey:SupplierID"`

	PurchaseOrderID             *uuid.UUID       `gorm:"type:uuid;index;column:purchase_order_id"`
	PurchaseOrder               *PurchaseOrder   `gorm:"foreignKey:PurchaseOrderID"`
	PurchaseOrderReservedAt     *time.Time       `gorm:"column:purchase_order_reserved_at"`
	PurchaseOrderReservedAmount *decimal.Decimal `gorm:"type:decimal(14,2);column:purchase_order_reserved_amount"`
	PurchaseOrderFinalizedAt    *time.Time       `gorm:"column:purchase_order_finalized_at"`

	RequestType RequestType     `gorm:"type:varchar(50);not null;index;column:request_type"`
	Amount      decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Description string          `gorm:"type:text"`

	// FinanceAmount is the amount finance actually approved for payment; it
	// is only meaningful once the request has reached the finance stage.
	FinanceAmount      *decimal.Decimal `gorm:"type:decimal(14,2);column:finance_amount"`
	ProgressPercentage *float64         `gorm:"column:progress_percentage"`

	Status PaymentStatus `gorm:"type:varchar(50);not null;default:'draft';index"`

	CreatedBy       *uuid.UUID `gorm:"type:uuid;index;column:created_by"`
	Creator         *User      `gorm:"foreignKey:CreatedBy"`
	SubmittedToPMAt *time.Time `gorm:"column:submitted_to_pm_at"`

	Approvals          []PaymentApproval          `gorm:"foreignKey:PaymentRequestID;constraint:OnDelete:CASCADE"`
	Attachments        []PaymentAttachment        `gorm:"foreignKey:PaymentRequestID;constraint:OnDelete:CASCADE"`
	NotificationNotes  []PaymentNotificationNote  `gorm:"foreignKey:PaymentRequestID;constraint:OnDelete:CASCADE"`
	FinanceAdjustments []PaymentFinanceAdjustment `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE"`
}

// FinanceAdjustmentsTotal sums the non-void adjustment deltas.
func (p *PaymentRequest) FinanceAdjustmentsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, adj := range p.FinanceAdjustments {
		if adj.IsVoid {
			continue
		}
		total = total.Add(adj.DeltaAmount)
	}
	return total
}

// FinanceEffectiveAmount is the finance amount plus all non-void adjustments.
func (p *PaymentRequest) FinanceEffectiveAmount() decimal.Decimal {
	base := decimal.Zero
	if p.FinanceAmount != nil {
		base = *p.FinanceAmount
	}
	return base.Add(p.FinanceAdjustmentsTotal())
}

// FinanceDiff is finance effective amount minus the requested amount.
// Positive means finance approved more than requested. Nil until finance has
// set an amount.
func (p *PaymentRequest) FinanceDiff() *decimal.Decimal {
	if p.FinanceAmount == nil {
		return nil
	}
	diff := p.FinanceEffectiveAmount().Sub(p.Amount)
	return &diff
}

// ApprovalStep names the acting capacity recorded on an audit row
type ApprovalStep string

const (
	StepEngineer   ApprovalStep = "engineer"
	StepPM         ApprovalStep = "pm"
	StepEngManager ApprovalStep = "eng_manager"
	StepFinance    ApprovalStep = "finance"
)

// ApprovalAction names what the actor did
type ApprovalAction string

const (
	ActionSubmit   ApprovalAction = "submit"
	ActionApprove  ApprovalAction = "approve"
	ActionReject   ApprovalAction = "reject"
	ActionMarkPaid ApprovalAction = "mark_paid"
)

// PaymentApproval is an immutable audit record of one workflow transition.
// Rows are appended exactly once per transition and never mutated.
type PaymentApproval struct {
	ID               uuid.UUID       `gorm:"type:uuid;primary_key"`
	PaymentRequestID uuid.UUID       `gorm:"type:uuid;not null;index;column:payment_request_id"`
	PaymentRequest   *PaymentRequest `gorm:"foreignKey:PaymentRequestID"`
	Step             ApprovalStep    `gorm:"type:varchar(50);not null"`
	Action           ApprovalAction  `gorm:"type:varchar(50);not null"`
	OldStatus        *PaymentStatus  `gorm:"type:varchar(50);column:old_status"`
	NewStatus        PaymentStatus   `gorm:"type:varchar(50);not null;column:new_status"`
	Comment          string          `gorm:"type:text"`
	DecidedByID      *uuid.UUID      `gorm:"type:uuid;column:decided_by_id"`
	DecidedBy        *User           `gorm:"foreignKey:DecidedByID"`
	DecidedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP;index;column:decided_at"`
}

// PaymentFinanceAdjustment is an append-only correction to a payment's
// finance amount. Adjustments are voided, never deleted.
type PaymentFinanceAdjustment struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key"`
	PaymentID       uuid.UUID       `gorm:"type:uuid;not null;index;column:payment_id"`
	Payment         *PaymentRequest `gorm:"foreignKey:PaymentID"`
	DeltaAmount     decimal.Decimal `gorm:"type:decimal(14,2);not null;column:delta_amount"`
	Reason          string          `gorm:"type:varchar(255);not null"`
	Notes           string          `gorm:"type:text"`
	CreatedByUserID uuid.UUID       `gorm:"type:uuid;not null;index;column:created_by_user_id"`
	CreatedBy       *User           `gorm:"foreignKey:CreatedByUserID"`
	CreatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
	IsVoid          bool            `gorm:"not null;default:false;index;column:is_void"`
	VoidedByUserID  *uuid.UUID      `gorm:"type:uuid;column:voided_by_user_id"`
	VoidedBy        *User           `gorm:"foreignKey:VoidedByUserID"`
	VoidedAt        *time.Time      `gorm:"column:voided_at"`
	VoidReason      string          `gorm:"type:varchar(255);column:void_reason"`
}

// PaymentAttachment is an uploaded document (invoice, progress certificate)
// tied to a payment request.
type PaymentAttachment struct {
	ID               uuid.UUID       `gorm:"type:uuid;primary_key"`
	PaymentRequestID uuid.UUID       `gorm:"type:uuid;not null;index;column:payment_request_id"`
	PaymentRequest   *PaymentRequest `gorm:"foreignKey:PaymentRequestID"`
	OriginalFilename string          `gorm:"type:varchar(255);not null;column:original_filename"`
	StoredFilename   string          `gorm:"type:varchar(255);not null;column:stored_filename"`
	MimeType         string          `gorm:"type:varchar(100);column:mime_type"`
	Size             int64           `gorm:"not null;default:0"`
	UploadedByID     *uuid.UUID      `gorm:"type:uuid;column:uploaded_by_id"`
	UploadedBy       *User           `gorm:"foreignKey:UploadedByID"`
	UploadedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP;column:uploaded_at"`
}

// PaymentNotificationNote records that a supplier was contacted about a
// payment, without touching the payment's status. Used by payment_notifier.
type PaymentNotificationNote struct {
	ID               uuid.UUID       `gorm:"type:uuid;primary_key"`
	PaymentRequestID uuid.UUID       `gorm:"type:uuid;not null;index;column:payment_request_id"`
	PaymentRequest   *PaymentRequest `gorm:"foreignKey:PaymentRequestID"`
	UserID           uuid.UUID       `gorm:"type:uuid;not null;column:user_id"`
	User             *User           `gorm:"foreignKey:UserID"`
	Note             string          `gorm:"type:text;not null"`
	CreatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
}

// PurchaseOrderStatus represents the approval status of a purchase order
type PurchaseOrderStatus string

const (
	POStatusDraft           PurchaseOrderStatus = "draft"
	POStatusSubmitted       PurchaseOrderStatus = "submitted"
	POStatusPMApproved      PurchaseOrderStatus = "pm_approved"
	POStatusEngApproved     PurchaseOrderStatus = "eng_approved"
	POStatusFinanceApproved PurchaseOrderStatus = "finance_approved"
	POStatusRejected        PurchaseOrderStatus = "rejected"
)

// IsValid checks if the PurchaseOrderStatus is a valid enum value
func (s PurchaseOrderStatus) IsValid() bool {
	switch s {
	case POStatusDraft, POStatusSubmitted, POStatusPMApproved,
		POStatusEngApproved, POStatusFinanceApproved, POStatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether the purchase order workflow has ended.
func (s PurchaseOrderStatus) IsTerminal() bool {
	return s == POStatusFinanceApproved || s == POStatusRejected
}

// PurchaseOrder tracks a commitment against a supplier. Procurement-type
// payment requests draw against it.
type PurchaseOrder struct {
	BaseModel
	// BONumber is unique case-insensitively (lower(bo_number) unique index).
	BONumber        string              `gorm:"type:varchar(50);not null;column:bo_number"`
	ProjectID       uuid.UUID           `gorm:"type:uuid;not null;index;column:project_id"`
	Project         *Project            `gorm:"foreignKey:ProjectID"`
	SupplierID      uuid.UUID           `gorm:"type:uuid;not null;index;column:supplier_id"`
	Supplier        *Supplier           `gorm:"foreignKey:SupplierID"`
	SupplierName    string              `gorm:"type:varchar(255);not null;column:supplier_name"`
	TotalAmount     decimal.Decimal     `gorm:"type:decimal(14,2);not null;column:total_amount"`
	AdvanceAmount   decimal.Decimal     `gorm:"type:decimal(14,2);not null;default:0;column:advance_amount"`
	ReservedAmount  decimal.Decimal     `gorm:"type:decimal(14,2);not null;default:0;column:reserved_amount"`
	PaidAmount      decimal.Decimal     `gorm:"type:decimal(14,2);not null;default:0;column:paid_amount"`
	RemainingAmount decimal.Decimal     `gorm:"type:decimal(14,2);not null;column:remaining_amount"`
	Status          PurchaseOrderStatus `gorm:"type:varchar(30);not null;default:'draft';index"`
	CreatedByID     uuid.UUID           `gorm:"type:uuid;not null;index;column:created_by_id"`
	CreatedBy       *User               `gorm:"foreignKey:CreatedByID"`

	Decisions []PurchaseOrderDecision `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE"`
}

// RecalculateRemaining maintains remaining = total - advance - reserved - paid.
// Must be called before every save that touches an amount.
func (po *PurchaseOrder) RecalculateRemaining() {
	po.RemainingAmount = po.TotalAmount.
		Sub(po.AdvanceAmount).
		Sub(po.ReservedAmount).
		Sub(po.PaidAmount)
}

// ValidateAmounts rejects negative amounts and advances above the total.
func (po *PurchaseOrder) ValidateAmounts() error {
	amounts := []struct {
		name  string
		value decimal.Decimal
	}{
		{"total_amount", po.TotalAmount},
		{"advance_amount", po.AdvanceAmount},
		{"reserved_amount", po.ReservedAmount},
		{"paid_amount", po.PaidAmount},
	}
	for _, a := range amounts {
		if a.value.IsNegative() {
			return fmt.Errorf("%s cannot be negative", a.name)
		}
	}
	if po.AdvanceAmount.GreaterThan(po.TotalAmount) {
		return fmt.Errorf("advance_amount cannot exceed total_amount")
	}
	return nil
}

// PurchaseOrderDecision is the append-only audit log of purchase order
// approvals, analogous to PaymentApproval.
type PurchaseOrderDecision struct {
	ID              uuid.UUID           `gorm:"type:uuid;primary_key"`
	PurchaseOrderID uuid.UUID           `gorm:"type:uuid;not null;index;column:purchase_order_id"`
	PurchaseOrder   *PurchaseOrder      `gorm:"foreignKey:PurchaseOrderID"`
	Action          string              `gorm:"type:varchar(20);not null"`
	FromStatus      PurchaseOrderStatus `gorm:"type:varchar(30);not null;column:from_status"`
	ToStatus        PurchaseOrderStatus `gorm:"type:varchar(30);not null;column:to_status"`
	Comment         string              `gorm:"type:text"`
	DecidedByID     uuid.UUID           `gorm:"type:uuid;not null;index;column:decided_by_id"`
	DecidedBy       *User               `gorm:"foreignKey:DecidedByID"`
	DecidedAt       time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP;index;column:decided_at"`
}

// Notification represents a user notification
type Notification struct {
	BaseModel
	UserID  uuid.UUID `gorm:"type:uuid;not null;index;column:user_id"`
	User    *User     `gorm:"foreignKey:UserID"`
	Title   string    `gorm:"type:varchar(200);not null"`
	Message string    `gorm:"type:text"`
	URL     string    `gorm:"type:varchar(255)"`
	Read    bool      `gorm:"column:is_read;not null;default:false;index"`
	ReadAt  *time.Time
}

// SavedView is a per-user bookmark of a listing's filter set.
type SavedView struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index;column:user_id"`
	User        *User     `gorm:"foreignKey:UserID"`
	Name        string    `gorm:"type:varchar(150);not null"`
	Endpoint    string    `gorm:"type:varchar(255);not null"`
	QueryString string    `gorm:"type:text;column:query_string"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}
