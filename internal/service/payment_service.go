package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ahc-eng/payflow-api/internal/auth"
	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/mapper"
	"github.com/ahc-eng/payflow-api/internal/repository"
	"github.com/ahc-eng/payflow-api/internal/workflow"
)

// Payment-specific service errors
var (
	// ErrPaymentNotFound is returned when a payment request is not found or
	// outside the caller's visibility
	ErrPaymentNotFound = errors.New("payment request not found")

	// ErrPaymentNotEditable is returned when the payment has moved past the
	// state the caller's role may still edit it in
	ErrPaymentNotEditable = errors.New("payment request is no longer editable in its current status")

	// ErrFinanceAmountRequired is returned when marking paid without an amount
	ErrFinanceAmountRequired = errors.New("a positive finance amount is required to mark as paid")

	// ErrInsufficientPOFunds is returned when a reservation would overdraw
	// the linked purchase order
	ErrInsufficientPOFunds = errors.New("purchase order has insufficient remaining funds")

	// ErrPurchaseOrderNotApproved is returned when drawing against an order
	// that has not cleared its approval chain
	ErrPurchaseOrderNotApproved = errors.New("purchase order is not finance approved")
)

// PaymentService handles payment request CRUD, listing and export. The
// workflow transitions live in payment_lifecycle.go on the same type.
type PaymentService struct {
	db            *gorm.DB
	paymentRepo   *repository.PaymentRepository
	poRepo        *repository.PurchaseOrderRepository
	projectRepo   *repository.ProjectRepository
	suppliers     *SupplierService
	visibility    *VisibilityResolver
	sla           *SLAService
	notifications *NotificationService
	logger        *zap.Logger
}

// NewPaymentService creates a new payment service instance
func NewPaymentService(
	db *gorm.DB,
	paymentRepo *repository.PaymentRepository,
	poRepo *repository.PurchaseOrderRepository,
	projectRepo *repository.ProjectRepository,
	suppliers *SupplierService,
	visibility *VisibilityResolver,
	sla *SLAService,
	notifications *NotificationService,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		db:            db,
		paymentRepo:   paymentRepo,
		poRepo:        poRepo,
		projectRepo:   projectRepo,
		suppliers:     suppliers,
		visibility:    visibility,
		sla:           sla,
		notifications: notifications,
		logger:        logger,
	}
}

// visibleTo mirrors repository.ApplyPaymentVisibility for a single loaded
// row, so detail fetches enforce the same universe as listings.
func visibleTo(p *domain.PaymentRequest, v repository.Visibility) bool {
	inScope := func() bool {
		for _, id := range v.ScopedProjects {
			if id == p.ProjectID {
				return true
			}
		}
		return false
	}

	switch v.Role.Normalized() {
	case domain.RoleAdmin, domain.RoleEngineeringManager, domain.RoleFinance,
		domain.RoleChairman, domain.RolePlanning:
		return true
	case domain.RoleProjectManager:
		return inScope()
	case domain.RoleEngineer:
		if len(v.ScopedProjects) == 0 {
			return p.CreatedBy != nil && *p.CreatedBy == v.UserID
		}
		return inScope()
	case domain.RoleProcurement:
		return p.RequestType == domain.RequestTypeProcurement && inScope()
	case domain.RolePaymentNotifier:
		return p.Status == domain.StatusReadyForPayment || p.Status == domain.StatusPaid
	default:
		return false
	}
}

// Create creates a payment request, resolving the free-text supplier name
// and optionally submitting it straight to the PM queue.
func (s *PaymentService) Create(ctx context.Context, req *domain.CreatePaymentRequest) (*domain.PaymentRequestDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !req.RequestType.IsValid() {
		return nil, fmt.Errorf("%w: requestType", ErrInvalidInput)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	if _, err := s.projectRepo.GetByID(ctx, req.ProjectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: projectId", ErrInvalidInput)
		}
		return nil, fmt.Errorf("failed to verify project: %w", err)
	}

	v, err := s.visibility.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	supplier, err := s.suppliers.GetOrCreateByName(ctx, req.SupplierName)
	if err != nil {
		return nil, err
	}

	payment := &domain.PaymentRequest{
		ProjectID:          req.ProjectID,
		SupplierID:         supplier.ID,
		RequestType:        req.RequestType,
		Amount:             req.Amount,
		Description:        strings.TrimSpace(req.Description),
		ProgressPercentage: req.ProgressPercentage,
		Status:             domain.StatusDraft,
		CreatedBy:          &userCtx.UserID,
	}

	if req.PurchaseOrderID != nil {
		if err := s.attachPurchaseOrder(ctx, payment, *req.PurchaseOrderID); err != nil {
			return nil, err
		}
	}

	// Creating on a project outside the user's scope would produce a row the
	// creator can never see again.
	if !visibleTo(payment, v) {
		return nil, ErrPermissionDenied
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment request: %w", err)
	}

	s.logger.Info("payment request created",
		zap.String("payment_id", payment.ID.String()),
		zap.String("project_id", payment.ProjectID.String()),
		zap.String("amount", payment.Amount.String()))

	if req.SubmitNow {
		return s.Transition(ctx, payment.ID, domain.StatusPendingPM, &domain.PaymentDecisionRequest{})
	}

	return s.GetByID(ctx, payment.ID)
}

// attachPurchaseOrder validates a PO link on create/update. Only procurement
// requests draw against purchase orders.
func (s *PaymentService) attachPurchaseOrder(ctx context.Context, payment *domain.PaymentRequest, poID uuid.UUID) error {
	if payment.RequestType != domain.RequestTypeProcurement {
		return fmt.Errorf("%w: purchaseOrderId is only valid for procurement requests", ErrInvalidInput)
	}
	po, err := s.poRepo.GetByID(ctx, poID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: purchaseOrderId", ErrInvalidInput)
		}
		return fmt.Errorf("failed to verify purchase order: %w", err)
	}
	if po.ProjectID != payment.ProjectID {
		return fmt.Errorf("%w: purchase order belongs to a different project", ErrInvalidInput)
	}
	payment.PurchaseOrderID = &po.ID
	return nil
}

// canEdit reports whether the caller may edit the payment. Admin and the
// engineering manager edit any request in any state; engineers their own
// drafts; project managers their own requests until the PM stage is decided.
func (s *PaymentService) canEdit(userCtx *auth.UserContext, payment *domain.PaymentRequest) bool {
	switch userCtx.EffectiveRole() {
	case domain.RoleAdmin, domain.RoleEngineeringManager:
		return true
	case domain.RoleEngineer:
		return isCreator(payment, userCtx.UserID) && payment.Status == domain.StatusDraft
	case domain.RoleProjectManager:
		return isCreator(payment, userCtx.UserID) &&
			(payment.Status == domain.StatusDraft || payment.Status == domain.StatusPendingPM)
	}
	return false
}

// canDelete reports whether the caller may delete payments: only admin and
// the engineering manager, regardless of state.
func (s *PaymentService) canDelete(userCtx *auth.UserContext) bool {
	role := userCtx.EffectiveRole()
	return role == domain.RoleAdmin || role == domain.RoleEngineeringManager
}

func isCreator(payment *domain.PaymentRequest, userID uuid.UUID) bool {
	return payment.CreatedBy != nil && *payment.CreatedBy == userID
}

// Update edits a payment request within the caller's edit rights (see
// canEdit).
func (s *PaymentService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdatePaymentRequest) (*domain.PaymentRequestDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !req.RequestType.IsValid() {
		return nil, fmt.Errorf("%w: requestType", ErrInvalidInput)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	payment, _, err := s.loadVisible(ctx, id)
	if err != nil {
		return nil, err
	}

	if !s.canEdit(userCtx, payment) {
		if isCreator(payment, userCtx.UserID) {
			return nil, ErrPaymentNotEditable
		}
		return nil, ErrPermissionDenied
	}

	supplier, err := s.suppliers.GetOrCreateByName(ctx, req.SupplierName)
	if err != nil {
		return nil, err
	}

	payment.SupplierID = supplier.ID
	payment.RequestType = req.RequestType
	payment.Amount = req.Amount
	payment.Description = strings.TrimSpace(req.Description)
	payment.ProgressPercentage = req.ProgressPercentage
	payment.PurchaseOrderID = nil
	if req.PurchaseOrderID != nil {
		if err := s.attachPurchaseOrder(ctx, payment, *req.PurchaseOrderID); err != nil {
			return nil, err
		}
	}

	if err := s.paymentRepo.Save(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to update payment request: %w", err)
	}

	return s.GetByID(ctx, id)
}

// Delete removes a payment request and its children. Reserved for admin and
// the engineering manager; the workflow state does not matter.
func (s *PaymentService) Delete(ctx context.Context, id uuid.UUID) error {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return ErrUserContextRequired
	}

	if _, _, err := s.loadVisible(ctx, id); err != nil {
		return err
	}
	if !s.canDelete(userCtx) {
		return ErrPermissionDenied
	}

	if err := s.paymentRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete payment request: %w", err)
	}

	s.logger.Info("payment request deleted", zap.String("payment_id", id.String()))
	return nil
}

// loadVisible fetches a payment and enforces visibility; rows outside the
// caller's scope surface as not found.
func (s *PaymentService) loadVisible(ctx context.Context, id uuid.UUID) (*domain.PaymentRequest, repository.Visibility, error) {
	v, err := s.visibility.Resolve(ctx)
	if err != nil {
		return nil, repository.Visibility{}, err
	}

	payment, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, v, ErrPaymentNotFound
		}
		return nil, v, fmt.Errorf("failed to get payment request: %w", err)
	}
	if !visibleTo(payment, v) {
		return nil, v, ErrPaymentNotFound
	}
	return payment, v, nil
}

// GetByID retrieves one payment with children, SLA state and the actions the
// caller may take on it.
func (s *PaymentService) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentRequestDTO, error) {
	payment, v, err := s.loadVisible(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := s.decorate(payment, v.Role)
	return &dto, nil
}

// decorate builds the full DTO with the computed SLA and allowed actions.
func (s *PaymentService) decorate(payment *domain.PaymentRequest, role domain.RoleName) domain.PaymentRequestDTO {
	dto := mapper.ToPaymentRequestDTO(payment)
	dto.SLA = s.sla.Compute(payment.Status, StageEnteredAt(payment.CreatedAt, payment.UpdatedAt), time.Now())
	for _, target := range workflow.AllowedTargets(payment.Status, role) {
		dto.AllowedActions = append(dto.AllowedActions, string(target))
	}
	return dto
}

// List returns a filtered, paginated payment listing inside the caller's
// visibility scope.
func (s *PaymentService) List(ctx context.Context, filters repository.PaymentFilters) (*domain.PaginatedResponse, error) {
	v, err := s.visibility.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	payments, total, err := s.paymentRepo.List(ctx, v, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment requests: %w", err)
	}

	dtos := make([]domain.PaymentRequestDTO, len(payments))
	for i := range payments {
		dtos[i] = s.decorate(&payments[i], v.Role)
	}

	return paginated(dtos, total, filters.Page, filters.PageSize), nil
}

// Export returns every row matching the filters, or ErrExportTooLarge when
// the result would exceed the cap.
func (s *PaymentService) Export(ctx context.Context, filters repository.PaymentFilters) ([]domain.PaymentRequestDTO, error) {
	v, err := s.visibility.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	payments, err := s.paymentRepo.Export(ctx, v, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to export payment requests: %w", err)
	}
	if len(payments) > repository.ExportRowCap {
		return nil, ErrExportTooLarge
	}

	dtos := make([]domain.PaymentRequestDTO, len(payments))
	for i := range payments {
		dtos[i] = s.decorate(&payments[i], v.Role)
	}
	return dtos, nil
}

// Inbox lists the payments waiting on the caller's role, oldest first.
func (s *PaymentService) Inbox(ctx context.Context, page, pageSize int) (*domain.PaginatedResponse, error) {
	v, err := s.visibility.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	statuses := workflow.ActionRequiredStatuses(v.Role)
	if len(statuses) == 0 {
		return paginated([]domain.PaymentRequestDTO{}, 0, page, pageSize), nil
	}

	payments, total, err := s.paymentRepo.ListByStatuses(ctx, v, statuses, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox: %w", err)
	}

	dtos := make([]domain.PaymentRequestDTO, len(payments))
	for i := range payments {
		dtos[i] = s.decorate(&payments[i], v.Role)
	}

	return paginated(dtos, total, page, pageSize), nil
}
