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
	"github.com/ahc-eng/payflow-api/internal/scope"
	"github.com/ahc-eng/payflow-api/internal/workflow"
)

// Purchase-order-specific service errors
var (
	// ErrPurchaseOrderNotFound is returned when an order is missing or
	// outside the caller's visibility
	ErrPurchaseOrderNotFound = errors.New("purchase order not found")

	// ErrDuplicateBONumber is returned when the BO number is already taken
	ErrDuplicateBONumber = errors.New("purchase order with this BO number already exists")

	// ErrPurchaseOrderNotEditable is returned when editing past the draft stage
	ErrPurchaseOrderNotEditable = errors.New("only draft purchase orders can be edited")

	// ErrPurchaseOrderInUse is returned when deleting an order payments draw on
	ErrPurchaseOrderInUse = errors.New("purchase order has linked payment requests")
)

// PurchaseOrderService handles business logic for purchase orders
type PurchaseOrderService struct {
	db            *gorm.DB
	poRepo        *repository.PurchaseOrderRepository
	projectRepo   *repository.ProjectRepository
	suppliers     *SupplierService
	visibility    *VisibilityResolver
	userRepo      *repository.UserRepository
	notifications *NotificationService
	logger        *zap.Logger
}

// NewPurchaseOrderService creates a new purchase order service instance
func NewPurchaseOrderService(
	db *gorm.DB,
	poRepo *repository.PurchaseOrderRepository,
	projectRepo *repository.ProjectRepository,
	suppliers *SupplierService,
	visibility *VisibilityResolver,
	userRepo *repository.UserRepository,
	notifications *NotificationService,
	logger *zap.Logger,
) *PurchaseOrderService {
	return &PurchaseOrderService{
		db:            db,
		poRepo:        poRepo,
		projectRepo:   projectRepo,
		suppliers:     suppliers,
		visibility:    visibility,
		userRepo:      userRepo,
		notifications: notifications,
		logger:        logger,
	}
}

// poVisibleTo mirrors repository.ApplyPurchaseOrderVisibility for one row.
func poVisibleTo(po *domain.PurchaseOrder, v repository.Visibility) bool {
	switch v.Role.Normalized() {
	case domain.RoleAdmin, domain.RoleEngineeringManager, domain.RoleFinance,
		domain.RoleChairman, domain.RolePlanning:
		return true
	case domain.RoleProjectManager, domain.RoleEngineer, domain.RoleProcurement:
		for _, id := range v.ScopedProjects {
			if id == po.ProjectID {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Create creates a draft purchase order
func (s *PurchaseOrderService) Create(ctx context.Context, req *domain.CreatePurchaseOrderRequest) (*domain.PurchaseOrderDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	boNumber := strings.TrimSpace(req.BONumber)
	if boNumber == "" {
		return nil, fmt.Errorf("%w: boNumber", ErrInvalidInput)
	}
	existing, err := s.poRepo.GetByBONumber(ctx, boNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to check BO number: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateBONumber
	}

	if _, err := s.projectRepo.GetByID(ctx, req.ProjectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: projectId", ErrInvalidInput)
		}
		return nil, fmt.Errorf("failed to verify project: %w", err)
	}

	supplier, err := s.suppliers.GetOrCreateByName(ctx, req.SupplierName)
	if err != nil {
		return nil, err
	}

	po := &domain.PurchaseOrder{
		BONumber:      boNumber,
		ProjectID:     req.ProjectID,
		SupplierID:    supplier.ID,
		SupplierName:  supplier.Name,
		TotalAmount:   req.TotalAmount,
		AdvanceAmount: req.AdvanceAmount,
		Status:        domain.POStatusDraft,
		CreatedByID:   userCtx.UserID,
	}
	po.RecalculateRemaining()
	if err := po.ValidateAmounts(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.poRepo.Create(ctx, po); err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique constraint") {
			return nil, ErrDuplicateBONumber
		}
		return nil, fmt.Errorf("failed to create purchase order: %w", err)
	}

	s.logger.Info("purchase order created",
		zap.String("po_id", po.ID.String()),
		zap.String("bo_number", po.BONumber),
		zap.String("total", po.TotalAmount.String()))

	return s.GetByID(ctx, po.ID)
}

// Update edits a draft purchase order
func (s *PurchaseOrderService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdatePurchaseOrderRequest) (*domain.PurchaseOrderDTO, error) {
	po, _, err := s.loadVisible(ctx, id)
	if err != nil {
		return nil, err
	}
	if po.Status != domain.POStatusDraft {
		return nil, ErrPurchaseOrderNotEditable
	}

	boNumber := strings.TrimSpace(req.BONumber)
	if !strings.EqualFold(boNumber, po.BONumber) {
		existing, err := s.poRepo.GetByBONumber(ctx, boNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to check BO number: %w", err)
		}
		if existing != nil {
			return nil, ErrDuplicateBONumber
		}
	}

	supplier, err := s.suppliers.GetOrCreateByName(ctx, req.SupplierName)
	if err != nil {
		return nil, err
	}

	po.BONumber = boNumber
	po.SupplierID = supplier.ID
	po.SupplierName = supplier.Name
	po.TotalAmount = req.TotalAmount
	po.AdvanceAmount = req.AdvanceAmount
	po.RecalculateRemaining()
	if err := po.ValidateAmounts(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.poRepo.Save(ctx, po); err != nil {
		return nil, fmt.Errorf("failed to update purchase order: %w", err)
	}

	return s.GetByID(ctx, id)
}

// Delete removes a draft purchase order no payments draw on
func (s *PurchaseOrderService) Delete(ctx context.Context, id uuid.UUID) error {
	po, _, err := s.loadVisible(ctx, id)
	if err != nil {
		return err
	}
	if po.Status != domain.POStatusDraft {
		return ErrPurchaseOrderNotEditable
	}

	linked, err := s.poRepo.CountLinkedPayments(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count linked payments: %w", err)
	}
	if linked > 0 {
		return ErrPurchaseOrderInUse
	}

	if err := s.poRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete purchase order: %w", err)
	}
	s.logger.Info("purchase order deleted", zap.String("po_id", id.String()))
	return nil
}

func (s *PurchaseOrderService) loadVisible(ctx context.Context, id uuid.UUID) (*domain.PurchaseOrder, repository.Visibility, error) {
	v, err := s.visibility.Resolve(ctx)
	if err != nil {
		return nil, repository.Visibility{}, err
	}

	po, err := s.poRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, v, ErrPurchaseOrderNotFound
		}
		return nil, v, fmt.Errorf("failed to get purchase order: %w", err)
	}
	if !poVisibleTo(po, v) {
		return nil, v, ErrPurchaseOrderNotFound
	}
	return po, v, nil
}

// GetByID retrieves one purchase order with its decision trail
func (s *PurchaseOrderService) GetByID(ctx context.Context, id uuid.UUID) (*domain.PurchaseOrderDTO, error) {
	po, v, err := s.loadVisible(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToPurchaseOrderDTO(po)
	for _, target := range workflow.AllowedPOTargets(po.Status, v.Role) {
		dto.AllowedActions = append(dto.AllowedActions, string(target))
	}
	return &dto, nil
}

// List returns a filtered, paginated purchase order listing
func (s *PurchaseOrderService) List(ctx context.Context, filters repository.PurchaseOrderFilters) (*domain.PaginatedResponse, error) {
	v, err := s.visibility.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	orders, total, err := s.poRepo.List(ctx, v, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchase orders: %w", err)
	}

	dtos := make([]domain.PurchaseOrderDTO, len(orders))
	for i := range orders {
		dtos[i] = mapper.ToPurchaseOrderDTO(&orders[i])
		for _, target := range workflow.AllowedPOTargets(orders[i].Status, v.Role) {
			dtos[i].AllowedActions = append(dtos[i].AllowedActions, string(target))
		}
	}

	return paginated(dtos, total, filters.Page, filters.PageSize), nil
}

// Transition moves a purchase order along its approval chain, recording the
// decision and notifying the next stage in one transaction.
func (s *PurchaseOrderService) Transition(ctx context.Context, id uuid.UUID, to domain.PurchaseOrderStatus, req *domain.PurchaseOrderDecisionRequest) (*domain.PurchaseOrderDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !to.IsValid() {
		return nil, fmt.Errorf("%w: status", ErrInvalidInput)
	}

	po, _, err := s.loadVisible(ctx, id)
	if err != nil {
		return nil, err
	}
	expectedFrom := po.Status

	rule, err := workflow.ValidatePO(expectedFrom, to, userCtx.Role)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.poRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPurchaseOrderNotFound
			}
			return fmt.Errorf("failed to lock purchase order: %w", err)
		}
		if locked.Status != expectedFrom {
			return ErrConcurrentModification
		}

		now := time.Now().UTC()
		locked.Status = to
		if err := tx.Omit("Project", "Supplier", "CreatedBy", "Decisions").Save(locked).Error; err != nil {
			return fmt.Errorf("failed to save purchase order: %w", err)
		}

		decision := &domain.PurchaseOrderDecision{
			ID:              uuid.New(),
			PurchaseOrderID: locked.ID,
			Action:          rule.Action,
			FromStatus:      expectedFrom,
			ToStatus:        to,
			Comment:         strings.TrimSpace(req.Comment),
			DecidedByID:     userCtx.UserID,
			DecidedAt:       now,
		}
		if err := s.poRepo.CreateDecision(ctx, tx, decision); err != nil {
			return fmt.Errorf("failed to record decision: %w", err)
		}

		return s.fanOut(ctx, tx, po, to)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("purchase order status changed",
		zap.String("po_id", id.String()),
		zap.String("from", string(expectedFrom)),
		zap.String("to", string(to)))

	return s.GetByID(ctx, id)
}

// fanOut notifies the next stage's role holders, admin, and the order's
// creator. The creator hears about every change, including their own actions.
func (s *PurchaseOrderService) fanOut(ctx context.Context, tx *gorm.DB, po *domain.PurchaseOrder, to domain.PurchaseOrderStatus) error {
	var scoped, global []domain.RoleName
	for _, role := range workflow.PORecipientRoles(to) {
		if scope.IsScopedRole(role) {
			scoped = append(scoped, role)
		} else {
			global = append(global, role)
		}
	}

	seen := make(map[uuid.UUID]bool)
	var recipients []uuid.UUID
	add := func(id uuid.UUID) {
		if !seen[id] {
			seen[id] = true
			recipients = append(recipients, id)
		}
	}

	if len(scoped) > 0 {
		users, err := s.userRepo.ListByRolesForProject(ctx, tx, expandRoleAliases(scoped), po.ProjectID)
		if err != nil {
			return fmt.Errorf("resolve scoped recipients: %w", err)
		}
		for _, u := range users {
			add(u.ID)
		}
	}
	if len(global) > 0 {
		users, err := s.userRepo.ListByRoles(ctx, tx, expandRoleAliases(global))
		if err != nil {
			return fmt.Errorf("resolve recipients: %w", err)
		}
		for _, u := range users {
			add(u.ID)
		}
	}
	add(po.CreatedByID)

	if len(recipients) == 0 {
		return nil
	}

	notifications := make([]domain.Notification, 0, len(recipients))
	for _, userID := range recipients {
		notifications = append(notifications, domain.Notification{
			BaseModel: domain.BaseModel{ID: uuid.New()},
			UserID:    userID,
			Title:     fmt.Sprintf("Purchase order %s: %s", po.BONumber, to),
			Message:   fmt.Sprintf("Purchase order %s (%s) is now %s.", po.BONumber, po.SupplierName, to),
			URL:       fmt.Sprintf("/purchase-orders/%s", po.ID),
		})
	}
	return s.notifications.notificationRepo.CreateBatch(ctx, tx, notifications)
}
