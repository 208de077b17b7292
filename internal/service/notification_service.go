package service

import (
	"context"
	"errors"
	"fmt"

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

// ErrNotificationNotFound is returned when a notification is not found
var ErrNotificationNotFound = errors.New("notification not found")

// ErrUserContextRequired is returned when user context is not available
var ErrUserContextRequired = errors.New("user context required")

// statusLabels are the human titles used in notification texts.
var statusLabels = map[domain.PaymentStatus]string{
	domain.StatusDraft:           "Draft",
	domain.StatusPendingPM:       "Pending PM review",
	domain.StatusPendingEng:      "Pending engineering review",
	domain.StatusPendingFinance:  "Pending finance review",
	domain.StatusReadyForPayment: "Ready for payment",
	domain.StatusPaid:            "Paid",
	domain.StatusRejected:        "Rejected",
}

// NotificationService handles notification fan-out and the per-user inbox
type NotificationService struct {
	notificationRepo *repository.NotificationRepository
	userRepo         *repository.UserRepository
	logger           *zap.Logger
}

// NewNotificationService creates a new NotificationService instance
func NewNotificationService(
	notificationRepo *repository.NotificationRepository,
	userRepo *repository.UserRepository,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		logger:           logger,
	}
}

// expandRoleAliases widens normalized roles to every stored spelling, so
// users still carrying the project_engineer role receive engineer traffic.
func expandRoleAliases(roles []domain.RoleName) []domain.RoleName {
	out := make([]domain.RoleName, 0, len(roles)+1)
	for _, role := range roles {
		out = append(out, role)
		if role == domain.RoleEngineer {
			out = append(out, domain.RoleProjectEngineer)
		}
	}
	return out
}

// recipientsForStatus resolves who should hear about a payment reaching the
// given status. Scoped roles are narrowed to users linked to the payment's
// project; global roles get every active holder. The creator is always
// included, even when they triggered the change themselves — acting on your
// own request still leaves a trace in your inbox. Recipients are deduplicated
// by user id. tx may carry the caller's transaction so the user lookups run
// on the same connection as the fan-out writes.
func (s *NotificationService) recipientsForStatus(
	ctx context.Context,
	tx *gorm.DB,
	payment *domain.PaymentRequest,
	to domain.PaymentStatus,
) ([]uuid.UUID, error) {
	var scoped, global []domain.RoleName
	for _, role := range workflow.RecipientRoles(to) {
		if scope.IsScopedRole(role) {
			scoped = append(scoped, role)
		} else {
			global = append(global, role)
		}
	}

	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	add := func(id uuid.UUID) {
		if seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}

	if len(scoped) > 0 {
		users, err := s.userRepo.ListByRolesForProject(ctx, tx, expandRoleAliases(scoped), payment.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("resolve scoped recipients: %w", err)
		}
		for _, u := range users {
			add(u.ID)
		}
	}
	if len(global) > 0 {
		users, err := s.userRepo.ListByRoles(ctx, tx, expandRoleAliases(global))
		if err != nil {
			return nil, fmt.Errorf("resolve recipients: %w", err)
		}
		for _, u := range users {
			add(u.ID)
		}
	}

	if payment.CreatedBy != nil {
		add(*payment.CreatedBy)
	}

	return ids, nil
}

// FanOutStatusChange writes one notification per recipient for a workflow
// transition. It runs on the caller's transaction so the fan-out commits or
// rolls back together with the status change.
func (s *NotificationService) FanOutStatusChange(
	ctx context.Context,
	tx *gorm.DB,
	payment *domain.PaymentRequest,
	to domain.PaymentStatus,
) error {
	recipients, err := s.recipientsForStatus(ctx, tx, payment, to)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	label := statusLabels[to]
	supplierName := ""
	if payment.Supplier != nil {
		supplierName = payment.Supplier.Name
	}

	notifications := make([]domain.Notification, 0, len(recipients))
	for _, userID := range recipients {
		notifications = append(notifications, domain.Notification{
			BaseModel: domain.BaseModel{ID: uuid.New()},
			UserID:    userID,
			Title:     fmt.Sprintf("Payment request: %s", label),
			Message:   fmt.Sprintf("Payment of %s to %s is now %s.", payment.Amount.StringFixed(2), supplierName, label),
			URL:       fmt.Sprintf("/payments/%s", payment.ID),
		})
	}

	if err := s.notificationRepo.CreateBatch(ctx, tx, notifications); err != nil {
		return fmt.Errorf("failed to create notifications: %w", err)
	}

	s.logger.Info("status change notifications sent",
		zap.String("payment_id", payment.ID.String()),
		zap.String("status", string(to)),
		zap.Int("recipients", len(recipients)))

	return nil
}

// NotifyOverdue tells the responsible role holders that a payment breached
// its stage limit. Used by the sweep job.
func (s *NotificationService) NotifyOverdue(ctx context.Context, payment *domain.PaymentRequest, daysOverdue int) error {
	recipients, err := s.recipientsForStatus(ctx, nil, payment, payment.Status)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	notifications := make([]domain.Notification, 0, len(recipients))
	for _, userID := range recipients {
		notifications = append(notifications, domain.Notification{
			BaseModel: domain.BaseModel{ID: uuid.New()},
			UserID:    userID,
			Title:     "Payment request overdue",
			Message:   fmt.Sprintf("A payment request has been waiting in %q for %d day(s) past its limit.", statusLabels[payment.Status], daysOverdue),
			URL:       fmt.Sprintf("/payments/%s", payment.ID),
		})
	}

	return s.notificationRepo.CreateBatch(ctx, nil, notifications)
}

// GetForCurrentUser returns notifications for the current user with pagination
func (s *NotificationService) GetForCurrentUser(ctx context.Context, page, pageSize int, unreadOnly bool) (*domain.PaginatedResponse, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	notifications, total, err := s.notificationRepo.ListByUser(ctx, userCtx.UserID, page, pageSize, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	dtos := make([]domain.NotificationDTO, len(notifications))
	for i := range notifications {
		dtos[i] = mapper.ToNotificationDTO(&notifications[i])
	}

	return paginated(dtos, total, page, pageSize), nil
}

// MarkAsRead marks one notification as read, verifying ownership
func (s *NotificationService) MarkAsRead(ctx context.Context, notificationID uuid.UUID) error {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return ErrUserContextRequired
	}

	affected, err := s.notificationRepo.MarkAsRead(ctx, notificationID, userCtx.UserID)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	if affected == 0 {
		// Either missing, another user's, or already read. The first two
		// both surface as not found.
		notification, err := s.notificationRepo.GetByID(ctx, notificationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotificationNotFound
			}
			return fmt.Errorf("failed to get notification: %w", err)
		}
		if notification.UserID != userCtx.UserID {
			return ErrNotificationNotFound
		}
	}
	return nil
}

// MarkAllAsReadForUser marks all notifications for the current user as read
func (s *NotificationService) MarkAllAsReadForUser(ctx context.Context) error {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return ErrUserContextRequired
	}

	if err := s.notificationRepo.MarkAllAsRead(ctx, userCtx.UserID); err != nil {
		return fmt.Errorf("failed to mark all notifications as read: %w", err)
	}
	return nil
}

// GetUnreadCount returns the count of unread notifications for the current user
func (s *NotificationService) GetUnreadCount(ctx context.Context) (*domain.UnreadCountDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	count, err := s.notificationRepo.CountUnread(ctx, userCtx.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	return &domain.UnreadCountDTO{Count: count}, nil
}
