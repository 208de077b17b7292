package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ahc-eng/payflow-api/internal/auth"
	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/mapper"
	"github.com/ahc-eng/payflow-api/internal/workflow"
)

// ErrAdjustmentNotFound is returned when a finance adjustment is not found
var ErrAdjustmentNotFound = errors.New("finance adjustment not found")

// ErrAdjustmentAlreadyVoid is returned when voiding a voided adjustment
var ErrAdjustmentAlreadyVoid = errors.New("finance adjustment is already void")

// ErrAdjustmentsNotAvailable is returned when adjusting a payment that has
// not reached the finance stage
var ErrAdjustmentsNotAvailable = errors.New("finance adjustments require a finance-approved payment")

// Transition moves a payment to the target status. The whole decision —
// status flip, audit row, purchase order bookkeeping and notification
// fan-out — commits in one transaction.
func (s *PaymentService) Transition(ctx context.Context, id uuid.UUID, to domain.PaymentStatus, req *domain.PaymentDecisionRequest) (*domain.PaymentRequestDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !to.IsValid() {
		return nil, fmt.Errorf("%w: status", ErrInvalidInput)
	}

	// Unlocked read for visibility; the authoritative check repeats under
	// the row lock below.
	payment, _, err := s.loadVisible(ctx, id)
	if err != nil {
		return nil, err
	}
	expectedFrom := payment.Status

	rule, err := workflow.Validate(expectedFrom, to, userCtx.Role)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.paymentRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return fmt.Errorf("failed to lock payment request: %w", err)
		}
		if locked.Status != expectedFrom {
			return ErrConcurrentModification
		}

		now := time.Now().UTC()

		if rule.Step == domain.StepFinance && req.FinanceAmount != nil {
			if !req.FinanceAmount.IsPositive() {
				return fmt.Errorf("%w: financeAmount must be positive", ErrInvalidInput)
			}
			locked.FinanceAmount = req.FinanceAmount
		}
		if rule.RequiresFinanceAmount && locked.FinanceAmount == nil {
			return ErrFinanceAmountRequired
		}

		if rule.Action == domain.ActionSubmit && locked.SubmittedToPMAt == nil {
			locked.SubmittedToPMAt = &now
		}

		if locked.PurchaseOrderID != nil {
			if err := s.settlePurchaseOrder(ctx, tx, locked, rule, now); err != nil {
				return err
			}
		}

		oldStatus := locked.Status
		locked.Status = to
		if err := tx.Omit("Project", "Supplier", "PurchaseOrder", "Creator",
			"Approvals", "Attachments", "NotificationNotes", "FinanceAdjustments").
			Save(locked).Error; err != nil {
			return fmt.Errorf("failed to save payment request: %w", err)
		}

		approval := &domain.PaymentApproval{
			ID:               uuid.New(),
			PaymentRequestID: locked.ID,
			Step:             rule.Step,
			Action:           rule.Action,
			OldStatus:        &oldStatus,
			NewStatus:        to,
			Comment:          strings.TrimSpace(req.Comment),
			DecidedByID:      &userCtx.UserID,
			DecidedAt:        now,
		}
		if err := s.paymentRepo.CreateApproval(ctx, tx, approval); err != nil {
			return fmt.Errorf("failed to record approval: %w", err)
		}

		// payment carries the preloaded supplier for the message text.
		payment.Status = to
		return s.notifications.FanOutStatusChange(ctx, tx, payment, to)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment status changed",
		zap.String("payment_id", id.String()),
		zap.String("from", string(expectedFrom)),
		zap.String("to", string(to)),
		zap.String("decided_by", userCtx.UserID.String()))

	return s.GetByID(ctx, id)
}

// settlePurchaseOrder keeps the linked purchase order's amounts in step with
// the payment workflow: reserve on submit, convert the reservation to paid on
// mark-paid, release it on rejection.
func (s *PaymentService) settlePurchaseOrder(ctx context.Context, tx *gorm.DB, payment *domain.PaymentRequest, rule workflow.Rule, now time.Time) error {
	po, err := s.poRepo.GetByIDForUpdate(ctx, tx, *payment.PurchaseOrderID)
	if err != nil {
		return fmt.Errorf("failed to lock purchase order: %w", err)
	}

	switch rule.Action {
	case domain.ActionSubmit:
		if po.Status != domain.POStatusFinanceApproved {
			return ErrPurchaseOrderNotApproved
		}
		if po.RemainingAmount.LessThan(payment.Amount) {
			return ErrInsufficientPOFunds
		}
		po.ReservedAmount = po.ReservedAmount.Add(payment.Amount)
		payment.PurchaseOrderReservedAt = &now
		payment.PurchaseOrderReservedAmount = &payment.Amount

	case domain.ActionMarkPaid:
		reserved := decimal.Zero
		if payment.PurchaseOrderReservedAmount != nil {
			reserved = *payment.PurchaseOrderReservedAmount
		}
		po.ReservedAmount = po.ReservedAmount.Sub(reserved)
		po.PaidAmount = po.PaidAmount.Add(payment.FinanceEffectiveAmount())
		payment.PurchaseOrderFinalizedAt = &now

	case domain.ActionReject:
		if payment.PurchaseOrderReservedAmount != nil && payment.PurchaseOrderFinalizedAt == nil {
			po.ReservedAmount = po.ReservedAmount.Sub(*payment.PurchaseOrderReservedAmount)
			payment.PurchaseOrderReservedAt = nil
			payment.PurchaseOrderReservedAmount = nil
		}

	default:
		return nil
	}

	po.RecalculateRemaining()
	if err := po.ValidateAmounts(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := tx.Omit("Project", "Supplier", "CreatedBy", "Decisions").Save(po).Error; err != nil {
		return fmt.Errorf("failed to update purchase order: %w", err)
	}
	return nil
}

// AddAdjustment appends a finance adjustment to a payment that has reached
// the finance stage. Only finance and admin may adjust.
func (s *PaymentService) AddAdjustment(ctx context.Context, paymentID uuid.UUID, req *domain.CreateFinanceAdjustmentRequest) (*domain.PaymentRequestDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !userCtx.HasAnyRole(domain.RoleFinance) {
		return nil, ErrPermissionDenied
	}
	if req.DeltaAmount.IsZero() {
		return nil, fmt.Errorf("%w: deltaAmount must be non-zero", ErrInvalidInput)
	}

	payment, _, err := s.loadVisible(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.FinanceAmount == nil {
		return nil, ErrAdjustmentsNotAvailable
	}

	adjustment := &domain.PaymentFinanceAdjustment{
		ID:              uuid.New(),
		PaymentID:       payment.ID,
		DeltaAmount:     req.DeltaAmount,
		Reason:          strings.TrimSpace(req.Reason),
		Notes:           strings.TrimSpace(req.Notes),
		CreatedByUserID: userCtx.UserID,
	}
	if err := s.paymentRepo.CreateAdjustment(ctx, adjustment); err != nil {
		return nil, fmt.Errorf("failed to create adjustment: %w", err)
	}

	s.logger.Info("finance adjustment added",
		zap.String("payment_id", paymentID.String()),
		zap.String("delta", req.DeltaAmount.String()))

	return s.GetByID(ctx, paymentID)
}

// VoidAdjustment marks an adjustment void. Adjustments are append-only; a
// mistake is reversed by voiding, never by deleting.
func (s *PaymentService) VoidAdjustment(ctx context.Context, paymentID, adjustmentID uuid.UUID, req *domain.VoidFinanceAdjustmentRequest) (*domain.PaymentRequestDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !userCtx.HasAnyRole(domain.RoleFinance) {
		return nil, ErrPermissionDenied
	}

	if _, _, err := s.loadVisible(ctx, paymentID); err != nil {
		return nil, err
	}

	adjustment, err := s.paymentRepo.GetAdjustment(ctx, adjustmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAdjustmentNotFound
		}
		return nil, fmt.Errorf("failed to get adjustment: %w", err)
	}
	if adjustment.PaymentID != paymentID {
		return nil, ErrAdjustmentNotFound
	}
	if adjustment.IsVoid {
		return nil, ErrAdjustmentAlreadyVoid
	}

	now := time.Now().UTC()
	adjustment.IsVoid = true
	adjustment.VoidedByUserID = &userCtx.UserID
	adjustment.VoidedAt = &now
	adjustment.VoidReason = strings.TrimSpace(req.Reason)

	if err := s.paymentRepo.SaveAdjustment(ctx, adjustment); err != nil {
		return nil, fmt.Errorf("failed to void adjustment: %w", err)
	}

	return s.GetByID(ctx, paymentID)
}

// AddNotificationNote records that the supplier was contacted about a
// payable request. Notes never change status.
func (s *PaymentService) AddNotificationNote(ctx context.Context, paymentID uuid.UUID, req *domain.CreateNotificationNoteRequest) (*domain.PaymentRequestDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !userCtx.HasAnyRole(domain.RolePaymentNotifier, domain.RoleFinance) {
		return nil, ErrPermissionDenied
	}

	payment, _, err := s.loadVisible(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != domain.StatusReadyForPayment && payment.Status != domain.StatusPaid {
		return nil, fmt.Errorf("%w: notes are only available on payable requests", ErrInvalidInput)
	}

	note := &domain.PaymentNotificationNote{
		ID:               uuid.New(),
		PaymentRequestID: payment.ID,
		UserID:           userCtx.UserID,
		Note:             strings.TrimSpace(req.Note),
	}
	if note.Note == "" {
		return nil, fmt.Errorf("%w: note", ErrInvalidInput)
	}
	if err := s.paymentRepo.CreateNotificationNote(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	return s.GetByID(ctx, paymentID)
}

// ApprovalTrail returns the audit rows for one payment.
func (s *PaymentService) ApprovalTrail(ctx context.Context, paymentID uuid.UUID) ([]domain.PaymentApprovalDTO, error) {
	if _, _, err := s.loadVisible(ctx, paymentID); err != nil {
		return nil, err
	}

	approvals, err := s.paymentRepo.ListApprovals(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}

	dtos := make([]domain.PaymentApprovalDTO, len(approvals))
	for i := range approvals {
		dtos[i] = mapper.ToPaymentApprovalDTO(&approvals[i])
	}
	return dtos, nil
}
