package mapper

import (
	"time"

	"github.com/ahc-eng/payflow-api/internal/domain"
)

const timestampLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// ToUserDTO converts User to UserDTO
func ToUserDTO(user *domain.User) domain.UserDTO {
	dto := domain.UserDTO{
		ID:          user.ID,
		FullName:    user.FullName,
		Email:       user.Email,
		Role:        user.Role,
		ProjectID:   user.ProjectID,
		IsActive:    user.IsActive,
		LastLoginAt: formatTimePtr(user.LastLoginAt),
		CreatedAt:   formatTime(user.CreatedAt),
	}
	if user.Project != nil {
		dto.ProjectName = user.Project.Name
	}
	for _, a := range user.Assignments {
		row := domain.UserProjectDTO{ProjectID: a.ProjectID, Role: a.Role}
		if a.Project != nil {
			row.ProjectName = a.Project.Name
		}
		dto.Projects = append(dto.Projects, row)
	}
	return dto
}

// ToProjectDTO converts Project to ProjectDTO
func ToProjectDTO(project *domain.Project) domain.ProjectDTO {
	return domain.ProjectDTO{
		ID:        project.ID,
		Name:      project.Name,
		Code:      project.Code,
		CreatedAt: formatTime(project.CreatedAt),
	}
}

// ToSupplierDTO converts Supplier to SupplierDTO
func ToSupplierDTO(supplier *domain.Supplier) domain.SupplierDTO {
	return domain.SupplierDTO{
		ID:           supplier.ID,
		Name:         supplier.Name,
		SupplierType: supplier.SupplierType,
		CreatedAt:    formatTime(supplier.CreatedAt),
	}
}

// ToPaymentRequestDTO converts PaymentRequest to PaymentRequestDTO. SLA and
// AllowedActions are per-request computations filled in by the service layer.
func ToPaymentRequestDTO(payment *domain.PaymentRequest) domain.PaymentRequestDTO {
	dto := domain.PaymentRequestDTO{
		ID:                 payment.ID,
		ProjectID:          payment.ProjectID,
		SupplierID:         payment.SupplierID,
		RequestType:        payment.RequestType,
		Amount:             payment.Amount,
		FinanceAmount:      payment.FinanceAmount,
		ProgressPercentage: payment.ProgressPercentage,
		Description:        payment.Description,
		Status:             payment.Status,
		PurchaseOrderID:    payment.PurchaseOrderID,
		CreatedBy:          payment.CreatedBy,
		SubmittedToPMAt:    formatTimePtr(payment.SubmittedToPMAt),
		CreatedAt:          formatTime(payment.CreatedAt),
		UpdatedAt:          formatTime(payment.UpdatedAt),
	}

	if payment.Project != nil {
		dto.ProjectName = payment.Project.Name
	}
	if payment.Supplier != nil {
		dto.Supplier = payment.Supplier.Name
	}
	if payment.Creator != nil {
		dto.CreatedByName = payment.Creator.FullName
	}
	if payment.PurchaseOrder != nil {
		dto.BONumber = payment.PurchaseOrder.BONumber
	}

	if payment.FinanceAmount != nil {
		effective := payment.FinanceEffectiveAmount()
		dto.FinanceEffective = &effective
		dto.FinanceDiff = payment.FinanceDiff()
	}

	for _, approval := range payment.Approvals {
		dto.Approvals = append(dto.Approvals, ToPaymentApprovalDTO(&approval))
	}
	for _, attachment := range payment.Attachments {
		dto.Attachments = append(dto.Attachments, ToPaymentAttachmentDTO(&attachment))
	}
	for _, note := range payment.NotificationNotes {
		dto.NotificationNotes = append(dto.NotificationNotes, ToPaymentNotificationNoteDTO(&note))
	}
	for _, adj := range payment.FinanceAdjustments {
		dto.Adjustments = append(dto.Adjustments, ToFinanceAdjustmentDTO(&adj))
	}

	return dto
}

// ToPaymentApprovalDTO converts PaymentApproval to PaymentApprovalDTO
func ToPaymentApprovalDTO(approval *domain.PaymentApproval) domain.PaymentApprovalDTO {
	dto := domain.PaymentApprovalDTO{
		ID:          approval.ID,
		Step:        approval.Step,
		Action:      approval.Action,
		OldStatus:   approval.OldStatus,
		NewStatus:   approval.NewStatus,
		Comment:     approval.Comment,
		DecidedByID: approval.DecidedByID,
		DecidedAt:   formatTime(approval.DecidedAt),
	}
	if approval.DecidedBy != nil {
		dto.DecidedByName = approval.DecidedBy.FullName
	}
	return dto
}

// ToPaymentAttachmentDTO converts PaymentAttachment to PaymentAttachmentDTO
func ToPaymentAttachmentDTO(attachment *domain.PaymentAttachment) domain.PaymentAttachmentDTO {
	dto := domain.PaymentAttachmentDTO{
		ID:               attachment.ID,
		OriginalFilename: attachment.OriginalFilename,
		MimeType:         attachment.MimeType,
		Size:             attachment.Size,
		UploadedByID:     attachment.UploadedByID,
		UploadedAt:       formatTime(attachment.UploadedAt),
	}
	if attachment.UploadedBy != nil {
		dto.UploadedByName = attachment.UploadedBy.FullName
	}
	return dto
}

// ToPaymentNotificationNoteDTO converts PaymentNotificationNote to its DTO
func ToPaymentNotificationNoteDTO(note *domain.PaymentNotificationNote) domain.PaymentNotificationNoteDTO {
	dto := domain.PaymentNotificationNoteDTO{
		ID:        note.ID,
		UserID:    note.UserID,
		Note:      note.Note,
		CreatedAt: formatTime(note.CreatedAt),
	}
	if note.User != nil {
		dto.UserName = note.User.FullName
	}
	return dto
}

// ToFinanceAdjustmentDTO converts PaymentFinanceAdjustment to its DTO
func ToFinanceAdjustmentDTO(adj *domain.PaymentFinanceAdjustment) domain.FinanceAdjustmentDTO {
	dto := domain.FinanceAdjustmentDTO{
		ID:          adj.ID,
		DeltaAmount: adj.DeltaAmount,
		Reason:      adj.Reason,
		Notes:       adj.Notes,
		CreatedByID: adj.CreatedByUserID,
		CreatedAt:   formatTime(adj.CreatedAt),
		IsVoid:      adj.IsVoid,
		VoidedByID:  adj.VoidedByUserID,
		VoidedAt:    formatTimePtr(adj.VoidedAt),
		VoidReason:  adj.VoidReason,
	}
	if adj.CreatedBy != nil {
		dto.CreatedByName = adj.CreatedBy.FullName
	}
	if adj.VoidedBy != nil {
		dto.VoidedByName = adj.VoidedBy.FullName
	}
	return dto
}

// ToPurchaseOrderDTO converts PurchaseOrder to PurchaseOrderDTO
func ToPurchaseOrderDTO(po *domain.PurchaseOrder) domain.PurchaseOrderDTO {
	dto := domain.PurchaseOrderDTO{
		ID:              po.ID,
		BONumber:        po.BONumber,
		ProjectID:       po.ProjectID,
		SupplierID:      po.SupplierID,
		SupplierName:    po.SupplierName,
		TotalAmount:     po.TotalAmount,
		AdvanceAmount:   po.AdvanceAmount,
		ReservedAmount:  po.ReservedAmount,
		PaidAmount:      po.PaidAmount,
		RemainingAmount: po.RemainingAmount,
		Status:          po.Status,
		CreatedByID:     po.CreatedByID,
		CreatedAt:       formatTime(po.CreatedAt),
		UpdatedAt:       formatTime(po.UpdatedAt),
	}
	if po.Project != nil {
		dto.ProjectName = po.Project.Name
	}
	if po.CreatedBy != nil {
		dto.CreatedByName = po.CreatedBy.FullName
	}
	for _, decision := range po.Decisions {
		dto.Decisions = append(dto.Decisions, ToPurchaseOrderDecisionDTO(&decision))
	}
	return dto
}

// ToPurchaseOrderDecisionDTO converts PurchaseOrderDecision to its DTO
func ToPurchaseOrderDecisionDTO(decision *domain.PurchaseOrderDecision) domain.PurchaseOrderDecisionDTO {
	dto := domain.PurchaseOrderDecisionDTO{
		ID:          decision.ID,
		Action:      decision.Action,
		FromStatus:  decision.FromStatus,
		ToStatus:    decision.ToStatus,
		Comment:     decision.Comment,
		DecidedByID: decision.DecidedByID,
		DecidedAt:   formatTime(decision.DecidedAt),
	}
	if decision.DecidedBy != nil {
		dto.DecidedByName = decision.DecidedBy.FullName
	}
	return dto
}

// ToNotificationDTO converts Notification to NotificationDTO
func ToNotificationDTO(notification *domain.Notification) domain.NotificationDTO {
	return domain.NotificationDTO{
		ID:        notification.ID,
		Title:     notification.Title,
		Message:   notification.Message,
		URL:       notification.URL,
		Read:      notification.Read,
		CreatedAt: formatTime(notification.CreatedAt),
	}
}

// ToSavedViewDTO converts SavedView to SavedViewDTO
func ToSavedViewDTO(view *domain.SavedView) domain.SavedViewDTO {
	return domain.SavedViewDTO{
		ID:          view.ID,
		Name:        view.Name,
		Endpoint:    view.Endpoint,
		QueryString: view.QueryString,
		CreatedAt:   formatTime(view.CreatedAt),
	}
}
