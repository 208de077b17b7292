package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ahc-eng/payflow-api/internal/domain"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// DB exposes the underlying handle for transaction scoping.
func (r *PaymentRepository) DB() *gorm.DB {
	return r.db
}

func (r *PaymentRepository) Create(ctx context.Context, payment *domain.PaymentRequest) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(payment).Error
}

func (r *PaymentRepository) Save(ctx context.Context, payment *domain.PaymentRequest) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(payment).Error
}

// GetByID loads a payment with its relations for a detail view.
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentRequest, error) {
	var payment domain.PaymentRequest
	err := r.db.WithContext(ctx).
		Preload("Project").
		Preload("Supplier").
		Preload("PurchaseOrder").
		Preload("Creator").
		Preload("Approvals", func(db *gorm.DB) *gorm.DB {
			return db.Order("decided_at ASC").Preload("DecidedBy")
		}).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB {
			return db.Order("uploaded_at ASC").Preload("UploadedBy")
		}).
		Preload("NotificationNotes", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC").Preload("User")
		}).
		Preload("FinanceAdjustments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Preload("CreatedBy").Preload("VoidedBy")
		}).
		First(&payment, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByIDForUpdate loads a payment inside tx with a row lock, for status
// transitions.
func (r *PaymentRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.PaymentRequest, error) {
	var payment domain.PaymentRequest
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&payment, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// Delete removes a payment and its owned rows. Foreign keys cascade in
// postgres; the explicit deletes keep sqlite test databases honest.
func (r *PaymentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("payment_request_id = ?", id).Delete(&domain.PaymentApproval{}).Error; err != nil {
			return err
		}
		if err := tx.Where("payment_request_id = ?", id).Delete(&domain.PaymentAttachment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("payment_request_id = ?", id).Delete(&domain.PaymentNotificationNote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("payment_id = ?", id).Delete(&domain.PaymentFinanceAdjustment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.PaymentRequest{}, "id = ?", id).Error
	})
}

// CreateApproval appends an audit row, usually inside the transition tx.
func (r *PaymentRepository) CreateApproval(ctx context.Context, tx *gorm.DB, approval *domain.PaymentApproval) error {
	return tx.WithContext(ctx).Omit(clause.Associations).Create(approval).Error
}

// ListApprovals returns the full audit trail in decision order.
func (r *PaymentRepository) ListApprovals(ctx context.Context, paymentID uuid.UUID) ([]domain.PaymentApproval, error) {
	var approvals []domain.PaymentApproval
	err := r.db.WithContext(ctx).
		Preload("DecidedBy").
		Where("payment_request_id = ?", paymentID).
		Order("decided_at ASC").
		Find(&approvals).Error
	return approvals, err
}

// CreateAdjustment appends a finance adjustment row.
func (r *PaymentRepository) CreateAdjustment(ctx context.Context, adjustment *domain.PaymentFinanceAdjustment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(adjustment).Error
}

// GetAdjustment loads one adjustment row.
func (r *PaymentRepository) GetAdjustment(ctx context.Context, id uuid.UUID) (*domain.PaymentFinanceAdjustment, error) {
	var adjustment domain.PaymentFinanceAdjustment
	err := r.db.WithContext(ctx).First(&adjustment, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &adjustment, nil
}

// SaveAdjustment persists void markers on an adjustment.
func (r *PaymentRepository) SaveAdjustment(ctx context.Context, adjustment *domain.PaymentFinanceAdjustment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(adjustment).Error
}

// CreateNotificationNote appends a supplier-contact note.
func (r *PaymentRepository) CreateNotificationNote(ctx context.Context, note *domain.PaymentNotificationNote) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(note).Error
}

// CreateAttachment records an uploaded file.
func (r *PaymentRepository) CreateAttachment(ctx context.Context, attachment *domain.PaymentAttachment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(attachment).Error
}

// ListAttachments returns a payment's attachments, oldest first.
func (r *PaymentRepository) ListAttachments(ctx context.Context, paymentID uuid.UUID) ([]domain.PaymentAttachment, error) {
	var attachments []domain.PaymentAttachment
	err := r.db.WithContext(ctx).
		Where("payment_request_id = ?", paymentID).
		Order("created_at ASC").
		Find(&attachments).Error
	if err != nil {
		return nil, err
	}
	return attachments, nil
}

// GetAttachment loads one attachment row.
func (r *PaymentRepository) GetAttachment(ctx context.Context, id uuid.UUID) (*domain.PaymentAttachment, error) {
	var attachment domain.PaymentAttachment
	err := r.db.WithContext(ctx).First(&attachment, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &attachment, nil
}
