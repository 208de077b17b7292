package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ahc-eng/payflow-api/internal/auth"
	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/mapper"
	"github.com/ahc-eng/payflow-api/internal/repository"
	"github.com/ahc-eng/payflow-api/internal/storage"
)

// ErrAttachmentNotFound is returned when an attachment is not found
var ErrAttachmentNotFound = errors.New("attachment not found")

// ErrAttachmentTooLarge is returned when an upload exceeds the size limit
var ErrAttachmentTooLarge = errors.New("attachment exceeds the size limit")

// MaxAttachmentSize caps uploads at 25 MiB.
const MaxAttachmentSize = 25 << 20

// allowedAttachmentExtensions lists the document types the upload accepts.
var allowedAttachmentExtensions = map[string]bool{
	".pdf": true, ".png": true, ".jpg": true, ".jpeg": true,
	".xls": true, ".xlsx": true, ".doc": true, ".docx": true, ".csv": true,
}

// AttachmentService handles payment request document uploads
type AttachmentService struct {
	paymentRepo *repository.PaymentRepository
	payments    *PaymentService
	storage     storage.Storage
	logger      *zap.Logger
}

// NewAttachmentService creates a new attachment service instance
func NewAttachmentService(
	paymentRepo *repository.PaymentRepository,
	payments *PaymentService,
	storage storage.Storage,
	logger *zap.Logger,
) *AttachmentService {
	return &AttachmentService{
		paymentRepo: paymentRepo,
		payments:    payments,
		storage:     storage,
		logger:      logger,
	}
}

// Upload stores a document against a visible payment request
func (s *AttachmentService) Upload(ctx context.Context, paymentID uuid.UUID, filename, contentType string, size int64, data io.Reader) (*domain.PaymentAttachmentDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if size > MaxAttachmentSize {
		return nil, ErrAttachmentTooLarge
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedAttachmentExtensions[ext] {
		return nil, fmt.Errorf("%w: file type %q is not accepted", ErrInvalidInput, ext)
	}

	if _, _, err := s.payments.loadVisible(ctx, paymentID); err != nil {
		return nil, err
	}

	storedPath, written, err := s.storage.Upload(ctx, filename, contentType, io.LimitReader(data, MaxAttachmentSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to store attachment: %w", err)
	}
	if written > MaxAttachmentSize {
		if err := s.storage.Delete(ctx, storedPath); err != nil {
			s.logger.Warn("failed to remove oversized upload", zap.Error(err))
		}
		return nil, ErrAttachmentTooLarge
	}

	attachment := &domain.PaymentAttachment{
		ID:               uuid.New(),
		PaymentRequestID: paymentID,
		OriginalFilename: filepath.Base(filename),
		StoredFilename:   storedPath,
		MimeType:         contentType,
		Size:             written,
		UploadedByID:     &userCtx.UserID,
	}
	if err := s.paymentRepo.CreateAttachment(ctx, attachment); err != nil {
		if err := s.storage.Delete(ctx, storedPath); err != nil {
			s.logger.Warn("failed to clean up orphaned upload", zap.Error(err))
		}
		return nil, fmt.Errorf("failed to record attachment: %w", err)
	}

	s.logger.Info("attachment uploaded",
		zap.String("payment_id", paymentID.String()),
		zap.String("filename", attachment.OriginalFilename),
		zap.Int64("size", written))

	dto := mapper.ToPaymentAttachmentDTO(attachment)
	return &dto, nil
}

// List returns a visible payment's attachments, oldest first.
func (s *AttachmentService) List(ctx context.Context, paymentID uuid.UUID) ([]domain.PaymentAttachmentDTO, error) {
	if _, _, err := s.payments.loadVisible(ctx, paymentID); err != nil {
		return nil, err
	}

	attachments, err := s.paymentRepo.ListAttachments(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}

	dtos := make([]domain.PaymentAttachmentDTO, 0, len(attachments))
	for i := range attachments {
		dtos = append(dtos, mapper.ToPaymentAttachmentDTO(&attachments[i]))
	}
	return dtos, nil
}

// Download streams an attachment the caller is allowed to see. The returned
// reader must be closed by the caller.
func (s *AttachmentService) Download(ctx context.Context, paymentID, attachmentID uuid.UUID) (io.ReadCloser, *domain.PaymentAttachment, error) {
	if _, _, err := s.payments.loadVisible(ctx, paymentID); err != nil {
		return nil, nil, err
	}

	attachment, err := s.paymentRepo.GetAttachment(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrAttachmentNotFound
		}
		return nil, nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	if attachment.PaymentRequestID != paymentID {
		return nil, nil, ErrAttachmentNotFound
	}

	reader, err := s.storage.Download(ctx, attachment.StoredFilename)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open attachment: %w", err)
	}
	return reader, attachment, nil
}
