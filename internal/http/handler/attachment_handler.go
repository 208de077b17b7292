package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/service"
)

type AttachmentHandler struct {
	attachmentService *service.AttachmentService
	logger            *zap.Logger
}

func NewAttachmentHandler(attachmentService *service.AttachmentService, logger *zap.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		attachmentService: attachmentService,
		logger:            logger,
	}
}

// Upload attaches an invoice or supporting document to a payment request.
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid payment ID: must be a valid UUID")
		return
	}

	// Limit request size
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxAttachmentSize+1)

	if err := r.ParseMultipartForm(service.MaxAttachmentSize); err != nil {
		respondWithError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File too large: maximum size is %dMB", service.MaxAttachmentSize/(1<<20)))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid file upload: file field is required")
		return
	}
	defer file.Close()

	attachment, err := h.attachmentService.Upload(r.Context(), paymentID,
		header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrPaymentNotFound):
			respondWithError(w, http.StatusNotFound, "Payment request not found")
		case errors.Is(err, service.ErrAttachmentTooLarge):
			respondWithError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File too large: maximum size is %dMB", service.MaxAttachmentSize/(1<<20)))
		case errors.Is(err, service.ErrInvalidInput):
			respondWithError(w, http.StatusBadRequest, "Unsupported file type")
		default:
			h.logger.Error("failed to upload attachment", zap.Error(err), zap.String("payment_id", paymentID.String()))
			respondWithError(w, http.StatusInternalServerError, "Failed to upload attachment")
		}
		return
	}

	respondJSON(w, http.StatusCreated, attachment)
}

// List returns the documents attached to a payment request.
func (h *AttachmentHandler) List(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid payment ID: must be a valid UUID")
		return
	}

	attachments, err := h.attachmentService.List(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrPaymentNotFound) {
			respondWithError(w, http.StatusNotFound, "Payment request not found")
			return
		}
		h.logger.Error("failed to list attachments", zap.Error(err), zap.String("payment_id", paymentID.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to list attachments")
		return
	}

	respondJSON(w, http.StatusOK, attachments)
}

// Download streams an attachment back to the caller.
func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid payment ID: must be a valid UUID")
		return
	}

	attachmentID, err := uuid.Parse(chi.URLParam(r, "attachmentId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid attachment ID: must be a valid UUID")
		return
	}

	reader, attachment, err := h.attachmentService.Download(r.Context(), paymentID, attachmentID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrAttachmentNotFound) ||
			errors.Is(err, service.ErrPaymentNotFound) {
			respondWithError(w, http.StatusNotFound, "Attachment not found")
			return
		}
		h.logger.Error("failed to download attachment",
			zap.Error(err),
			zap.String("payment_id", paymentID.String()),
			zap.String("attachment_id", attachmentID.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to download attachment")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Disposition", "attachment; filename=\""+attachment.OriginalFilename+"\"")
	contentType := attachment.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)

	_, _ = io.Copy(w, reader)
}
