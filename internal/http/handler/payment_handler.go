package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/repository"
	"github.com/ahc-eng/payflow-api/internal/service"
	"github.com/ahc-eng/payflow-api/internal/workflow"
)

type PaymentHandler struct {
	paymentService *service.PaymentService
	logger         *zap.Logger
}

func NewPaymentHandler(paymentService *service.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// parsePaymentFilters reads the listing filters from the query string.
// Unparseable values are ignored rather than rejected so stale saved views
// degrade to an unfiltered listing.
func parsePaymentFilters(r *http.Request) repository.PaymentFilters {
	q := r.URL.Query()
	var f repository.PaymentFilters

	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PageSize, _ = strconv.Atoi(q.Get("pageSize"))

	if v := q.Get("projectId"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			f.ProjectID = &id
		}
	}
	if v := q.Get("supplierId"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			f.SupplierID = &id
		}
	}
	if v := q.Get("status"); v != "" {
		status := domain.PaymentStatus(v)
		f.Status = &status
	}
	if v := q.Get("requestType"); v != "" {
		rt := domain.RequestType(v)
		f.RequestType = &rt
	}
	if v := q.Get("createdFrom"); v != "" {
		if ts, err := time.Parse("2006-01-02", v); err == nil {
			f.CreatedFrom = &ts
		}
	}
	if v := q.Get("createdTo"); v != "" {
		if ts, err := time.Parse("2006-01-02", v); err == nil {
			end := ts.Add(24 * time.Hour)
			f.CreatedTo = &end
		}
	}
	if v := q.Get("amountMin"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			f.AmountMin = &d
		}
	}
	if v := q.Get("amountMax"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			f.AmountMax = &d
		}
	}
	f.Search = q.Get("search")
	f.SortBy = q.Get("sortBy")
	f.SortDesc = q.Get("sortOrder") != "asc"

	return f
}

// List returns a filtered, visibility-scoped page of payment requests.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.paymentService.List(r.Context(), parsePaymentFilters(r))
	if err != nil {
		h.logger.Error("failed to list payments", zap.Error(err))
		h.handlePaymentError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Export returns the full filtered listing without pagination, refusing
// result sets over the row cap.
func (h *PaymentHandler) Export(w http.ResponseWriter, r *http.Request) {
	rows, err := h.paymentService.Export(r.Context(), parsePaymentFilters(r))
	if err != nil {
		h.logger.Error("failed to export payments", zap.Error(err))
		h.handlePaymentError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rows)
}

// Inbox lists the payments currently waiting on the requesting user's role.
func (h *PaymentHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))

	result, err := h.paymentService.Inbox(r.Context(), page, pageSize)
	if err != nil {
		h.logger.Error("failed to list inbox", zap.Error(err))
		h.handlePaymentError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	payment, err := h.paymentService.Create(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to create payment", zap.Error(err))
		h.handlePaymentError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/payments/"+payment.ID.String())
	respondJSON(w, http.StatusCreated, payment)
}

func (h *PaymentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid payment ID: must be a valid UUID")
		return
	}

	payment, err := h.paymentService.GetByID(r.Context(), id)
	if err != nil {
		if !errors.Is(err, service.ErrNotFound) {
			h.logger.Error("failed to get payment", zap.Error(err), zap.String("payment_id", id.String()))
		}
		h.handlePaymentError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, payment)
}

func (h *PaymentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid payment ID: must be a valid UUID")
		return
	}

	var req domain.UpdatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	payment, err := h.paymentService.Update(r.Context(), id, &req)
	if err != nil {
		h.logger.Error("failed to update payment", zap.Error(err), zap.String("payment_id", id.String()))
		h.handlePaymentError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, payment)
}

func (h *PaymentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid payment ID: must be a valid UUID")
		return
	}

	if err := h.paymentService.Delete(r.Context(), id); err != nil {
		h.logger.Error("failed to delete payment", zap.Error(err), zap.String("payment_id", id.String()))
		h.handlePaymentError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ApprovalTrail returns the full decision history for a payment.
func (h *PaymentHandler) ApprovalTrail(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid payment ID: must be a valid UUID")
		return
	}

	trail, err := h.paymentService.ApprovalTrail(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get approval trail", zap.Error(err), zap.String("payment_id", id.String()))
		h.handlePaymentError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, trail)
}

// handlePaymentError maps service errors to HTTP status codes
func (h *PaymentHandler) handlePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrPaymentNotFound), errors.Is(err, service.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Payment request not found")
	case errors.Is(err, service.ErrProjectNotFound):
		respondWithError(w, http.StatusBadRequest, "Project not found")
	case errors.Is(err, service.ErrPurchaseOrderNotFound):
		respondWithError(w, http.StatusBadRequest, "Purchase order not found")
	case errors.Is(err, service.ErrPurchaseOrderNotApproved):
		respondWithError(w, http.StatusBadRequest, "Purchase order is not finance approved")
	case errors.Is(err, service.ErrInsufficientPOFunds):
		respondWithError(w, http.StatusBadRequest, "Purchase order has insufficient remaining funds")
	case errors.Is(err, service.ErrPaymentNotEditable):
		respondWithError(w, http.StatusBadRequest, "Only draft payments can be edited")
	case errors.Is(err, service.ErrFinanceAmountRequired):
		respondWithError(w, http.StatusBadRequest, "A finance amount must be set before marking as paid")
	case errors.Is(err, service.ErrAdjustmentNotFound):
		respondWithError(w, http.StatusNotFound, "Adjustment not found")
	case errors.Is(err, service.ErrAdjustmentAlreadyVoid):
		respondWithError(w, http.StatusConflict, "Adjustment is already voided")
	case errors.Is(err, service.ErrAdjustmentsNotAvailable):
		respondWithError(w, http.StatusBadRequest, "Adjustments require a finance amount on the payment")
	case errors.Is(err, service.ErrExportTooLarge):
		respondWithError(w, http.StatusBadRequest, "Export exceeds the row cap; narrow the filters")
	case errors.Is(err, service.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, "Invalid input")
	case errors.Is(err, service.ErrConcurrentModification):
		respondWithError(w, http.StatusConflict, "Payment was modified by someone else; reload and retry")
	case errors.Is(err, workflow.ErrInvalidTransition):
		respondWithError(w, http.StatusConflict, "Invalid status transition")
	case errors.Is(err, workflow.ErrRoleNotAllowed):
		respondWithError(w, http.StatusForbidden, "Your role cannot perform this transition")
	case errors.Is(err, service.ErrPermissionDenied):
		respondWithError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, service.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
