package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/repository"
	"github.com/ahc-eng/payflow-api/internal/service"
	"github.com/ahc-eng/payflow-api/internal/workflow"
)

type PurchaseOrderHandler struct {
	poService *service.PurchaseOrderService
	logger    *zap.Logger
}

func NewPurchaseOrderHandler(poService *service.PurchaseOrderService, logger *zap.Logger) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{
		poService: poService,
		logger:    logger,
	}
}

// List returns a filtered, visibility-scoped page of purchase orders.
func (h *PurchaseOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f repository.PurchaseOrderFilters

	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PageSize, _ = strconv.Atoi(q.Get("pageSize"))
	f.Search = q.Get("search")

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
		status := domain.PurchaseOrderStatus(v)
		f.Status = &status
	}

	result, err := h.poService.List(r.Context(), f)
	if err != nil {
		h.logger.Error("failed to list purchase orders", zap.Error(err))
		h.handlePOError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *PurchaseOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePurchaseOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	po, err := h.poService.Create(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to create purchase order", zap.Error(err))
		h.handlePOError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/purchase-orders/"+po.ID.String())
	respondJSON(w, http.StatusCreated, po)
}

func (h *PurchaseOrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid purchase order ID: must be a valid UUID")
		return
	}

	po, err := h.poService.GetByID(r.Context(), id)
	if err != nil {
		if !errors.Is(err, service.ErrNotFound) {
			h.logger.Error("failed to get purchase order", zap.Error(err), zap.String("po_id", id.String()))
		}
		h.handlePOError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, po)
}

func (h *PurchaseOrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid purchase order ID: must be a valid UUID")
		return
	}

	var req domain.UpdatePurchaseOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	po, err := h.poService.Update(r.Context(), id, &req)
	if err != nil {
		h.logger.Error("failed to update purchase order", zap.Error(err), zap.String("po_id", id.String()))
		h.handlePOError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, po)
}

func (h *PurchaseOrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid purchase order ID: must be a valid UUID")
		return
	}

	if err := h.poService.Delete(r.Context(), id); err != nil {
		h.logger.Error("failed to delete purchase order", zap.Error(err), zap.String("po_id", id.String()))
		h.handlePOError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Transition moves a purchase order along its approval chain.
func (h *PurchaseOrderHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid purchase order ID: must be a valid UUID")
		return
	}

	var req domain.PurchaseOrderTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	po, err := h.poService.Transition(r.Context(), id, req.To, &domain.PurchaseOrderDecisionRequest{Comment: req.Comment})
	if err != nil {
		h.logger.Warn("purchase order transition refused",
			zap.Error(err),
			zap.String("po_id", id.String()),
			zap.String("to", string(req.To)))
		h.handlePOError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, po)
}

// handlePOError maps service errors to HTTP status codes
func (h *PurchaseOrderHandler) handlePOError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrPurchaseOrderNotFound), errors.Is(err, service.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Purchase order not found")
	case errors.Is(err, service.ErrDuplicateBONumber):
		respondWithError(w, http.StatusConflict, "BO number already exists")
	case errors.Is(err, service.ErrProjectNotFound):
		respondWithError(w, http.StatusBadRequest, "Project not found")
	case errors.Is(err, service.ErrPurchaseOrderNotEditable):
		respondWithError(w, http.StatusBadRequest, "Only draft purchase orders can be edited")
	case errors.Is(err, service.ErrPurchaseOrderInUse):
		respondWithError(w, http.StatusConflict, "Purchase order has linked payment requests")
	case errors.Is(err, service.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, "Invalid input")
	case errors.Is(err, service.ErrConcurrentModification):
		respondWithError(w, http.StatusConflict, "Purchase order was modified by someone else; reload and retry")
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
