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
	"github.com/ahc-eng/payflow-api/internal/service"
)

// SupplierHandler handles HTTP requests for supplier operations
type SupplierHandler struct {
	supplierService *service.SupplierService
	logger          *zap.Logger
}

// NewSupplierHandler creates a new supplier handler instance
func NewSupplierHandler(supplierService *service.SupplierService, logger *zap.Logger) *SupplierHandler {
	return &SupplierHandler{
		supplierService: supplierService,
		logger:          logger,
	}
}

func (h *SupplierHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	search := r.URL.Query().Get("search")

	result, err := h.supplierService.List(r.Context(), page, pageSize, search)
	if err != nil {
		h.logger.Error("failed to list suppliers", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list suppliers")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *SupplierHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSupplierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	supplier, err := h.supplierService.Create(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to create supplier", zap.Error(err))
		h.handleSupplierError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, supplier)
}

func (h *SupplierHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid supplier ID: must be a valid UUID")
		return
	}

	supplier, err := h.supplierService.GetByID(r.Context(), id)
	if err != nil {
		if !errors.Is(err, service.ErrSupplierNotFound) {
			h.logger.Error("failed to get supplier", zap.Error(err), zap.String("supplier_id", id.String()))
		}
		h.handleSupplierError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, supplier)
}

// handleSupplierError maps service errors to HTTP status codes
func (h *SupplierHandler) handleSupplierError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSupplierNotFound):
		respondWithError(w, http.StatusNotFound, "Supplier not found")
	case errors.Is(err, service.ErrDuplicateSupplierName):
		respondWithError(w, http.StatusConflict, "Supplier name already exists")
	case errors.Is(err, service.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, "Invalid input")
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
