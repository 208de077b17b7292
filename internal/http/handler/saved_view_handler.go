package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/service"
)

type SavedViewHandler struct {
	savedViewService *service.SavedViewService
	logger           *zap.Logger
}

func NewSavedViewHandler(savedViewService *service.SavedViewService, logger *zap.Logger) *SavedViewHandler {
	return &SavedViewHandler{
		savedViewService: savedViewService,
		logger:           logger,
	}
}

// List returns the current user's saved filter bookmarks.
func (h *SavedViewHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.savedViewService.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list saved views", zap.Error(err))
		h.handleSavedViewError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, views)
}

func (h *SavedViewHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSavedViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	view, err := h.savedViewService.Create(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to create saved view", zap.Error(err))
		h.handleSavedViewError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, view)
}

func (h *SavedViewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid saved view ID: must be a valid UUID")
		return
	}

	if err := h.savedViewService.Delete(r.Context(), id); err != nil {
		if !errors.Is(err, service.ErrSavedViewNotFound) {
			h.logger.Error("failed to delete saved view", zap.Error(err), zap.String("view_id", id.String()))
		}
		h.handleSavedViewError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleSavedViewError maps service errors to HTTP status codes
func (h *SavedViewHandler) handleSavedViewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSavedViewNotFound):
		respondWithError(w, http.StatusNotFound, "Saved view not found")
	case errors.Is(err, service.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, "Invalid input")
	case errors.Is(err, service.ErrUserContextRequired), errors.Is(err, service.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
