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

type UserHandler struct {
	userService *service.UserService
	logger      *zap.Logger
}

func NewUserHandler(userService *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	search := r.URL.Query().Get("search")

	result, err := h.userService.List(r.Context(), page, pageSize, search)
	if err != nil {
		h.logger.Error("failed to list users", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	user, err := h.userService.Create(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to create user", zap.Error(err))
		h.handleUserError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID: must be a valid UUID")
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		if !errors.Is(err, service.ErrUserNotFound) {
			h.logger.Error("failed to get user", zap.Error(err), zap.String("user_id", id.String()))
		}
		h.handleUserError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// Update replaces the user's profile, role and project assignments.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID: must be a valid UUID")
		return
	}

	var req domain.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	user, err := h.userService.Update(r.Context(), id, &req)
	if err != nil {
		h.logger.Error("failed to update user", zap.Error(err), zap.String("user_id", id.String()))
		h.handleUserError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// Deactivate disables the account. Users are never hard-deleted because
// their IDs hang off approval and notification rows.
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID: must be a valid UUID")
		return
	}

	if err := h.userService.Deactivate(r.Context(), id); err != nil {
		h.logger.Error("failed to deactivate user", zap.Error(err), zap.String("user_id", id.String()))
		h.handleUserError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListRoles returns every role the admin screen can assign.
func (h *UserHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, domain.AllRoles)
}

// handleUserError maps service errors to HTTP status codes
func (h *UserHandler) handleUserError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		respondWithError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrDuplicateEmail):
		respondWithError(w, http.StatusConflict, "Email already in use")
	case errors.Is(err, service.ErrInvalidRole):
		respondWithError(w, http.StatusBadRequest, "Unknown role")
	case errors.Is(err, service.ErrProjectNotFound):
		respondWithError(w, http.StatusBadRequest, "One or more projects not found")
	case errors.Is(err, service.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, "Invalid input")
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
