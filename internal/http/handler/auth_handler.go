package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/auth"
	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
	userService *service.UserService
	logger      *zap.Logger
}

func NewAuthHandler(authService *service.AuthService, userService *service.UserService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
		logger:      logger,
	}
}

// Login verifies credentials and returns a bearer token with the user profile.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	resp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			respondWithError(w, http.StatusUnauthorized, "Invalid email or password")
		case errors.Is(err, service.ErrAccountDisabled):
			respondWithError(w, http.StatusForbidden, "Account is disabled")
		default:
			h.logger.Error("login failed", zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "Login failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Me returns the authenticated user's profile including project assignments.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.userService.GetByID(r.Context(), userCtx.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			respondWithError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		h.logger.Error("failed to load current user", zap.Error(err), zap.String("user_id", userCtx.UserID.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to load user")
		return
	}

	respondJSON(w, http.StatusOK, user)
}
