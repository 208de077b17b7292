package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/service"
)

type NotificationHandler struct {
	notificationService *service.NotificationService
	logger              *zap.Logger
}

func NewNotificationHandler(notificationService *service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		logger:              logger,
	}
}

// List returns the current user's notifications, newest first.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	unreadOnly := r.URL.Query().Get("unreadOnly") == "true"

	result, err := h.notificationService.GetForCurrentUser(r.Context(), page, pageSize, unreadOnly)
	if err != nil {
		h.logger.Error("failed to list notifications", zap.Error(err))
		h.handleNotificationError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *NotificationHandler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.notificationService.GetUnreadCount(r.Context())
	if err != nil {
		h.logger.Error("failed to count unread notifications", zap.Error(err))
		h.handleNotificationError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, count)
}

func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid notification ID: must be a valid UUID")
		return
	}

	if err := h.notificationService.MarkAsRead(r.Context(), id); err != nil {
		if !errors.Is(err, service.ErrNotificationNotFound) {
			h.logger.Error("failed to mark notification as read", zap.Error(err), zap.String("notification_id", id.String()))
		}
		h.handleNotificationError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notificationService.MarkAllAsReadForUser(r.Context()); err != nil {
		h.logger.Error("failed to mark all notifications as read", zap.Error(err))
		h.handleNotificationError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleNotificationError maps service errors to HTTP status codes
func (h *NotificationHandler) handleNotificationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotificationNotFound):
		respondWithError(w, http.StatusNotFound, "Notification not found")
	case errors.Is(err, service.ErrUserContextRequired), errors.Is(err, service.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
