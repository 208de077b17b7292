package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/service"
)

type DashboardHandler struct {
	dashboardService *service.DashboardService
	logger           *zap.Logger
}

func NewDashboardHandler(dashboardService *service.DashboardService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		logger:           logger,
	}
}

// Chips returns the navbar badge counts (action required, overdue, unread).
func (h *DashboardHandler) Chips(w http.ResponseWriter, r *http.Request) {
	chips, err := h.dashboardService.ChipCounts(r.Context())
	if err != nil {
		h.handleDashboardError(w, err, "failed to compute chip counts")
		return
	}

	respondJSON(w, http.StatusOK, chips)
}

// Metrics returns the dashboard KPI header, status breakdown, per-project
// totals and recent activity, all inside the caller's visibility.
func (h *DashboardHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.dashboardService.Metrics(r.Context())
	if err != nil {
		h.handleDashboardError(w, err, "failed to compute dashboard metrics")
		return
	}

	respondJSON(w, http.StatusOK, metrics)
}

// StageDurations reports stage dwell times for in-flight payments (most
// overdue first) together with trail-derived per-stage averages and the
// overdue breakdown.
func (h *DashboardHandler) StageDurations(w http.ResponseWriter, r *http.Request) {
	report, err := h.dashboardService.StageDurations(r.Context())
	if err != nil {
		h.handleDashboardError(w, err, "failed to compute stage durations")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

func (h *DashboardHandler) handleDashboardError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, service.ErrUnauthorized) || errors.Is(err, service.ErrUserContextRequired) {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	h.logger.Error(msg, zap.Error(err))
	respondWithError(w, http.StatusInternalServerError, "Internal server error")
}
