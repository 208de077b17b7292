package handler

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/service"
)

type ReconciliationHandler struct {
	reconciliationService *service.ReconciliationService
	logger                *zap.Logger
}

func NewReconciliationHandler(reconciliationService *service.ReconciliationService, logger *zap.Logger) *ReconciliationHandler {
	return &ReconciliationHandler{
		reconciliationService: reconciliationService,
		logger:                logger,
	}
}

// Report compares settled payments against the accounting ledger per
// supplier. Period bounds come from `from` and `to` query parameters
// (YYYY-MM-DD); `to` is exclusive and defaults to tomorrow, `from` defaults
// to 30 days back.
func (h *ReconciliationHandler) Report(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30).Truncate(24 * time.Hour)
	to := now.Truncate(24*time.Hour).AddDate(0, 0, 1)

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "from must be a date in YYYY-MM-DD format")
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "to must be a date in YYYY-MM-DD format")
			return
		}
		to = parsed
	}

	report, err := h.reconciliationService.Report(r.Context(), from, to)
	if err != nil {
		h.handleReconciliationError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

func (h *ReconciliationHandler) handleReconciliationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrLedgerDisabled):
		respondWithError(w, http.StatusServiceUnavailable, "Ledger integration is not enabled for this environment")
	case errors.Is(err, service.ErrPermissionDenied):
		respondWithError(w, http.StatusForbidden, "You don't have permission to run reconciliation")
	case errors.Is(err, service.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrUserContextRequired):
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
	default:
		h.logger.Error("failed to build reconciliation report", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to build reconciliation report")
	}
}
