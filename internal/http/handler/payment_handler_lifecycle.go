package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/domain"
)

// Transition moves a payment to the requested target status. The body names
// the target explicitly; the service validates it against the transition
// table for the caller's role and the payment's current status.
func (h *PaymentHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid payment ID: must be a valid UUID")
		return
	}

	var req domain.PaymentTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	decision := &domain.PaymentDecisionRequest{
		Comment:       req.Comment,
		FinanceAmount: req.FinanceAmount,
	}

	payment, err := h.paymentService.Transition(r.Context(), id, req.To, decision)
	if err != nil {
		h.logger.Warn("payment transition refused",
			zap.Error(err),
			zap.String("payment_id", id.String()),
			zap.String("to", string(req.To)))
		h.handlePaymentError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, payment)
}

// AddAdjustment records a post-approval finance correction on a payment.
func (h *PaymentHandler) AddAdjustment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid payment ID: must be a valid UUID")
		return
	}

	var req domain.CreateFinanceAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	payment, err := h.paymentService.AddAdjustment(r.Context(), id, &req)
	if err != nil {
		h.logger.Error("failed to add adjustment", zap.Error(err), zap.String("payment_id", id.String()))
		h.handlePaymentError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, payment)
}

// VoidAdjustment voids a previously recorded finance correction. The row is
// kept for the audit trail; only its effect on the effective amount is undone.
func (h *PaymentHandler) VoidAdjustment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid payment ID: must be a valid UUID")
		return
	}

	adjustmentID, err := uuid.Parse(chi.URLParam(r, "adjustmentId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid adjustment ID: must be a valid UUID")
		return
	}

	var req domain.VoidFinanceAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	payment, err := h.paymentService.VoidAdjustment(r.Context(), id, adjustmentID, &req)
	if err != nil {
		h.logger.Error("failed to void adjustment",
			zap.Error(err),
			zap.String("payment_id", id.String()),
			zap.String("adjustment_id", adjustmentID.String()))
		h.handlePaymentError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, payment)
}

// AddNotificationNote records a payment-notifier remark on a payment that has
// reached ready_for_payment or paid.
func (h *PaymentHandler) AddNotificationNote(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid payment ID: must be a valid UUID")
		return
	}

	var req domain.CreateNotificationNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	payment, err := h.paymentService.AddNotificationNote(r.Context(), id, &req)
	if err != nil {
		h.logger.Error("failed to add notification note", zap.Error(err), zap.String("payment_id", id.String()))
		h.handlePaymentError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, payment)
}
