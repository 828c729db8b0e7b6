package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"lean-protocol-billing/internal/domain"
)

type errorResponse struct {
	Error  string      `json:"error"`
	Detail interface{} `json:"detail,omitempty"`
}

type admissionConflictDetail struct {
	BlockingSubscriptionID string     `json:"blockingSubscriptionId"`
	Status                 string     `json:"status"`
	PlanName               string     `json:"planName"`
	EndDate                *time.Time `json:"endDate,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses. Raw internal detail is
// logged, never forwarded.
func writeError(w http.ResponseWriter, log *zerolog.Logger, err error) {
	var conflict *domain.AdmissionConflictError
	if errors.As(err, &conflict) {
		msg := "You already have an active subscription."
		if conflict.Status == "pending_approval" {
			msg = "Your subscription is awaiting approval."
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: msg,
			Detail: admissionConflictDetail{
				BlockingSubscriptionID: conflict.SubscriptionID,
				Status:                 conflict.Status,
				PlanName:               conflict.PlanName,
				EndDate:                conflict.EndDate,
			},
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
	case errors.Is(err, domain.ErrSignatureInvalid):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "payment signature invalid"})
	case errors.Is(err, domain.ErrInvalidTransition):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid state transition"})
	case errors.Is(err, domain.ErrAlreadyProcessed):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "already processed"})
	case errors.Is(err, domain.ErrNotRefundable):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "this plan is not refundable"})
	case errors.Is(err, domain.ErrDuplicateRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "a refund was already requested for this subscription"})
	case errors.Is(err, domain.ErrNoCapturedPayment):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no captured payment for this subscription"})
	case errors.Is(err, domain.ErrFeatureUnavailable):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "feature not available on this plan"})
	case errors.Is(err, domain.ErrLastActiveAdmin):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "cannot deactivate the last active admin"})
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
	case errors.Is(err, domain.ErrSweepInProgress):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "a reconciliation sweep is already running"})
	case errors.Is(err, domain.ErrGatewayUnavailable):
		log.Error().Err(err).Msg("gateway call failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "payment gateway unavailable"})
	default:
		log.Error().Err(err).Msg("unhandled error")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
