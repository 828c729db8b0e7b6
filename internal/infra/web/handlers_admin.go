package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"lean-protocol-billing/internal/usecase"
)

type decisionRequest struct {
	Status          string `json:"status"` // APPROVED | REJECTED
	RejectionReason string `json:"rejectionReason"`
	AdminNotes      string `json:"adminNotes"`
}

func (d decisionRequest) valid() bool {
	return d.Status == "APPROVED" || d.Status == "REJECTED"
}

func (s *Server) handleSubscriptionDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "status must be APPROVED or REJECTED"})
		return
	}

	sub, err := s.subUC.Decide(r.Context(), chi.URLParam(r, "id"), AdminFrom(r.Context()),
		req.Status == "APPROVED", req.RejectionReason)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionView(sub))
}

type refundView struct {
	ID             string     `json:"id"`
	SubscriptionID string     `json:"subscriptionId"`
	Reason         string     `json:"reason"`
	Status         string     `json:"status"`
	RefundAmount   *int64     `json:"refundAmount,omitempty"`
	AdminNotes     *string    `json:"adminNotes,omitempty"`
	RequestedAt    time.Time  `json:"requestedAt"`
	ProcessedAt    *time.Time `json:"processedAt,omitempty"`
}

func (s *Server) handleRefundDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "status must be APPROVED or REJECTED"})
		return
	}

	rr, err := s.refundUC.Decide(r.Context(), chi.URLParam(r, "id"), AdminFrom(r.Context()),
		req.Status == "APPROVED", req.AdminNotes)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, refundView{
		ID:             rr.ID,
		SubscriptionID: rr.SubscriptionID,
		Reason:         rr.Reason,
		Status:         string(rr.Status),
		RefundAmount:   rr.RefundAmount,
		AdminNotes:     rr.AdminNotes,
		RequestedAt:    rr.RequestedAt,
		ProcessedAt:    rr.ProcessedAt,
	})
}

func (s *Server) handleRefundsPending(w http.ResponseWriter, r *http.Request) {
	pending, err := s.refundUC.ListPending(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	out := make([]refundView, 0, len(pending))
	for _, rr := range pending {
		out = append(out, refundView{
			ID:             rr.ID,
			SubscriptionID: rr.SubscriptionID,
			Reason:         rr.Reason,
			Status:         string(rr.Status),
			RequestedAt:    rr.RequestedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	olderThan := time.Duration(0)
	if v := r.URL.Query().Get("olderThanMinutes"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil || minutes < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "olderThanMinutes must be a non-negative integer"})
			return
		}
		olderThan = time.Duration(minutes) * time.Minute
	}

	report, err := s.reconcile.Sweep(r.Context(), olderThan, 0)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type planRequest struct {
	Name                  string   `json:"name"`
	Price                 int64    `json:"price"`
	OriginalPrice         *int64   `json:"originalPrice"`
	DurationDays          int      `json:"durationDays"`
	Features              []string `json:"features"`
	IsDefault             bool     `json:"isDefault"`
	DisplayOrder          int      `json:"displayOrder"`
	AllowMultiplePurchase bool     `json:"allowMultiplePurchase"`
	IsRefundable          bool     `json:"isRefundable"`
	AllowAutoRenew        bool     `json:"allowAutoRenew"`
}

func (p planRequest) toInput() usecase.PlanInput {
	return usecase.PlanInput{
		Name:                  p.Name,
		Price:                 p.Price,
		OriginalPrice:         p.OriginalPrice,
		DurationDays:          p.DurationDays,
		Features:              p.Features,
		IsDefault:             p.IsDefault,
		DisplayOrder:          p.DisplayOrder,
		AllowMultiplePurchase: p.AllowMultiplePurchase,
		IsRefundable:          p.IsRefundable,
		AllowAutoRenew:        p.AllowAutoRenew,
	}
}

func (s *Server) handleAdminPlansList(w http.ResponseWriter, r *http.Request) {
	plans, err := s.planUC.ListAll(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	out := make([]planView, 0, len(plans))
	for _, p := range plans {
		out = append(out, toPlanView(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePlanCreate(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body"})
		return
	}
	plan, err := s.planUC.Create(r.Context(), req.toInput())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanView(plan))
}

func (s *Server) handlePlanUpdate(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body"})
		return
	}
	plan, err := s.planUC.Update(r.Context(), chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanView(plan))
}

func (s *Server) handlePlanDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.planUC.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

type adminView struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

func (s *Server) handleAdminsList(w http.ResponseWriter, r *http.Request) {
	admins, err := s.adminUC.List(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	out := make([]adminView, 0, len(admins))
	for _, a := range admins {
		out = append(out, adminView{ID: a.ID, Email: a.Email, Name: a.Name, IsActive: a.IsActive})
	}
	writeJSON(w, http.StatusOK, out)
}

type adminCreateRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *Server) handleAdminCreate(w http.ResponseWriter, r *http.Request) {
	var req adminCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "email is required"})
		return
	}
	a, err := s.adminUC.Create(r.Context(), req.Email, req.Name)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, adminView{ID: a.ID, Email: a.Email, Name: a.Name, IsActive: a.IsActive})
}

func (s *Server) handleAdminDeactivate(w http.ResponseWriter, r *http.Request) {
	if err := s.adminUC.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
