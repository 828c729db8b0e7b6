package web

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"lean-protocol-billing/internal/domain/model"
)

type createOrderRequest struct {
	PlanID string `json:"planId"`
}

type createOrderResponse struct {
	OrderID        string `json:"orderId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	KeyID          string `json:"keyId"`
	SubscriptionID string `json:"subscriptionId"`
	PaymentID      string `json:"paymentId"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlanID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "planId is required"})
		return
	}

	session, err := s.orderUC.CreateOrder(r.Context(), IdentityFrom(r.Context()), req.PlanID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, createOrderResponse{
		OrderID:        session.OrderID,
		Amount:         session.Amount,
		Currency:       session.Currency,
		KeyID:          session.KeyID,
		SubscriptionID: session.SubscriptionID,
		PaymentID:      session.PaymentID,
	})
}

type verifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpayOrderId"`
	RazorpayPaymentID string `json:"razorpayPaymentId"`
	RazorpaySignature string `json:"razorpaySignature"`
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" || req.RazorpaySignature == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "razorpayOrderId, razorpayPaymentId and razorpaySignature are required"})
		return
	}

	subscriptionID, err := s.payUC.Verify(r.Context(), IdentityFrom(r.Context()),
		req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"subscriptionId": subscriptionID})
}

type failPaymentRequest struct {
	RazorpayOrderID string `json:"razorpayOrderId"`
	FailureReason   string `json:"failureReason"`
}

func (s *Server) handleFailPayment(w http.ResponseWriter, r *http.Request) {
	var req failPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RazorpayOrderID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "razorpayOrderId is required"})
		return
	}

	if err := s.payUC.ReportFailure(r.Context(), IdentityFrom(r.Context()), req.RazorpayOrderID, req.FailureReason); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unreadable body"})
		return
	}
	signature := r.Header.Get("X-Razorpay-Signature")

	if err := s.payUC.HandleWebhook(r.Context(), body, signature); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type refundRequestBody struct {
	SubscriptionID string `json:"subscriptionId"`
	Reason         string `json:"reason"`
}

func (s *Server) handleRefundRequest(w http.ResponseWriter, r *http.Request) {
	var req refundRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SubscriptionID == "" || req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "subscriptionId and reason are required"})
		return
	}

	rr, err := s.refundUC.Request(r.Context(), IdentityFrom(r.Context()), req.SubscriptionID, req.Reason)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"refundRequestId": rr.ID})
}

type subscriptionView struct {
	ID              string     `json:"id"`
	PlanID          string     `json:"planId"`
	Status          string     `json:"status"`
	StartDate       *time.Time `json:"startDate,omitempty"`
	EndDate         *time.Time `json:"endDate,omitempty"`
	AutoRenew       bool       `json:"autoRenew"`
	RejectionReason *string    `json:"rejectionReason,omitempty"`
}

func toSubscriptionView(sub *model.Subscription) subscriptionView {
	return subscriptionView{
		ID:              sub.ID,
		PlanID:          sub.PlanID,
		Status:          string(sub.Status),
		StartDate:       sub.StartDate,
		EndDate:         sub.EndDate,
		AutoRenew:       sub.AutoRenew,
		RejectionReason: sub.RejectionReason,
	}
}

func (s *Server) handleSubscriptionList(w http.ResponseWriter, r *http.Request) {
	subs, err := s.subUC.ListByAccount(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	out := make([]subscriptionView, 0, len(subs))
	for _, sub := range subs {
		out = append(out, toSubscriptionView(sub))
	}
	writeJSON(w, http.StatusOK, out)
}

type autoRenewRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleAutoRenew(w http.ResponseWriter, r *http.Request) {
	var req autoRenewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body"})
		return
	}

	sub, err := s.subUC.ToggleAutoRenew(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id"), req.Enabled)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionView(sub))
}

type planView struct {
	ID                    string   `json:"id"`
	Name                  string   `json:"name"`
	Price                 int64    `json:"price"`
	OriginalPrice         *int64   `json:"originalPrice,omitempty"`
	DurationDays          int      `json:"durationDays"`
	Features              []string `json:"features"`
	IsDefault             bool     `json:"isDefault"`
	DisplayOrder          int      `json:"displayOrder"`
	AllowMultiplePurchase bool     `json:"allowMultiplePurchase"`
	IsRefundable          bool     `json:"isRefundable"`
	AllowAutoRenew        bool     `json:"allowAutoRenew"`
	IsActive              bool     `json:"isActive"`
}

func toPlanView(p *model.Plan) planView {
	return planView{
		ID:                    p.ID,
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
		IsActive:              p.IsActive,
	}
}

func (s *Server) handlePlansList(w http.ResponseWriter, r *http.Request) {
	plans, err := s.planUC.ListActive(r.Context())
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
