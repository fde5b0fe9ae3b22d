package httpapi

import (
	"net/http"

	"kosmo-admin/internal/service"

	"go.uber.org/zap"
)

// BillingHandler Square 计费
type BillingHandler struct {
	billing      service.BillingService
	maxBodyBytes int64
	logger       *zap.Logger
}

func NewBillingHandler(billing service.BillingService, maxBodyBytes int64, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{billing: billing, maxBodyBytes: maxBodyBytes, logger: logger}
}

// Status GET /admin/api/v1/billing/status
func (h *BillingHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.billing.Status()))
}

// Overview GET /admin/api/v1/billing/overview
func (h *BillingHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.billing.Overview(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(ov))
}

// TenantBilling GET /admin/api/v1/billing/tenants/{tenant}
func (h *BillingHandler) TenantBilling(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "tenant")
	if !ok {
		writeNotFound(w, "Tenant not found")
		return
	}
	tb, err := h.billing.TenantBilling(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(tb))
}

// CreateSubscription POST /admin/api/v1/billing/tenants/{tenant}/subscription
func (h *BillingHandler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "tenant")
	if !ok {
		writeNotFound(w, "Tenant not found")
		return
	}
	var req service.CreateSubscriptionRequest
	if err := readBodyJSON(r, h.maxBodyBytes, &req); err != nil {
		writeBadBody(w)
		return
	}
	sub, err := h.billing.CreateSubscription(r.Context(), id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, OkMessage("Subscription updated successfully", sub))
}

// CreateInvoice POST /admin/api/v1/billing/tenants/{tenant}/invoices
func (h *BillingHandler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "tenant")
	if !ok {
		writeNotFound(w, "Tenant not found")
		return
	}
	var req service.CreateInvoiceRequest
	if err := readBodyJSON(r, h.maxBodyBytes, &req); err != nil {
		writeBadBody(w)
		return
	}
	inv, err := h.billing.CreateInvoice(r.Context(), id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, OkMessage("Invoice created successfully", inv))
}

// RecordPayment POST /admin/api/v1/billing/tenants/{tenant}/payments
func (h *BillingHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "tenant")
	if !ok {
		writeNotFound(w, "Tenant not found")
		return
	}
	var req service.RecordPaymentRequest
	if err := readBodyJSON(r, h.maxBodyBytes, &req); err != nil {
		writeBadBody(w)
		return
	}
	p, err := h.billing.RecordPayment(r.Context(), id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, OkMessage("Payment recorded successfully", p))
}

// Cancel POST /admin/api/v1/billing/tenants/{tenant}/cancel
func (h *BillingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "tenant")
	if !ok {
		writeNotFound(w, "Tenant not found")
		return
	}
	sub, err := h.billing.CancelSubscription(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, OkMessage("Subscription cancelled", sub))
}

type updatePlanRequest struct {
	Plan string `json:"plan"`
}

// UpdatePlan PUT /admin/api/v1/subscriptions/{tenant}
func (h *BillingHandler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "tenant")
	if !ok {
		writeNotFound(w, "Tenant not found")
		return
	}
	var req updatePlanRequest
	if err := readBodyJSON(r, h.maxBodyBytes, &req); err != nil {
		writeBadBody(w)
		return
	}
	res, err := h.billing.UpdatePlan(r.Context(), id, req.Plan)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, OkMessage(res.Message, res))
}
