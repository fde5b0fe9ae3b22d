package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"kosmo-admin/internal/repository"
	"kosmo-admin/internal/service"

	"go.uber.org/zap"
)

// TenantsHandler 租户管理（平台级）
type TenantsHandler struct {
	tenants      service.TenantService
	maxBodyBytes int64
	logger       *zap.Logger
	now          func() time.Time
}

func NewTenantsHandler(tenants service.TenantService, maxBodyBytes int64, logger *zap.Logger) *TenantsHandler {
	return &TenantsHandler{tenants: tenants, maxBodyBytes: maxBodyBytes, logger: logger, now: time.Now}
}

func tenantFilters(r *http.Request) repository.TenantFilters {
	q := r.URL.Query()
	return repository.TenantFilters{
		Search: strings.TrimSpace(q.Get("search")),
		Plan:   strings.TrimSpace(q.Get("plan")),
		Status: strings.TrimSpace(q.Get("status")),
	}
}

// List GET /admin/api/v1/tenants?search=&plan=&status=&page=
func (h *TenantsHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.tenants.List(r.Context(), service.ListTenantsRequest{
		Filters: tenantFilters(r),
		Page:    parseInt(r.URL.Query().Get("page"), 1),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(page))
}

// Export GET /admin/api/v1/tenants/export（与列表相同的过滤条件）
func (h *TenantsHandler) Export(w http.ResponseWriter, r *http.Request) {
	items, err := h.tenants.Export(r.Context(), tenantFilters(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	data, err := GenerateTenantExport(items)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	filename := fmt.Sprintf("tenants-%s.xlsx", h.now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Create POST /admin/api/v1/tenants
func (h *TenantsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTenantRequest
	if err := readBodyJSON(r, h.maxBodyBytes, &req); err != nil {
		writeBadBody(w)
		return
	}
	res, err := h.tenants.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, OkMessage(res.Message, res))
}

// Show GET /admin/api/v1/tenants/{tenant}
func (h *TenantsHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "tenant")
	if !ok {
		writeNotFound(w, "Tenant not found")
		return
	}
	detail, err := h.tenants.Show(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(detail))
}

// Update PUT /admin/api/v1/tenants/{tenant}
func (h *TenantsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "tenant")
	if !ok {
		writeNotFound(w, "Tenant not found")
		return
	}
	var req service.UpdateTenantRequest
	if err := readBodyJSON(r, h.maxBodyBytes, &req); err != nil {
		writeBadBody(w)
		return
	}
	tenant, err := h.tenants.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, OkMessage("Tenant updated successfully", tenant))
}

// Suspend POST /admin/api/v1/tenants/{tenant}/suspend（切换）
func (h *TenantsHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "tenant")
	if !ok {
		writeNotFound(w, "Tenant not found")
		return
	}
	tenant, err := h.tenants.ToggleSuspend(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	msg := "Tenant reactivated"
	if tenant.IsSuspended {
		msg = "Tenant suspended"
	}
	writeJSON(w, http.StatusOK, OkMessage(msg, tenant))
}

// Destroy DELETE /admin/api/v1/tenants/{tenant}
func (h *TenantsHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "tenant")
	if !ok {
		writeNotFound(w, "Tenant not found")
		return
	}
	if err := h.tenants.Destroy(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, OkMessage[any]("Tenant has been permanently deleted", nil))
}

// UpdateUser PUT /admin/api/v1/tenants/{tenant}/users/{user}
func (h *TenantsHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	tenantID, ok1 := pathID(r, "tenant")
	userID, ok2 := pathID(r, "user")
	if !ok1 || !ok2 {
		writeNotFound(w, "User does not belong to this tenant")
		return
	}
	var req service.UpdateTenantUserRequest
	if err := readBodyJSON(r, h.maxBodyBytes, &req); err != nil {
		writeBadBody(w)
		return
	}
	user, err := h.tenants.UpdateUser(r.Context(), tenantID, userID, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, OkMessage("User updated successfully", user))
}

// VerifyUser POST /admin/api/v1/tenants/{tenant}/users/{user}/verify
func (h *TenantsHandler) VerifyUser(w http.ResponseWriter, r *http.Request) {
	tenantID, ok1 := pathID(r, "tenant")
	userID, ok2 := pathID(r, "user")
	if !ok1 || !ok2 {
		writeNotFound(w, "User does not belong to this tenant")
		return
	}
	user, err := h.tenants.VerifyUserEmail(r.Context(), tenantID, userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, OkMessage("Email verified successfully", user))
}
