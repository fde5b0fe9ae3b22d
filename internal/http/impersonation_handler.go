package httpapi

import (
	"net/http"

	"kosmo-admin/internal/service"
	"kosmo-admin/internal/session"

	"go.uber.org/zap"
)

// ImpersonationHandler 超级管理员模拟登录
type ImpersonationHandler struct {
	impersonation service.ImpersonationService
	logger        *zap.Logger
}

func NewImpersonationHandler(impersonation service.ImpersonationService, logger *zap.Logger) *ImpersonationHandler {
	return &ImpersonationHandler{impersonation: impersonation, logger: logger}
}

// Start POST /admin/api/v1/impersonate/{user}
func (h *ImpersonationHandler) Start(w http.ResponseWriter, r *http.Request) {
	targetID, ok := pathID(r, "user")
	if !ok {
		writeNotFound(w, "User not found")
		return
	}
	res, err := h.impersonation.Start(r.Context(), session.FromContext(r.Context()), UserFromContext(r.Context()), targetID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, OkMessage(res.Message, res))
}

// Stop POST /admin/api/v1/impersonate/stop
func (h *ImpersonationHandler) Stop(w http.ResponseWriter, r *http.Request) {
	res, err := h.impersonation.Stop(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, OkMessage(res.Message, res))
}

// Status GET /admin/api/v1/impersonate/status
func (h *ImpersonationHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.impersonation.Status(session.FromContext(r.Context()))))
}
