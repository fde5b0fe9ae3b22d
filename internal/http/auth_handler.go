package httpapi

import (
	"net/http"

	"kosmo-admin/internal/domain"
	"kosmo-admin/internal/service"
	"kosmo-admin/internal/session"

	"go.uber.org/zap"
)

// AuthHandler 登录/登出/当前用户
type AuthHandler struct {
	auth          service.AuthService
	impersonation service.ImpersonationService
	logger        *zap.Logger
}

func NewAuthHandler(auth service.AuthService, impersonation service.ImpersonationService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, impersonation: impersonation, logger: logger}
}

type meResponse struct {
	User          *domain.User                `json:"user"`
	Impersonation service.ImpersonationStatus `json:"impersonation"`
}

// Login POST /auth/api/v1/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := readBodyJSON(r, defaultMaxBodyBytes, &req); err != nil {
		writeBadBody(w)
		return
	}
	req.IPAddress = clientIP(r)
	req.UserAgent = r.UserAgent()

	user, err := h.auth.Login(r.Context(), session.FromContext(r.Context()), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, OkMessage("Logged in", meResponse{User: user}))
}

// Logout POST /auth/api/v1/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), session.FromContext(r.Context())); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, OkMessage[any]("Logged out", nil))
}

// Me GET /auth/api/v1/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	user, err := h.auth.CurrentUser(r.Context(), sess)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(meResponse{User: user, Impersonation: h.impersonation.Status(sess)}))
}
