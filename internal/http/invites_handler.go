package httpapi

import (
	"net/http"

	"kosmo-admin/internal/service"

	"go.uber.org/zap"
)

// InvitesHandler 邀请码管理
type InvitesHandler struct {
	invitations  service.InvitationService
	maxBodyBytes int64
	logger       *zap.Logger
}

func NewInvitesHandler(invitations service.InvitationService, maxBodyBytes int64, logger *zap.Logger) *InvitesHandler {
	return &InvitesHandler{invitations: invitations, maxBodyBytes: maxBodyBytes, logger: logger}
}

// Index GET /admin/api/v1/invites?status=used|unused|expired&page=
func (h *InvitesHandler) Index(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.invitations.Index(r.Context(), q.Get("status"), parseInt(q.Get("page"), 1))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(page))
}

// Store POST /admin/api/v1/invites
func (h *InvitesHandler) Store(w http.ResponseWriter, r *http.Request) {
	var req service.CreateInvitationRequest
	if err := readBodyJSON(r, h.maxBodyBytes, &req); err != nil {
		writeBadBody(w)
		return
	}
	inv, err := h.invitations.Store(r.Context(), UserFromContext(r.Context()), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, OkMessage("Invite code generated successfully", inv))
}

// Destroy DELETE /admin/api/v1/invites/{invite}
func (h *InvitesHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "invite")
	if !ok {
		writeNotFound(w, "Invitation not found")
		return
	}
	if err := h.invitations.Destroy(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, OkMessage[any]("Invite code revoked", nil))
}

// Redeem POST /api/v1/invites/redeem（注册流程，已登录用户）
func (h *InvitesHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req service.RedeemInvitationRequest
	if err := readBodyJSON(r, h.maxBodyBytes, &req); err != nil {
		writeBadBody(w)
		return
	}
	user := UserFromContext(r.Context())
	req.UserID = user.ID
	req.Email = user.Email
	// 已归属租户的用户以自身租户为准
	if user.TenantID != nil {
		req.TenantID = *user.TenantID
	}
	inv, err := h.invitations.Redeem(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, OkMessage("Invite code redeemed", inv))
}
