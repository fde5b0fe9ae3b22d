package httpapi

import (
	"net/http"

	"kosmo-admin/internal/service"

	"go.uber.org/zap"
)

// AnnouncementsHandler 公告（管理端 + 租户端）
type AnnouncementsHandler struct {
	announcements service.AnnouncementService
	maxBodyBytes  int64
	logger        *zap.Logger
}

func NewAnnouncementsHandler(announcements service.AnnouncementService, maxBodyBytes int64, logger *zap.Logger) *AnnouncementsHandler {
	return &AnnouncementsHandler{announcements: announcements, maxBodyBytes: maxBodyBytes, logger: logger}
}

// Index GET /admin/api/v1/announcements?active_only=1&page=
func (h *AnnouncementsHandler) Index(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	activeOnly := q.Get("active_only") == "1" || q.Get("active_only") == "true"
	page, err := h.announcements.Index(r.Context(), activeOnly, parseInt(q.Get("page"), 1))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(page))
}

// Store POST /admin/api/v1/announcements
func (h *AnnouncementsHandler) Store(w http.ResponseWriter, r *http.Request) {
	var req service.AnnouncementRequest
	if err := readBodyJSON(r, h.maxBodyBytes, &req); err != nil {
		writeBadBody(w)
		return
	}
	a, err := h.announcements.Store(r.Context(), UserFromContext(r.Context()), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, OkMessage("Announcement created successfully", a))
}

// Show GET /admin/api/v1/announcements/{announcement}
func (h *AnnouncementsHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "announcement")
	if !ok {
		writeNotFound(w, "Announcement not found")
		return
	}
	a, err := h.announcements.Show(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(a))
}

// Update PUT /admin/api/v1/announcements/{announcement}
func (h *AnnouncementsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "announcement")
	if !ok {
		writeNotFound(w, "Announcement not found")
		return
	}
	var req service.AnnouncementRequest
	if err := readBodyJSON(r, h.maxBodyBytes, &req); err != nil {
		writeBadBody(w)
		return
	}
	a, err := h.announcements.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, OkMessage("Announcement updated", a))
}

// Destroy DELETE /admin/api/v1/announcements/{announcement}
func (h *AnnouncementsHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "announcement")
	if !ok {
		writeNotFound(w, "Announcement not found")
		return
	}
	if err := h.announcements.Destroy(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, OkMessage[any]("Announcement deleted", nil))
}

// Toggle POST /admin/api/v1/announcements/{announcement}/toggle
func (h *AnnouncementsHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "announcement")
	if !ok {
		writeNotFound(w, "Announcement not found")
		return
	}
	a, err := h.announcements.Toggle(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	msg := "Announcement deactivated"
	if a.IsActive {
		msg = "Announcement activated"
	}
	writeJSON(w, http.StatusOK, OkMessage(msg, a))
}

// ForUser GET /api/v1/announcements
func (h *AnnouncementsHandler) ForUser(w http.ResponseWriter, r *http.Request) {
	items, err := h.announcements.ForUser(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(items))
}

// Dismiss POST /api/v1/announcements/{announcement}/dismiss
func (h *AnnouncementsHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "announcement")
	if !ok {
		writeNotFound(w, "Announcement not found")
		return
	}
	if err := h.announcements.Dismiss(r.Context(), UserFromContext(r.Context()), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, OkMessage[any]("Announcement dismissed", nil))
}
