package domain

import (
	"strings"
	"time"
)

// 公告类型
const (
	AnnouncementInfo    = "info"
	AnnouncementWarning = "warning"
	AnnouncementSuccess = "success"
	AnnouncementAlert   = "alert"
)

// TargetAll 面向所有租户
const TargetAll = "all"

var announcementTypes = map[string]bool{
	AnnouncementInfo:    true,
	AnnouncementWarning: true,
	AnnouncementSuccess: true,
	AnnouncementAlert:   true,
}

// IsAnnouncementType 检查公告类型是否合法
func IsAnnouncementType(t string) bool { return announcementTypes[t] }

// Announcement 公告（对应 announcements 表）
type Announcement struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Type          string     `json:"type"`
	Target        string     `json:"target"`
	IsActive      bool       `json:"is_active"`
	IsDismissible bool       `json:"is_dismissible"`
	StartsAt      *time.Time `json:"starts_at"`
	EndsAt        *time.Time `json:"ends_at"`
	CreatedBy     *int64     `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Creator *UserSummary `json:"creator,omitempty"`
}

// IsLive 是否处于展示窗口内（active 且在起止时间之间）
func (a *Announcement) IsLive(now time.Time) bool {
	if !a.IsActive {
		return false
	}
	if a.StartsAt != nil && a.StartsAt.After(now) {
		return false
	}
	if a.EndsAt != nil && a.EndsAt.Before(now) {
		return false
	}
	return true
}

// Targets 公告是否面向该套餐的租户
func (a *Announcement) Targets(plan string) bool {
	return a.Target == TargetAll || a.Target == PlanTarget(plan)
}

// PlanTarget 生成 "plan:<plan>" 目标
func PlanTarget(plan string) string { return "plan:" + plan }

// ParsePlanTarget 解析 "plan:<plan>"，非该格式返回 false
func ParsePlanTarget(target string) (string, bool) {
	plan, ok := strings.CutPrefix(target, "plan:")
	return plan, ok && plan != ""
}
