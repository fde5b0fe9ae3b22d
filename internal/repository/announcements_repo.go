package repository

import (
	"context"
	"time"

	"kosmo-admin/internal/domain"
)

// AnnouncementsRepository 公告Repository接口
type AnnouncementsRepository interface {
	ListAnnouncements(ctx context.Context, filter AnnouncementFilters, page Page) ([]*domain.Announcement, int, error)
	GetAnnouncement(ctx context.Context, announcementID int64) (*domain.Announcement, error)
	CreateAnnouncement(ctx context.Context, a *domain.Announcement) error
	UpdateAnnouncement(ctx context.Context, a *domain.Announcement) error
	DeleteAnnouncement(ctx context.Context, announcementID int64) error
	ToggleAnnouncement(ctx context.Context, announcementID int64) (*domain.Announcement, error)

	// ListForUser 生效中、面向该套餐、且用户未关闭的公告，最新在前
	ListForUser(ctx context.Context, plan string, userID int64, now time.Time, limit int) ([]*domain.Announcement, error)

	// Dismiss 幂等记录关闭
	Dismiss(ctx context.Context, announcementID, userID int64, at time.Time) error
}

// AnnouncementFilters 公告过滤器
type AnnouncementFilters struct {
	ActiveOnly bool
	Now        time.Time
}

// AnnouncementPageSize 公告列表分页大小
const AnnouncementPageSize = 15
