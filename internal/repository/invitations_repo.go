package repository

import (
	"context"
	"time"

	"kosmo-admin/internal/domain"
)

// InvitationsRepository 邀请码Repository接口
type InvitationsRepository interface {
	ListInvitations(ctx context.Context, filter InvitationFilters, page Page) ([]*domain.Invitation, int, error)
	GetInvitation(ctx context.Context, invitationID int64) (*domain.Invitation, error)

	// CodeExists 邀请码全局唯一检查（不区分大小写）
	CodeExists(ctx context.Context, code string) (bool, error)

	// CreateInvitation 插入并回填 ID；code 冲突返回 domain Conflict
	CreateInvitation(ctx context.Context, inv *domain.Invitation) error

	// DeleteUnusedInvitation 仅删除未使用的邀请码
	DeleteUnusedInvitation(ctx context.Context, invitationID int64) error

	// RedeemInvitation 条件更新：仅当邀请码未使用、未过期，且未绑定邮箱或绑定的就是 email
	RedeemInvitation(ctx context.Context, code string, userID, tenantID int64, email string, now time.Time) (*domain.Invitation, error)
}

// InvitationFilters 邀请码过滤器
type InvitationFilters struct {
	Status string    // 可选：used / unused / expired
	Now    time.Time // expired 判断基准时间
}
