package repository

import (
	"context"
	"time"

	"kosmo-admin/internal/domain"
)

// UsersRepository 用户Repository接口
type UsersRepository interface {
	// GetUser 按 id 查询，不存在返回 domain NotFound
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// EmailExists 邮箱是否已被占用；excludeUserID 非 0 时排除该用户自身
	EmailExists(ctx context.Context, email string, excludeUserID int64) (bool, error)

	// ListTenantStaff 租户下非 customer 角色的用户
	ListTenantStaff(ctx context.Context, tenantID int64) ([]*domain.User, error)

	// TenantAdminEmail 租户第一个 admin 用户的邮箱，没有时返回空串
	TenantAdminEmail(ctx context.Context, tenantID int64) (string, error)

	// UpdateUser 更新 name/email，passwordHash 非 nil 时同时更新密码
	UpdateUser(ctx context.Context, user *domain.User, passwordHash *string) error

	// MarkEmailVerified 设置 email_verified_at
	MarkEmailVerified(ctx context.Context, userID int64, at time.Time) error
}
