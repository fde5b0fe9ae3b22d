package domain

import "time"

// 用户角色
const (
	RoleAdmin    = "admin"
	RoleStaff    = "staff"
	RoleCustomer = "customer"
)

// User 用户领域模型（对应 users 表）
type User struct {
	ID              int64      `json:"id"`
	TenantID        *int64     `json:"tenant_id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"`
	Role            string     `json:"role"`
	IsSuperAdmin    bool       `json:"is_super_admin"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// BelongsTo 判断用户是否属于指定租户
func (u *User) BelongsTo(tenantID int64) bool {
	return u.TenantID != nil && *u.TenantID == tenantID
}

// UserSummary 对外返回的精简用户信息
type UserSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	TenantID *int64 `json:"tenant_id"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, TenantID: u.TenantID}
}
