package repository

import (
	"context"
	"time"

	"kosmo-admin/internal/domain"
)

// TenantsRepository 租户Repository接口
type TenantsRepository interface {
	GetTenant(ctx context.Context, tenantID int64) (*domain.Tenant, error)

	// ListTenants 分页列表，附带 users/bookings/services 数量
	ListTenants(ctx context.Context, filter TenantFilters, page Page) ([]*domain.TenantListItem, int, error)

	// ExportTenants 同 ListTenants 但不分页
	ExportTenants(ctx context.Context, filter TenantFilters) ([]*domain.TenantListItem, error)

	// SlugExists / DomainExists 唯一性检查，excludeTenantID 非 0 时排除自身
	SlugExists(ctx context.Context, slug string, excludeTenantID int64) (bool, error)
	DomainExists(ctx context.Context, domainName string, excludeTenantID int64) (bool, error)

	// CreateTenantWithAdmin 在同一事务中创建租户和管理员用户，回填 ID
	CreateTenantWithAdmin(ctx context.Context, tenant *domain.Tenant, admin *domain.User) error

	// UpdateTenant 更新租户；plan 非 nil 时同一事务内同步订阅套餐
	UpdateTenant(ctx context.Context, tenant *domain.Tenant, plan *PlanChange) error

	// ChangePlan 只改套餐（租户 + 订阅）
	ChangePlan(ctx context.Context, tenantID int64, plan PlanChange) (*domain.Tenant, error)

	// ToggleSuspend 切换 is_suspended 并设置/清空 suspended_at
	ToggleSuspend(ctx context.Context, tenantID int64, at time.Time) (*domain.Tenant, error)

	// DeleteTenant 硬删除（级联）
	DeleteTenant(ctx context.Context, tenantID int64) error

	// TenantStats 已完成预约的数量与收入
	TenantStats(ctx context.Context, tenantID int64) (*domain.TenantStats, error)
}

// TenantFilters 租户查询过滤器
type TenantFilters struct {
	Search string // 可选，name/slug/domain 模糊匹配（不区分大小写）
	Plan   string // 可选，按套餐过滤
	Status string // 可选，active / suspended
}

// PlanChange 套餐变更：租户 plan 与订阅 plan/amount 一起写入
type PlanChange struct {
	Plan  string
	Price domain.PlanPrice
}
