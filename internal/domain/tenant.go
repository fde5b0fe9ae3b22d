package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Tenant 租户领域模型（对应 tenants 表）
type Tenant struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Domain      *string         `json:"domain"`
	Plan        string          `json:"plan"`
	Branding    json.RawMessage `json:"branding,omitempty"`
	IsSuspended bool            `json:"is_suspended"`
	SuspendedAt *time.Time      `json:"suspended_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TenantListItem 列表行，附带关联数量
type TenantListItem struct {
	Tenant
	UsersCount    int `json:"users_count"`
	BookingsCount int `json:"bookings_count"`
	ServicesCount int `json:"services_count"`
}

// TenantStats 租户详情统计
type TenantStats struct {
	TotalBookings     int             `json:"total_bookings"`
	CompletedBookings int             `json:"completed_bookings"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
}

// Tenant status filter values
const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
)
