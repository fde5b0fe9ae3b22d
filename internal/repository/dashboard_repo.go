package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DashboardRepository 平台统计Repository接口
type DashboardRepository interface {
	PlatformCounts(ctx context.Context, now time.Time) (*PlatformCounts, error)
	PlanCounts(ctx context.Context) (map[string]int, error)
	RevenueTotals(ctx context.Context, monthStart, now time.Time) (*RevenueTotals, error)
	RevenueByPlan(ctx context.Context) (map[string]PlanRevenue, error)

	// MonthlySeries 最近 months 个自然月（含当月）的计数/金额，按月升序
	MonthlySeries(ctx context.Context, series Series, from time.Time, months int) ([]decimal.Decimal, error)
}

// PlatformCounts 平台总量
type PlatformCounts struct {
	TotalTenants   int `json:"total_tenants"`
	ActiveTenants  int `json:"active_tenants"`
	TotalUsers     int `json:"total_users"`
	TotalBookings  int `json:"total_bookings"`
	PendingInvites int `json:"pending_invites"`
}

// RevenueTotals 收入汇总
type RevenueTotals struct {
	MonthlyRevenue      decimal.Decimal
	TotalRevenue        decimal.Decimal
	Outstanding         decimal.Decimal
	Overdue             decimal.Decimal
	ActiveSubscriptions []ActiveSubscriptionAmount
}

// ActiveSubscriptionAmount 计算 MRR 用
type ActiveSubscriptionAmount struct {
	Amount       decimal.Decimal
	BillingCycle string
}

// PlanRevenue 按套餐汇总的活跃订阅
type PlanRevenue struct {
	Plan  string          `json:"plan"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// Series 月度图表序列
type Series int

const (
	SeriesTenants Series = iota
	SeriesBookings
	SeriesRevenue
)
