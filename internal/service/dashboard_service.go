package service

import (
	"context"
	"time"

	"kosmo-admin/internal/domain"
	"kosmo-admin/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ChartMonths 图表覆盖的自然月数（含当月）
const ChartMonths = 6

// DashboardService 平台统计服务
type DashboardService interface {
	Stats(ctx context.Context) (*DashboardStats, error)
}

type dashboardService struct {
	dashboard repository.DashboardRepository
	plans     *domain.PlanCatalog
	logger    *zap.Logger
	now       func() time.Time
}

// NewDashboardService 创建 DashboardService 实例
func NewDashboardService(dashboard repository.DashboardRepository, plans *domain.PlanCatalog, logger *zap.Logger) DashboardService {
	return &dashboardService{dashboard: dashboard, plans: plans, logger: logger, now: time.Now}
}

// DashboardStats 仪表盘数据
type DashboardStats struct {
	repository.PlatformCounts
	Plans   map[string]int `json:"plans"`
	Revenue RevenueStats   `json:"revenue"`
	Charts  struct {
		TenantsGrowth    Chart `json:"tenants_growth"`
		BookingsActivity Chart `json:"bookings_activity"`
		RevenueTrend     Chart `json:"revenue_trend"`
	} `json:"charts"`
}

// RevenueStats 收入分析
type RevenueStats struct {
	MRR                 decimal.Decimal                   `json:"mrr"`
	MonthlyRevenue      decimal.Decimal                   `json:"monthly_revenue"`
	TotalRevenue        decimal.Decimal                   `json:"total_revenue"`
	Outstanding         decimal.Decimal                   `json:"outstanding"`
	Overdue             decimal.Decimal                   `json:"overdue"`
	ByPlan              map[string]repository.PlanRevenue `json:"by_plan"`
	ActiveSubscriptions int                               `json:"active_subscriptions"`
}

// Chart 月度图表
type Chart struct {
	Labels []string          `json:"labels"`
	Data   []decimal.Decimal `json:"data"`
}

func (s *dashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	now := s.now()
	out := &DashboardStats{}

	counts, err := s.dashboard.PlatformCounts(ctx, now)
	if err != nil {
		return nil, err
	}
	out.PlatformCounts = *counts

	planCounts, err := s.dashboard.PlanCounts(ctx)
	if err != nil {
		return nil, err
	}
	// 目录内的套餐即使为 0 也输出
	out.Plans = make(map[string]int, len(planCounts))
	for _, name := range s.plans.Names() {
		out.Plans[name] = 0
	}
	for plan, n := range planCounts {
		out.Plans[plan] = n
	}

	revenue, err := s.revenue(ctx, now)
	if err != nil {
		return nil, err
	}
	out.Revenue = *revenue

	from := monthStart(now).AddDate(0, -(ChartMonths - 1), 0)
	labels := MonthLabels(from, ChartMonths)
	for _, c := range []struct {
		series repository.Series
		dst    *Chart
	}{
		{repository.SeriesTenants, &out.Charts.TenantsGrowth},
		{repository.SeriesBookings, &out.Charts.BookingsActivity},
		{repository.SeriesRevenue, &out.Charts.RevenueTrend},
	} {
		data, err := s.dashboard.MonthlySeries(ctx, c.series, from, ChartMonths)
		if err != nil {
			return nil, err
		}
		*c.dst = Chart{Labels: labels, Data: data}
	}
	return out, nil
}

func (s *dashboardService) revenue(ctx context.Context, now time.Time) (*RevenueStats, error) {
	totals, err := s.dashboard.RevenueTotals(ctx, monthStart(now), now)
	if err != nil {
		return nil, err
	}
	byPlan, err := s.dashboard.RevenueByPlan(ctx)
	if err != nil {
		return nil, err
	}

	mrr := decimal.Zero
	for _, sub := range totals.ActiveSubscriptions {
		monthly := domain.Subscription{Amount: sub.Amount, BillingCycle: sub.BillingCycle}
		mrr = mrr.Add(monthly.MonthlyAmount())
	}
	return &RevenueStats{
		MRR:                 mrr.Round(2),
		MonthlyRevenue:      totals.MonthlyRevenue.Round(2),
		TotalRevenue:        totals.TotalRevenue.Round(2),
		Outstanding:         totals.Outstanding.Round(2),
		Overdue:             totals.Overdue.Round(2),
		ByPlan:              byPlan,
		ActiveSubscriptions: len(totals.ActiveSubscriptions),
	}, nil
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// MonthLabels 从 from 起 n 个月的英文缩写（Jan、Feb …）
func MonthLabels(from time.Time, n int) []string {
	labels := make([]string, 0, n)
	start := monthStart(from)
	for i := 0; i < n; i++ {
		labels = append(labels, start.AddDate(0, i, 0).Format("Jan"))
	}
	return labels
}
