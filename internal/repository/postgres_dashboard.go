package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kosmo-admin/internal/domain"

	"github.com/shopspring/decimal"
)

// PostgresDashboardRepository 平台统计Repository实现
type PostgresDashboardRepository struct {
	db *sql.DB
}

func NewPostgresDashboardRepository(db *sql.DB) *PostgresDashboardRepository {
	return &PostgresDashboardRepository{db: db}
}

var _ DashboardRepository = (*PostgresDashboardRepository)(nil)

func (r *PostgresDashboardRepository) PlatformCounts(ctx context.Context, now time.Time) (*PlatformCounts, error) {
	var c PlatformCounts
	err := r.db.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM tenants),
			(SELECT COUNT(*) FROM tenants WHERE is_suspended = FALSE),
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM bookings),
			(SELECT COUNT(*) FROM invitations WHERE is_used = FALSE AND (expires_at IS NULL OR expires_at > $1))`,
		now,
	).Scan(&c.TotalTenants, &c.ActiveTenants, &c.TotalUsers, &c.TotalBookings, &c.PendingInvites)
	if err != nil {
		return nil, fmt.Errorf("failed to get platform counts: %w", err)
	}
	return &c, nil
}

func (r *PostgresDashboardRepository) PlanCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT plan, COUNT(*) FROM tenants GROUP BY plan`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tenants by plan: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			plan string
			n    int
		)
		if err := rows.Scan(&plan, &n); err != nil {
			return nil, fmt.Errorf("failed to scan plan count: %w", err)
		}
		counts[plan] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plan counts: %w", err)
	}
	return counts, nil
}

func (r *PostgresDashboardRepository) RevenueTotals(ctx context.Context, monthStart, now time.Time) (*RevenueTotals, error) {
	var t RevenueTotals
	err := r.db.QueryRowContext(ctx,
		`SELECT
			(SELECT COALESCE(SUM(amount), 0) FROM billing_payments WHERE status = $1 AND created_at >= $2),
			(SELECT COALESCE(SUM(amount), 0) FROM billing_payments WHERE status = $1),
			(SELECT COALESCE(SUM(total), 0) FROM billing_invoices WHERE status = $3),
			(SELECT COALESCE(SUM(total), 0) FROM billing_invoices WHERE status = $3 AND due_date < $4)`,
		domain.PaymentCompleted, monthStart, domain.InvoicePending, now,
	).Scan(&t.MonthlyRevenue, &t.TotalRevenue, &t.Outstanding, &t.Overdue)
	if err != nil {
		return nil, fmt.Errorf("failed to get revenue totals: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT amount, billing_cycle FROM billing_subscriptions WHERE status = $1`, domain.SubscriptionActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
	}
	defer rows.Close()

	t.ActiveSubscriptions = []ActiveSubscriptionAmount{}
	for rows.Next() {
		var a ActiveSubscriptionAmount
		if err := rows.Scan(&a.Amount, &a.BillingCycle); err != nil {
			return nil, fmt.Errorf("failed to scan active subscription: %w", err)
		}
		t.ActiveSubscriptions = append(t.ActiveSubscriptions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate active subscriptions: %w", err)
	}
	return &t, nil
}

func (r *PostgresDashboardRepository) RevenueByPlan(ctx context.Context) (map[string]PlanRevenue, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT plan, COALESCE(SUM(amount), 0), COUNT(*) FROM billing_subscriptions WHERE status = $1 GROUP BY plan`,
		domain.SubscriptionActive)
	if err != nil {
		return nil, fmt.Errorf("failed to get revenue by plan: %w", err)
	}
	defer rows.Close()

	out := map[string]PlanRevenue{}
	for rows.Next() {
		var p PlanRevenue
		if err := rows.Scan(&p.Plan, &p.Total, &p.Count); err != nil {
			return nil, fmt.Errorf("failed to scan plan revenue: %w", err)
		}
		out[p.Plan] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plan revenue: %w", err)
	}
	return out, nil
}

func (r *PostgresDashboardRepository) MonthlySeries(ctx context.Context, series Series, from time.Time, months int) ([]decimal.Decimal, error) {
	var query string
	args := []any{from, months}
	switch series {
	case SeriesTenants:
		query = `SELECT COUNT(x.id)::numeric FROM months m LEFT JOIN tenants x
			ON x.created_at >= m.start AND x.created_at < m.start + INTERVAL '1 month'`
	case SeriesBookings:
		query = `SELECT COUNT(x.id)::numeric FROM months m LEFT JOIN bookings x
			ON x.created_at >= m.start AND x.created_at < m.start + INTERVAL '1 month'`
	case SeriesRevenue:
		query = `SELECT COALESCE(SUM(x.amount), 0) FROM months m LEFT JOIN billing_payments x
			ON x.created_at >= m.start AND x.created_at < m.start + INTERVAL '1 month' AND x.status = $3`
		args = append(args, domain.PaymentCompleted)
	default:
		return nil, fmt.Errorf("unknown series %d", series)
	}

	// months CTE：from 所在月起连续 months 个月
	full := `WITH months AS (
			SELECT date_trunc('month', $1::timestamptz) + (g * INTERVAL '1 month') AS start
			FROM generate_series(0, $2::int - 1) AS g
		) ` + query + ` GROUP BY m.start ORDER BY m.start`

	rows, err := r.db.QueryContext(ctx, full, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get monthly series: %w", err)
	}
	defer rows.Close()

	out := make([]decimal.Decimal, 0, months)
	for rows.Next() {
		var v decimal.Decimal
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan monthly series: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate monthly series: %w", err)
	}
	return out, nil
}
