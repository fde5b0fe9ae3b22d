package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"kosmo-admin/internal/domain"
)

// PostgresTenantsRepository 租户Repository实现
type PostgresTenantsRepository struct {
	db *sql.DB
}

func NewPostgresTenantsRepository(db *sql.DB) *PostgresTenantsRepository {
	return &PostgresTenantsRepository{db: db}
}

// 确保实现了接口
var _ TenantsRepository = (*PostgresTenantsRepository)(nil)

const tenantColumns = `t.id, t.name, t.slug, t.domain, t.plan, t.branding, t.is_suspended, t.suspended_at, t.created_at, t.updated_at`

func scanTenant(row rowScanner, extra ...any) (*domain.Tenant, error) {
	var (
		t           domain.Tenant
		domainName  sql.NullString
		branding    []byte
		suspendedAt sql.NullTime
	)
	dest := append([]any{&t.ID, &t.Name, &t.Slug, &domainName, &t.Plan, &branding,
		&t.IsSuspended, &suspendedAt, &t.CreatedAt, &t.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	t.Domain = stringPtr(domainName)
	t.SuspendedAt = timePtr(suspendedAt)
	if len(branding) > 0 {
		t.Branding = json.RawMessage(branding)
	}
	return &t, nil
}

func (r *PostgresTenantsRepository) GetTenant(ctx context.Context, tenantID int64) (*domain.Tenant, error) {
	t, err := scanTenant(r.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants t WHERE t.id = $1`, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("Tenant not found")
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}

// where 由过滤器构建 WHERE 子句，返回子句、参数和下一个参数序号
func (f TenantFilters) where() (string, []any, int) {
	where := []string{}
	args := []any{}
	argIdx := 1

	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, fmt.Sprintf("(t.name ILIKE $%d OR t.slug ILIKE $%d OR t.domain ILIKE $%d)", argIdx, argIdx, argIdx))
		args = append(args, "%"+s+"%")
		argIdx++
	}
	if f.Plan != "" {
		where = append(where, fmt.Sprintf("t.plan = $%d", argIdx))
		args = append(args, f.Plan)
		argIdx++
	}
	switch f.Status {
	case domain.TenantStatusSuspended:
		where = append(where, "t.is_suspended = TRUE")
	case domain.TenantStatusActive:
		where = append(where, "t.is_suspended = FALSE")
	}

	if len(where) == 0 {
		return "", args, argIdx
	}
	return "WHERE " + strings.Join(where, " AND "), args, argIdx
}

const tenantCountsColumns = `,
	(SELECT COUNT(*) FROM users u WHERE u.tenant_id = t.id) AS users_count,
	(SELECT COUNT(*) FROM bookings b WHERE b.tenant_id = t.id) AS bookings_count,
	(SELECT COUNT(*) FROM services s WHERE s.tenant_id = t.id) AS services_count`

func (r *PostgresTenantsRepository) listTenants(ctx context.Context, filter TenantFilters, page *Page) ([]*domain.TenantListItem, error) {
	whereClause, args, argIdx := filter.where()
	query := `SELECT ` + tenantColumns + tenantCountsColumns + ` FROM tenants t ` + whereClause + ` ORDER BY t.created_at DESC, t.id DESC`
	if page != nil {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
		args = append(args, page.Size, page.offset())
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	items := []*domain.TenantListItem{}
	for rows.Next() {
		var item domain.TenantListItem
		t, err := scanTenant(rows, &item.UsersCount, &item.BookingsCount, &item.ServicesCount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		item.Tenant = *t
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tenants: %w", err)
	}
	return items, nil
}

func (r *PostgresTenantsRepository) ListTenants(ctx context.Context, filter TenantFilters, page Page) ([]*domain.TenantListItem, int, error) {
	page = page.normalize(DefaultPageSize)

	whereClause, args, _ := filter.where()
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tenants t `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tenants: %w", err)
	}

	items, err := r.listTenants(ctx, filter, &page)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *PostgresTenantsRepository) ExportTenants(ctx context.Context, filter TenantFilters) ([]*domain.TenantListItem, error) {
	return r.listTenants(ctx, filter, nil)
}

func (r *PostgresTenantsRepository) SlugExists(ctx context.Context, slug string, excludeTenantID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tenants WHERE slug = $1 AND id <> $2)`, slug, excludeTenantID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check tenant slug: %w", err)
	}
	return exists, nil
}

func (r *PostgresTenantsRepository) DomainExists(ctx context.Context, domainName string, excludeTenantID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tenants WHERE LOWER(domain) = LOWER($1) AND id <> $2)`, domainName, excludeTenantID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check tenant domain: %w", err)
	}
	return exists, nil
}

// tenantUniqueError 把唯一约束冲突映射成字段错误
func tenantUniqueError(constraint string) error {
	switch {
	case strings.Contains(constraint, "slug"):
		return domain.FieldError("slug", "The slug has already been taken.")
	case strings.Contains(constraint, "domain"):
		return domain.FieldError("domain", "The domain has already been taken.")
	case strings.Contains(constraint, "email"):
		return domain.FieldError("admin_email", "The admin email has already been taken.")
	default:
		return domain.Conflict("Duplicate value violates %s", constraint)
	}
}

func brandingArg(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}

func (r *PostgresTenantsRepository) CreateTenantWithAdmin(ctx context.Context, tenant *domain.Tenant, admin *domain.User) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO tenants (name, slug, domain, plan, branding, is_suspended)
			 VALUES ($1, $2, $3, $4, $5, FALSE)
			 RETURNING id, created_at, updated_at`,
			tenant.Name, tenant.Slug, nullString(tenant.Domain), tenant.Plan, brandingArg(tenant.Branding),
		).Scan(&tenant.ID, &tenant.CreatedAt, &tenant.UpdatedAt)
		if err != nil {
			return err
		}

		admin.TenantID = &tenant.ID
		return tx.QueryRowContext(ctx,
			`INSERT INTO users (tenant_id, name, email, password_hash, role, is_super_admin)
			 VALUES ($1, $2, $3, $4, $5, FALSE)
			 RETURNING id, created_at, updated_at`,
			tenant.ID, admin.Name, admin.Email, admin.PasswordHash, admin.Role,
		).Scan(&admin.ID, &admin.CreatedAt, &admin.UpdatedAt)
	})
	if err != nil {
		if c, ok := uniqueViolation(err); ok {
			return tenantUniqueError(c)
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

// applyPlanChange 套餐唯一写入路径：租户 plan 与订阅 plan/amount 一起更新
func applyPlanChange(ctx context.Context, q queryer, tenantID int64, pc PlanChange) error {
	res, err := q.ExecContext(ctx,
		`UPDATE tenants SET plan = $1, updated_at = NOW() WHERE id = $2`, pc.Plan, tenantID)
	if err != nil {
		return fmt.Errorf("failed to update tenant plan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("Tenant not found")
	}
	_, err = q.ExecContext(ctx,
		`UPDATE billing_subscriptions
		 SET plan = $1,
		     amount = CASE WHEN billing_cycle = 'yearly' THEN $2::numeric ELSE $3::numeric END,
		     updated_at = NOW()
		 WHERE tenant_id = $4 AND status <> 'cancelled'`,
		pc.Plan, pc.Price.Yearly.StringFixed(2), pc.Price.Monthly.StringFixed(2), tenantID)
	if err != nil {
		return fmt.Errorf("failed to sync subscription plan: %w", err)
	}
	return nil
}

func (r *PostgresTenantsRepository) UpdateTenant(ctx context.Context, tenant *domain.Tenant, plan *PlanChange) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`UPDATE tenants SET name = $1, slug = $2, domain = $3, branding = $4, updated_at = NOW()
			 WHERE id = $5
			 RETURNING updated_at`,
			tenant.Name, tenant.Slug, nullString(tenant.Domain), brandingArg(tenant.Branding), tenant.ID,
		).Scan(&tenant.UpdatedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.NotFound("Tenant not found")
			}
			return err
		}
		if plan != nil {
			if err := applyPlanChange(ctx, tx, tenant.ID, *plan); err != nil {
				return err
			}
			tenant.Plan = plan.Plan
		}
		return nil
	})
	if err != nil {
		if c, ok := uniqueViolation(err); ok {
			return tenantUniqueError(c)
		}
		var de *domain.Error
		if errors.As(err, &de) {
			return err
		}
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	return nil
}

func (r *PostgresTenantsRepository) ChangePlan(ctx context.Context, tenantID int64, plan PlanChange) (*domain.Tenant, error) {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		return applyPlanChange(ctx, tx, tenantID, plan)
	})
	if err != nil {
		return nil, err
	}
	return r.GetTenant(ctx, tenantID)
}

func (r *PostgresTenantsRepository) ToggleSuspend(ctx context.Context, tenantID int64, at time.Time) (*domain.Tenant, error) {
	// SET 右侧引用的是更新前的值
	t, err := scanTenant(r.db.QueryRowContext(ctx,
		`UPDATE tenants t
		 SET is_suspended = NOT t.is_suspended,
		     suspended_at = CASE WHEN t.is_suspended THEN NULL ELSE $1::timestamptz END,
		     updated_at = NOW()
		 WHERE t.id = $2
		 RETURNING `+tenantColumns,
		at, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("Tenant not found")
		}
		return nil, fmt.Errorf("failed to toggle tenant suspension: %w", err)
	}
	return t, nil
}

func (r *PostgresTenantsRepository) DeleteTenant(ctx context.Context, tenantID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("Tenant not found")
	}
	return nil
}

func (r *PostgresTenantsRepository) TenantStats(ctx context.Context, tenantID int64) (*domain.TenantStats, error) {
	var stats domain.TenantStats
	err := r.db.QueryRowContext(ctx,
		`SELECT
			COUNT(*) AS total_bookings,
			COUNT(*) FILTER (WHERE b.status = 'completed') AS completed_bookings,
			COALESCE(SUM(s.price) FILTER (WHERE b.status = 'completed'), 0) AS total_revenue
		 FROM bookings b
		 LEFT JOIN services s ON s.id = b.service_id
		 WHERE b.tenant_id = $1`, tenantID,
	).Scan(&stats.TotalBookings, &stats.CompletedBookings, &stats.TotalRevenue)
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant stats: %w", err)
	}
	return &stats, nil
}
