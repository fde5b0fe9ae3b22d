package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"kosmo-admin/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockTenantsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresTenantsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresTenantsRepository(db)
}

var tenantRowColumns = []string{"id", "name", "slug", "domain", "plan", "branding", "is_suspended", "suspended_at", "created_at", "updated_at"}

func TestTenantFilters_Where(t *testing.T) {
	clause, args, next := TenantFilters{}.where()
	assert.Empty(t, clause)
	assert.Empty(t, args)
	assert.Equal(t, 1, next)

	clause, args, next = TenantFilters{Search: " acme ", Plan: "pro", Status: "suspended"}.where()
	assert.Equal(t, "WHERE (t.name ILIKE $1 OR t.slug ILIKE $1 OR t.domain ILIKE $1) AND t.plan = $2 AND t.is_suspended = TRUE", clause)
	assert.Equal(t, []any{"%acme%", "pro"}, args)
	assert.Equal(t, 3, next)

	clause, _, _ = TenantFilters{Status: "active"}.where()
	assert.Equal(t, "WHERE t.is_suspended = FALSE", clause)

	clause, _, _ = TenantFilters{Status: "deleted"}.where()
	assert.Empty(t, clause, "unknown status is ignored")
}

func TestGetTenant_NotFound(t *testing.T) {
	db, mock, repo := setupMockTenantsDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM tenants t WHERE t.id = \$1`).
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetTenant(context.Background(), 9)
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListTenants_WithFiltersAndCounts(t *testing.T) {
	db, mock, repo := setupMockTenantsDB(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tenants t WHERE`).
		WithArgs("%acme%", "pro").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	cols := append(append([]string{}, tenantRowColumns...), "users_count", "bookings_count", "services_count")
	mock.ExpectQuery(`ORDER BY t.created_at DESC, t.id DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("%acme%", "pro", 20, 20).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(3), "Acme", "acme", "acme.example.com", "pro", nil, false, nil, now, now, 2, 5, 1))

	items, total, err := repo.ListTenants(context.Background(), TenantFilters{Search: "acme", Plan: "pro"}, Page{Number: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "acme", items[0].Slug)
	require.NotNil(t, items[0].Domain)
	assert.Equal(t, "acme.example.com", *items[0].Domain)
	assert.Equal(t, 2, items[0].UsersCount)
	assert.Equal(t, 5, items[0].BookingsCount)
	assert.Equal(t, 1, items[0].ServicesCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlugExists_ExcludesSelf(t *testing.T) {
	db, mock, repo := setupMockTenantsDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("acme", int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := repo.SlugExists(context.Background(), "acme", 4)
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTenantWithAdmin_SingleTransaction(t *testing.T) {
	db, mock, repo := setupMockTenantsDB(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO tenants`).
		WithArgs("Acme", "acme", nil, "pro", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(11), now, now))
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(int64(11), "Alice", "a@acme.com", "hash", domain.RoleAdmin).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(21), now, now))
	mock.ExpectCommit()

	tenant := &domain.Tenant{Name: "Acme", Slug: "acme", Plan: "pro"}
	admin := &domain.User{Name: "Alice", Email: "a@acme.com", PasswordHash: "hash", Role: domain.RoleAdmin}
	require.NoError(t, repo.CreateTenantWithAdmin(context.Background(), tenant, admin))

	assert.Equal(t, int64(11), tenant.ID)
	assert.Equal(t, int64(21), admin.ID)
	require.NotNil(t, admin.TenantID)
	assert.Equal(t, int64(11), *admin.TenantID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTenantWithAdmin_DuplicateEmailRollsBack(t *testing.T) {
	db, mock, repo := setupMockTenantsDB(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO tenants`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(11), now, now))
	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})
	mock.ExpectRollback()

	err := repo.CreateTenantWithAdmin(context.Background(),
		&domain.Tenant{Name: "Acme", Slug: "acme", Plan: "free"},
		&domain.User{Name: "A", Email: "a@acme.com", PasswordHash: "h", Role: domain.RoleAdmin})
	require.Error(t, err)

	var de *domain.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.KindValidationFailed, de.Kind)
	assert.Contains(t, de.Fields, "admin_email")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChangePlan_UpdatesTenantAndSubscriptionTogether(t *testing.T) {
	db, mock, repo := setupMockTenantsDB(t)
	defer db.Close()

	price := domain.PlanPrice{Monthly: decimal.NewFromInt(79), Yearly: decimal.NewFromInt(790)}
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE tenants SET plan`).
		WithArgs("pro", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE billing_subscriptions`).
		WithArgs("pro", "790.00", "79.00", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT .* FROM tenants t WHERE t.id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(tenantRowColumns).AddRow(int64(3), "Acme", "acme", nil, "pro", nil, false, nil, now, now))

	tenant, err := repo.ChangePlan(context.Background(), 3, PlanChange{Plan: "pro", Price: price})
	require.NoError(t, err)
	assert.Equal(t, "pro", tenant.Plan)
	assert.Nil(t, tenant.Domain)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChangePlan_UnknownTenantRollsBack(t *testing.T) {
	db, mock, repo := setupMockTenantsDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE tenants SET plan`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.ChangePlan(context.Background(), 99, PlanChange{Plan: "basic"})
	assert.True(t, domain.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleSuspend(t *testing.T) {
	db, mock, repo := setupMockTenantsDB(t)
	defer db.Close()

	at := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`UPDATE tenants t`).
		WithArgs(at, int64(3)).
		WillReturnRows(sqlmock.NewRows(tenantRowColumns).AddRow(int64(3), "Acme", "acme", nil, "pro", nil, true, at, at, at))

	tenant, err := repo.ToggleSuspend(context.Background(), 3, at)
	require.NoError(t, err)
	assert.True(t, tenant.IsSuspended)
	require.NotNil(t, tenant.SuspendedAt)
	assert.True(t, at.Equal(*tenant.SuspendedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTenant_NotFound(t *testing.T) {
	db, mock, repo := setupMockTenantsDB(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM tenants`).WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.DeleteTenant(context.Background(), 5)
	assert.True(t, domain.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantStats_EmptyTenant(t *testing.T) {
	db, mock, repo := setupMockTenantsDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM bookings b`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"total_bookings", "completed_bookings", "total_revenue"}).AddRow(0, 0, "0"))

	stats, err := repo.TenantStats(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalBookings)
	assert.True(t, stats.TotalRevenue.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
