package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformCounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresDashboardRepository(db)

	now := time.Now()
	mock.ExpectQuery(`SELECT`).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d", "e"}).AddRow(10, 8, 120, 900, 3))

	c, err := repo.PlatformCounts(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, PlatformCounts{TotalTenants: 10, ActiveTenants: 8, TotalUsers: 120, TotalBookings: 900, PendingInvites: 3}, *c)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevenueTotals(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresDashboardRepository(db)

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM billing_payments`).
		WithArgs("completed", monthStart, "pending", now).
		WillReturnRows(sqlmock.NewRows([]string{"m", "t", "o", "d"}).AddRow("108.00", "1200.50", "79.00", "0"))
	mock.ExpectQuery(`SELECT amount, billing_cycle FROM billing_subscriptions`).
		WithArgs("active").
		WillReturnRows(sqlmock.NewRows([]string{"amount", "billing_cycle"}).
			AddRow("79.00", "monthly").
			AddRow("290.00", "yearly"))

	totals, err := repo.RevenueTotals(context.Background(), monthStart, now)
	require.NoError(t, err)
	assert.Equal(t, "1200.5", totals.TotalRevenue.String())
	assert.Equal(t, "79", totals.Outstanding.String())
	require.Len(t, totals.ActiveSubscriptions, 2)
	assert.Equal(t, "yearly", totals.ActiveSubscriptions[1].BillingCycle)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMonthlySeries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresDashboardRepository(db)

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`generate_series`).
		WithArgs(from, 3, "completed").
		WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("0").AddRow("29.00").AddRow("108"))

	out, err := repo.MonthlySeries(context.Background(), SeriesRevenue, from, 3)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "29", out[1].String())

	_, err = repo.MonthlySeries(context.Background(), Series(99), from, 3)
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
