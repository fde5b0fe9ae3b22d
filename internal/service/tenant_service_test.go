package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"kosmo-admin/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newTestTenantService(tenants *fakeTenants, users *fakeUsers) *tenantService {
	svc := NewTenantService(tenants, users, domain.DefaultPlanCatalog(), zap.NewNop()).(*tenantService)
	svc.bcryptCost = bcrypt.MinCost
	return svc
}

func validCreateRequest() CreateTenantRequest {
	return CreateTenantRequest{
		Name:          "Acme Inc",
		Plan:          domain.PlanPro,
		AdminName:     "Alice",
		AdminEmail:    "a@acme.com",
		AdminPassword: "secret123",
	}
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var de *domain.Error
	require.True(t, errors.As(err, &de), "expected domain error, got %v", err)
	require.Equal(t, domain.KindValidationFailed, de.Kind)
	return de.Fields
}

func TestTenantCreate_GeneratesSlugAndAdmin(t *testing.T) {
	tenants := newFakeTenants()
	users := newFakeUsers()
	svc := newTestTenantService(tenants, users)

	res, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	assert.Equal(t, "Tenant created successfully", res.Message)
	assert.Equal(t, "acme-inc", res.Tenant.Slug)
	assert.Equal(t, domain.PlanPro, res.Tenant.Plan)
	assert.Equal(t, domain.RoleAdmin, res.AdminUser.Role)
	require.NotNil(t, res.AdminUser.TenantID)
	assert.Equal(t, res.Tenant.ID, *res.AdminUser.TenantID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(res.AdminUser.PasswordHash), []byte("secret123")))
}

func TestTenantCreate_SlugCollisionAppendsSuffix(t *testing.T) {
	tenants := newFakeTenants(
		&domain.Tenant{ID: 1, Name: "Acme Inc", Slug: "acme-inc"},
		&domain.Tenant{ID: 2, Name: "Acme Inc", Slug: "acme-inc-1"},
	)
	svc := newTestTenantService(tenants, newFakeUsers())

	res, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, "acme-inc-2", res.Tenant.Slug)
}

func TestTenantCreate_Validation(t *testing.T) {
	tenants := newFakeTenants(&domain.Tenant{ID: 1, Slug: "taken"})
	users := newFakeUsers(&domain.User{ID: 5, Email: "dup@acme.com"})
	svc := newTestTenantService(tenants, users)

	req := CreateTenantRequest{
		Slug:          strp("taken"),
		Plan:          "enterprise",
		AdminEmail:    "dup@acme.com",
		AdminPassword: "short",
	}
	_, err := svc.Create(context.Background(), req)
	fields := fieldErrors(t, err)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "slug")
	assert.Contains(t, fields, "admin_name")
	assert.Equal(t, "The selected plan is invalid.", fields["plan"])
	assert.Equal(t, "The admin email has already been taken.", fields["admin_email"])
	assert.Equal(t, "The admin password must be at least 8 characters.", fields["admin_password"])
	assert.Nil(t, tenants.created)
}

func TestTenantCreate_PasswordBounds(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  string
	}{
		{"too short", "short", "The admin password must be at least 8 characters."},
		{"over bcrypt limit", strings.Repeat("p", 73), "The admin password may not be greater than 72 bytes."},
		{"multibyte over limit", strings.Repeat("密", 25), "The admin password may not be greater than 72 bytes."},
		{"at bcrypt limit", strings.Repeat("p", 72), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestTenantService(newFakeTenants(), newFakeUsers())
			req := validCreateRequest()
			req.AdminPassword = tt.password
			_, err := svc.Create(context.Background(), req)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantErr, fieldErrors(t, err)["admin_password"])
		})
	}
}

func TestTenantShow(t *testing.T) {
	tenantID := int64(3)
	tenants := newFakeTenants(&domain.Tenant{ID: tenantID, Name: "Acme", Slug: "acme"})
	tenants.stats = &domain.TenantStats{TotalBookings: 0, TotalRevenue: decimal.Zero}
	users := newFakeUsers(
		&domain.User{ID: 1, TenantID: &tenantID, Role: domain.RoleAdmin},
		&domain.User{ID: 2, TenantID: &tenantID, Role: domain.RoleCustomer},
	)
	svc := newTestTenantService(tenants, users)

	detail, err := svc.Show(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Len(t, detail.Users, 1)
	assert.Equal(t, 0, detail.Stats.TotalBookings)

	_, err = svc.Show(context.Background(), 99)
	assert.True(t, domain.IsNotFound(err))
}

func TestTenantUpdate_PlanChangeUsesCatalogPrice(t *testing.T) {
	tenants := newFakeTenants(&domain.Tenant{ID: 3, Name: "Acme", Slug: "acme", Plan: domain.PlanBasic})
	svc := newTestTenantService(tenants, newFakeUsers())

	updated, err := svc.Update(context.Background(), 3, UpdateTenantRequest{Plan: strp(domain.PlanPro)})
	require.NoError(t, err)
	assert.Equal(t, domain.PlanPro, updated.Plan)
	require.NotNil(t, tenants.planChange)
	assert.Equal(t, "79", tenants.planChange.Price.Monthly.String())
	assert.Equal(t, "790", tenants.planChange.Price.Yearly.String())
}

func TestTenantUpdate_SamePlanSkipsPlanChange(t *testing.T) {
	tenants := newFakeTenants(&domain.Tenant{ID: 3, Name: "Acme", Slug: "acme", Plan: domain.PlanBasic})
	svc := newTestTenantService(tenants, newFakeUsers())

	branding := json.RawMessage(`{"color":"#123456"}`)
	updated, err := svc.Update(context.Background(), 3, UpdateTenantRequest{
		Name:     strp("Acme Corp"),
		Plan:     strp(domain.PlanBasic),
		Branding: &branding,
	})
	require.NoError(t, err)
	assert.Nil(t, tenants.planChange)
	assert.Equal(t, "Acme Corp", updated.Name)
	assert.JSONEq(t, `{"color":"#123456"}`, string(updated.Branding))
}

func TestTenantUpdate_SlugUniqueExcludesSelf(t *testing.T) {
	tenants := newFakeTenants(
		&domain.Tenant{ID: 3, Slug: "acme", Plan: domain.PlanFree},
		&domain.Tenant{ID: 4, Slug: "globex", Plan: domain.PlanFree},
	)
	svc := newTestTenantService(tenants, newFakeUsers())

	_, err := svc.Update(context.Background(), 3, UpdateTenantRequest{Slug: strp("acme")})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), 3, UpdateTenantRequest{Slug: strp("globex")})
	assert.Equal(t, "The slug has already been taken.", fieldErrors(t, err)["slug"])
}

func TestTenantToggleSuspend(t *testing.T) {
	tenants := newFakeTenants(&domain.Tenant{ID: 3, Slug: "acme"})
	svc := newTestTenantService(tenants, newFakeUsers())

	tn, err := svc.ToggleSuspend(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, tn.IsSuspended)
	assert.NotNil(t, tn.SuspendedAt)

	tn, err = svc.ToggleSuspend(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, tn.IsSuspended)
	assert.Nil(t, tn.SuspendedAt)
}

func TestTenantUpdateUser(t *testing.T) {
	tenantID, otherTenant := int64(3), int64(4)
	tenants := newFakeTenants(&domain.Tenant{ID: tenantID, Slug: "acme"}, &domain.Tenant{ID: otherTenant, Slug: "globex"})
	users := newFakeUsers(
		&domain.User{ID: 10, TenantID: &tenantID, Name: "Bob", Email: "bob@acme.com"},
		&domain.User{ID: 11, TenantID: &otherTenant, Name: "Eve", Email: "eve@globex.com"},
	)
	svc := newTestTenantService(tenants, users)

	u, err := svc.UpdateUser(context.Background(), tenantID, 10, UpdateTenantUserRequest{
		Name: "Robert", Email: "robert@acme.com", Password: strp("newpassword"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Robert", u.Name)
	require.NotNil(t, users.updatedHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*users.updatedHash), []byte("newpassword")))

	// 用户不属于该租户
	_, err = svc.UpdateUser(context.Background(), tenantID, 11, UpdateTenantUserRequest{Name: "Eve", Email: "eve@globex.com"})
	assert.True(t, domain.IsNotFound(err))
	assert.Equal(t, "User does not belong to this tenant", err.Error())

	// 邮箱被其他用户占用
	_, err = svc.UpdateUser(context.Background(), tenantID, 10, UpdateTenantUserRequest{Name: "Robert", Email: "eve@globex.com"})
	assert.Equal(t, "The email has already been taken.", fieldErrors(t, err)["email"])

	// 超过 bcrypt 上限的密码返回字段错误而不是哈希失败
	_, err = svc.UpdateUser(context.Background(), tenantID, 10, UpdateTenantUserRequest{
		Name: "Robert", Email: "robert@acme.com", Password: strp(strings.Repeat("p", 80)),
	})
	assert.Equal(t, "The password may not be greater than 72 bytes.", fieldErrors(t, err)["password"])
}

func TestTenantVerifyUserEmail(t *testing.T) {
	tenantID := int64(3)
	tenants := newFakeTenants(&domain.Tenant{ID: tenantID, Slug: "acme"})
	users := newFakeUsers(&domain.User{ID: 10, TenantID: &tenantID})
	svc := newTestTenantService(tenants, users)

	u, err := svc.VerifyUserEmail(context.Background(), tenantID, 10)
	require.NoError(t, err)
	assert.NotNil(t, u.EmailVerifiedAt)
}
