package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"kosmo-admin/internal/domain"
	"kosmo-admin/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// TenantService 租户管理服务接口
type TenantService interface {
	List(ctx context.Context, req ListTenantsRequest) (*Paginated[*domain.TenantListItem], error)
	Export(ctx context.Context, filter repository.TenantFilters) ([]*domain.TenantListItem, error)
	Create(ctx context.Context, req CreateTenantRequest) (*CreateTenantResponse, error)
	Show(ctx context.Context, tenantID int64) (*TenantDetail, error)
	Update(ctx context.Context, tenantID int64, req UpdateTenantRequest) (*domain.Tenant, error)
	ToggleSuspend(ctx context.Context, tenantID int64) (*domain.Tenant, error)
	Destroy(ctx context.Context, tenantID int64) error

	// 租户下用户
	UpdateUser(ctx context.Context, tenantID, userID int64, req UpdateTenantUserRequest) (*domain.User, error)
	VerifyUserEmail(ctx context.Context, tenantID, userID int64) (*domain.User, error)
}

type tenantService struct {
	tenants    repository.TenantsRepository
	users      repository.UsersRepository
	plans      *domain.PlanCatalog
	logger     *zap.Logger
	now        func() time.Time
	bcryptCost int
}

// NewTenantService 创建 TenantService 实例
func NewTenantService(tenants repository.TenantsRepository, users repository.UsersRepository, plans *domain.PlanCatalog, logger *zap.Logger) TenantService {
	return &tenantService{
		tenants:    tenants,
		users:      users,
		plans:      plans,
		logger:     logger,
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// ListTenantsRequest 列表请求
type ListTenantsRequest struct {
	Filters repository.TenantFilters
	Page    int
}

// CreateTenantRequest 创建租户（同时创建租户管理员）
type CreateTenantRequest struct {
	Name          string  `json:"name"`
	Slug          *string `json:"slug"`
	Domain        *string `json:"domain"`
	Plan          string  `json:"plan"`
	AdminName     string  `json:"admin_name"`
	AdminEmail    string  `json:"admin_email"`
	AdminPassword string  `json:"admin_password"`
}

// CreateTenantResponse 创建结果
type CreateTenantResponse struct {
	Message   string         `json:"message"`
	Tenant    *domain.Tenant `json:"tenant"`
	AdminUser *domain.User   `json:"admin_user"`
}

// UpdateTenantRequest 部分更新；nil 字段保持不变
type UpdateTenantRequest struct {
	Name     *string          `json:"name"`
	Slug     *string          `json:"slug"`
	Domain   *string          `json:"domain"`
	Plan     *string          `json:"plan"`
	Branding *json.RawMessage `json:"branding"`
}

// UpdateTenantUserRequest 更新租户用户
type UpdateTenantUserRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password *string `json:"password"`
}

// TenantDetail 租户详情
type TenantDetail struct {
	Tenant *domain.Tenant      `json:"tenant"`
	Users  []*domain.User      `json:"users"`
	Stats  *domain.TenantStats `json:"stats"`
}

func (s *tenantService) List(ctx context.Context, req ListTenantsRequest) (*Paginated[*domain.TenantListItem], error) {
	page := repository.Page{Number: req.Page, Size: repository.DefaultPageSize}
	items, total, err := s.tenants.ListTenants(ctx, req.Filters, page)
	if err != nil {
		return nil, err
	}
	return newPaginated(items, req.Page, repository.DefaultPageSize, total), nil
}

func (s *tenantService) Export(ctx context.Context, filter repository.TenantFilters) ([]*domain.TenantListItem, error) {
	return s.tenants.ExportTenants(ctx, filter)
}

func (s *tenantService) Create(ctx context.Context, req CreateTenantRequest) (*CreateTenantResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Slug = trimmed(req.Slug)
	req.Domain = trimmed(req.Domain)
	req.AdminName = strings.TrimSpace(req.AdminName)
	req.AdminEmail = strings.TrimSpace(req.AdminEmail)

	var v domain.Validation
	if required(&v, req.Name, "name") {
		maxLen(&v, req.Name, "name", 255)
	}
	if req.Slug != nil {
		maxLen(&v, *req.Slug, "slug", 100)
	}
	if req.Domain != nil {
		maxLen(&v, *req.Domain, "domain", 255)
	}
	if required(&v, req.Plan, "plan") && !s.plans.Has(req.Plan) {
		v.Add("plan", "The selected plan is invalid.")
	}
	if required(&v, req.AdminName, "admin_name") {
		maxLen(&v, req.AdminName, "admin_name", 255)
	}
	if required(&v, req.AdminEmail, "admin_email") && !isEmail(req.AdminEmail) {
		v.Add("admin_email", "The admin email must be a valid email address.")
	}
	if required(&v, req.AdminPassword, "admin_password") {
		passwordLength(&v, req.AdminPassword, "admin_password")
	}

	// 唯一性检查（插入时的唯一约束兜底并发情况）
	if req.Slug != nil && !v.Has("slug") {
		exists, err := s.tenants.SlugExists(ctx, *req.Slug, 0)
		if err != nil {
			return nil, err
		}
		v.Check(!exists, "slug", "The slug has already been taken.")
	}
	if req.Domain != nil && !v.Has("domain") {
		exists, err := s.tenants.DomainExists(ctx, *req.Domain, 0)
		if err != nil {
			return nil, err
		}
		v.Check(!exists, "domain", "The domain has already been taken.")
	}
	if !v.Has("admin_email") {
		exists, err := s.users.EmailExists(ctx, req.AdminEmail, 0)
		if err != nil {
			return nil, err
		}
		v.Check(!exists, "admin_email", "The admin email has already been taken.")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	slug := ""
	if req.Slug != nil {
		slug = *req.Slug
	} else {
		var err error
		if slug, err = s.uniqueSlug(ctx, req.Name); err != nil {
			return nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.AdminPassword), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	tenant := &domain.Tenant{Name: req.Name, Slug: slug, Domain: req.Domain, Plan: req.Plan}
	admin := &domain.User{
		Name:         req.AdminName,
		Email:        req.AdminEmail,
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
	}
	if err := s.tenants.CreateTenantWithAdmin(ctx, tenant, admin); err != nil {
		return nil, err
	}

	s.logger.Info("Tenant created",
		zap.Int64("tenant_id", tenant.ID),
		zap.String("slug", tenant.Slug),
		zap.String("plan", tenant.Plan),
		zap.Int64("admin_user_id", admin.ID),
	)
	return &CreateTenantResponse{Message: "Tenant created successfully", Tenant: tenant, AdminUser: admin}, nil
}

// uniqueSlug 由名称生成 slug，冲突时依次追加 -1、-2 …
func (s *tenantService) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := domain.Slugify(name)
	if base == "" {
		base = "tenant"
	}
	slug := base
	for i := 1; ; i++ {
		exists, err := s.tenants.SlugExists(ctx, slug, 0)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

func (s *tenantService) Show(ctx context.Context, tenantID int64) (*TenantDetail, error) {
	tenant, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	users, err := s.users.ListTenantStaff(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	stats, err := s.tenants.TenantStats(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &TenantDetail{Tenant: tenant, Users: users, Stats: stats}, nil
}

func (s *tenantService) Update(ctx context.Context, tenantID int64, req UpdateTenantRequest) (*domain.Tenant, error) {
	tenant, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var v domain.Validation
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if required(&v, name, "name") {
			maxLen(&v, name, "name", 255)
		}
		tenant.Name = name
	}
	if req.Slug != nil {
		slug := strings.TrimSpace(*req.Slug)
		if required(&v, slug, "slug") {
			maxLen(&v, slug, "slug", 100)
		}
		if !v.Has("slug") && slug != tenant.Slug {
			exists, err := s.tenants.SlugExists(ctx, slug, tenant.ID)
			if err != nil {
				return nil, err
			}
			v.Check(!exists, "slug", "The slug has already been taken.")
		}
		tenant.Slug = slug
	}
	if req.Domain != nil {
		d := trimmed(req.Domain)
		if d != nil {
			maxLen(&v, *d, "domain", 255)
			if !v.Has("domain") {
				exists, err := s.tenants.DomainExists(ctx, *d, tenant.ID)
				if err != nil {
					return nil, err
				}
				v.Check(!exists, "domain", "The domain has already been taken.")
			}
		}
		tenant.Domain = d
	}
	var change *repository.PlanChange
	if req.Plan != nil {
		pc, ok := s.planChange(*req.Plan)
		if !ok {
			v.Add("plan", "The selected plan is invalid.")
		} else if pc.Plan != tenant.Plan {
			change = &pc
		}
	}
	if req.Branding != nil {
		raw := *req.Branding
		if len(raw) > 0 && string(raw) != "null" && (raw[0] != '{' || !json.Valid(raw)) {
			v.Add("branding", "The branding must be an object.")
		}
		if string(raw) == "null" {
			raw = nil
		}
		tenant.Branding = raw
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	if err := s.tenants.UpdateTenant(ctx, tenant, change); err != nil {
		return nil, err
	}
	if change != nil {
		s.logger.Info("Tenant plan changed", zap.Int64("tenant_id", tenant.ID), zap.String("plan", change.Plan))
	}
	return tenant, nil
}

// planChange 由套餐目录构建套餐变更
func (s *tenantService) planChange(plan string) (repository.PlanChange, bool) {
	price, ok := s.plans.Prices()[plan]
	if !ok {
		return repository.PlanChange{}, false
	}
	return repository.PlanChange{Plan: plan, Price: price}, true
}

func (s *tenantService) ToggleSuspend(ctx context.Context, tenantID int64) (*domain.Tenant, error) {
	tenant, err := s.tenants.ToggleSuspend(ctx, tenantID, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("Tenant suspension toggled",
		zap.Int64("tenant_id", tenant.ID),
		zap.Bool("is_suspended", tenant.IsSuspended),
	)
	return tenant, nil
}

func (s *tenantService) Destroy(ctx context.Context, tenantID int64) error {
	if err := s.tenants.DeleteTenant(ctx, tenantID); err != nil {
		return err
	}
	s.logger.Warn("Tenant permanently deleted", zap.Int64("tenant_id", tenantID))
	return nil
}

// tenantUser 用户必须属于该租户，否则视为不存在
func (s *tenantService) tenantUser(ctx context.Context, tenantID, userID int64) (*domain.User, error) {
	if _, err := s.tenants.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.BelongsTo(tenantID) {
		return nil, domain.NotFound("User does not belong to this tenant")
	}
	return user, nil
}

func (s *tenantService) UpdateUser(ctx context.Context, tenantID, userID int64, req UpdateTenantUserRequest) (*domain.User, error) {
	user, err := s.tenantUser(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	password := trimmed(req.Password)

	var v domain.Validation
	if required(&v, req.Name, "name") {
		maxLen(&v, req.Name, "name", 255)
	}
	if required(&v, req.Email, "email") && !isEmail(req.Email) {
		v.Add("email", "The email must be a valid email address.")
	}
	if password != nil {
		passwordLength(&v, *password, "password")
	}
	if !v.Has("email") {
		exists, err := s.users.EmailExists(ctx, req.Email, user.ID)
		if err != nil {
			return nil, err
		}
		v.Check(!exists, "email", "The email has already been taken.")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	var hash *string
	if password != nil {
		b, err := bcrypt.GenerateFromPassword([]byte(*password), s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		h := string(b)
		hash = &h
	}

	user.Name = req.Name
	user.Email = req.Email
	if err := s.users.UpdateUser(ctx, user, hash); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *tenantService) VerifyUserEmail(ctx context.Context, tenantID, userID int64) (*domain.User, error) {
	user, err := s.tenantUser(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.users.MarkEmailVerified(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.EmailVerifiedAt = &now
	return user, nil
}
