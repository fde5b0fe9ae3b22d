package service

import (
	"context"
	"sync"
	"time"

	"kosmo-admin/internal/domain"
	"kosmo-admin/internal/repository"
	"kosmo-admin/internal/session"
)

// fakeUsers 内存用户表
type fakeUsers struct {
	repository.UsersRepository
	byID        map[int64]*domain.User
	adminEmails map[int64]string
	updated     *domain.User
	updatedHash *string
}

func newFakeUsers(users ...*domain.User) *fakeUsers {
	f := &fakeUsers{byID: map[int64]*domain.User{}, adminEmails: map[int64]string{}}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, domain.NotFound("User not found")
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.NotFound("User not found")
}

func (f *fakeUsers) EmailExists(ctx context.Context, email string, exclude int64) (bool, error) {
	for _, u := range f.byID {
		if u.Email == email && u.ID != exclude {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) ListTenantStaff(ctx context.Context, tenantID int64) ([]*domain.User, error) {
	out := []*domain.User{}
	for _, u := range f.byID {
		if u.BelongsTo(tenantID) && u.Role != domain.RoleCustomer {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) TenantAdminEmail(ctx context.Context, tenantID int64) (string, error) {
	return f.adminEmails[tenantID], nil
}

func (f *fakeUsers) UpdateUser(ctx context.Context, u *domain.User, hash *string) error {
	f.updated = u
	f.updatedHash = hash
	f.byID[u.ID] = u
	return nil
}

func (f *fakeUsers) MarkEmailVerified(ctx context.Context, id int64, at time.Time) error {
	if _, ok := f.byID[id]; !ok {
		return domain.NotFound("User not found")
	}
	f.byID[id].EmailVerifiedAt = &at
	return nil
}

// fakeTenants 内存租户表
type fakeTenants struct {
	repository.TenantsRepository
	byID        map[int64]*domain.Tenant
	slugs       map[string]bool
	created     *domain.Tenant
	createdUser *domain.User
	planChange  *repository.PlanChange
	stats       *domain.TenantStats
}

func newFakeTenants(tenants ...*domain.Tenant) *fakeTenants {
	f := &fakeTenants{byID: map[int64]*domain.Tenant{}, slugs: map[string]bool{}}
	for _, t := range tenants {
		f.byID[t.ID] = t
		f.slugs[t.Slug] = true
	}
	return f
}

func (f *fakeTenants) GetTenant(ctx context.Context, id int64) (*domain.Tenant, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, domain.NotFound("Tenant not found")
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTenants) SlugExists(ctx context.Context, slug string, exclude int64) (bool, error) {
	for _, t := range f.byID {
		if t.Slug == slug && t.ID != exclude {
			return true, nil
		}
	}
	return f.slugs[slug] && exclude == 0, nil
}

func (f *fakeTenants) DomainExists(ctx context.Context, d string, exclude int64) (bool, error) {
	for _, t := range f.byID {
		if t.Domain != nil && *t.Domain == d && t.ID != exclude {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTenants) CreateTenantWithAdmin(ctx context.Context, t *domain.Tenant, admin *domain.User) error {
	t.ID = int64(len(f.byID) + 100)
	admin.ID = t.ID * 10
	admin.TenantID = &t.ID
	f.byID[t.ID] = t
	f.created = t
	f.createdUser = admin
	return nil
}

func (f *fakeTenants) UpdateTenant(ctx context.Context, t *domain.Tenant, pc *repository.PlanChange) error {
	f.planChange = pc
	if pc != nil {
		t.Plan = pc.Plan
	}
	f.byID[t.ID] = t
	return nil
}

func (f *fakeTenants) ChangePlan(ctx context.Context, id int64, pc repository.PlanChange) (*domain.Tenant, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, domain.NotFound("Tenant not found")
	}
	f.planChange = &pc
	t.Plan = pc.Plan
	cp := *t
	return &cp, nil
}

func (f *fakeTenants) ToggleSuspend(ctx context.Context, id int64, at time.Time) (*domain.Tenant, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, domain.NotFound("Tenant not found")
	}
	t.IsSuspended = !t.IsSuspended
	if t.IsSuspended {
		t.SuspendedAt = &at
	} else {
		t.SuspendedAt = nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTenants) TenantStats(ctx context.Context, id int64) (*domain.TenantStats, error) {
	if f.stats != nil {
		return f.stats, nil
	}
	return &domain.TenantStats{}, nil
}

// fakeSessions 记录 Save/Destroy 调用的会话存储
type fakeSessions struct {
	mu        sync.Mutex
	saved     int
	destroyed int
	saveErr   error
}

func (f *fakeSessions) Save(ctx context.Context, s *session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if s.ID == "" {
		s.ID = "sid-new"
	}
	f.saved++
	return nil
}

func (f *fakeSessions) Destroy(ctx context.Context, s *session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = ""
	s.State = session.State{}
	f.destroyed++
	return nil
}

func (f *fakeSessions) Regenerate(ctx context.Context, s *session.Session) error {
	s.ID = s.ID + "-regen"
	return nil
}

// fakeAudit 收集审计事件
type fakeAudit struct {
	events []AuditEvent
}

func (f *fakeAudit) Record(ctx context.Context, e AuditEvent) { f.events = append(f.events, e) }

func int64p(v int64) *int64 { return &v }

func strp(s string) *string { return &s }

func intp(v int) *int { return &v }
