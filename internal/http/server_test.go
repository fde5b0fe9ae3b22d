package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"kosmo-admin/internal/domain"
	"kosmo-admin/internal/metrics"
	"kosmo-admin/internal/repository"
	"kosmo-admin/internal/service"
	"kosmo-admin/internal/session"
	"kosmo-admin/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "secret123"

// memUsers 内存用户表
type memUsers struct {
	repository.UsersRepository
	mu   sync.Mutex
	byID map[int64]*domain.User
}

func (m *memUsers) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, domain.NotFound("User not found")
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.NotFound("User not found")
}

func (m *memUsers) update(id int64, fn func(u *domain.User)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.byID[id])
}

type memTenants struct {
	repository.TenantsRepository
	byID map[int64]*domain.Tenant
}

func (m *memTenants) GetTenant(ctx context.Context, id int64) (*domain.Tenant, error) {
	t, ok := m.byID[id]
	if !ok {
		return nil, domain.NotFound("Tenant not found")
	}
	cp := *t
	return &cp, nil
}

type stubDashboard struct{}

func (stubDashboard) Stats(ctx context.Context) (*service.DashboardStats, error) {
	return &service.DashboardStats{Plans: map[string]int{"free": 1}}, nil
}

type stubTenants struct {
	service.TenantService
	items  []*domain.TenantListItem
	filter repository.TenantFilters
}

func (s *stubTenants) Export(ctx context.Context, filter repository.TenantFilters) ([]*domain.TenantListItem, error) {
	s.filter = filter
	return s.items, nil
}

func (s *stubTenants) Create(ctx context.Context, req service.CreateTenantRequest) (*service.CreateTenantResponse, error) {
	return nil, domain.ValidationFailed(map[string]string{"name": "The name field is required."})
}

type stubInvitations struct {
	service.InvitationService
	redeemed []service.RedeemInvitationRequest
}

func (s *stubInvitations) Redeem(ctx context.Context, req service.RedeemInvitationRequest) (*domain.Invitation, error) {
	s.redeemed = append(s.redeemed, req)
	return &domain.Invitation{ID: 1, Code: req.Code, IsUsed: true}, nil
}

type testServer struct {
	*httptest.Server
	users   *memUsers
	tenants *stubTenants
	invites *stubInvitations
	metrics *metrics.Metrics
	redis   *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	verified := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tenantID := int64(7)

	users := &memUsers{byID: map[int64]*domain.User{
		1:  {ID: 1, Name: "Root", Email: "root@kosmo.test", PasswordHash: string(hash), IsSuperAdmin: true, EmailVerifiedAt: &verified},
		2:  {ID: 2, Name: "Fresh", Email: "fresh@kosmo.test", PasswordHash: string(hash), IsSuperAdmin: true},
		42: {ID: 42, Name: "Alice", Email: "alice@acme.com", PasswordHash: string(hash), Role: domain.RoleAdmin, TenantID: &tenantID, EmailVerifiedAt: &verified},
	}}
	tenants := &memTenants{byID: map[int64]*domain.Tenant{7: {ID: 7, Name: "Acme", Slug: "acme", Plan: domain.PlanPro}}}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mgr := session.NewManager(store.NewRedisKV(client), session.Options{Secret: "test-secret-0123456789", TTL: time.Hour})

	logger := zap.NewNop()
	m := metrics.NewMetrics(prometheus.NewRegistry())
	auth := service.NewAuthService(users, mgr, logger)
	imp := service.NewImpersonationService(users, tenants, mgr, service.NewAuditRecorder(logger, nil, ""), m, logger)
	stub := &stubTenants{}
	invites := &stubInvitations{}

	h := Handlers{
		Auth:          NewAuthHandler(auth, imp, logger),
		Dashboard:     NewDashboardHandler(stubDashboard{}, logger),
		Tenants:       NewTenantsHandler(stub, 0, logger),
		Invites:       NewInvitesHandler(invites, 0, logger),
		Billing:       NewBillingHandler(nil, 0, logger),
		Announcements: NewAnnouncementsHandler(nil, 0, logger),
		Impersonation: NewImpersonationHandler(imp, logger),
	}
	guard := NewGuard(auth, mgr, logger)
	router := NewRouter(m, logger)
	router.RegisterAuthRoutes(h.Auth)
	router.RegisterAdminRoutes(guard, h)
	router.RegisterTenantRoutes(guard, h)

	srv := httptest.NewServer(Chain(Recoverer(logger), RequestLogger(logger), Sessions(mgr, logger))(router))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, users: users, tenants: stub, invites: invites, metrics: m, redis: mr}
}

// client 带 cookie jar 且不跟随重定向
func (s *testServer) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

type apiResponse struct {
	Code       int               `json:"code"`
	Message    string            `json:"message"`
	Result     json.RawMessage   `json:"result"`
	Errors     map[string]string `json:"errors"`
	RedirectTo string            `json:"redirect_to"`
}

func (s *testServer) do(t *testing.T, c *http.Client, method, path string, body any) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out apiResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (s *testServer) login(t *testing.T, c *http.Client, email string) {
	t.Helper()
	status, out := s.do(t, c, http.MethodPost, "/auth/api/v1/login", map[string]string{"email": email, "password": testPassword})
	require.Equal(t, http.StatusOK, status, out.Message)
}
