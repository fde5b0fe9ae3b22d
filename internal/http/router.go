package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"kosmo-admin/internal/metrics"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（Go 1.22 方法 + 路径参数模式）
type Router struct {
	mux     *http.ServeMux
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRouter m 为 nil 时不记录请求指标
func NewRouter(m *metrics.Metrics, logger *zap.Logger) *Router {
	return &Router{
		mux:     http.NewServeMux(),
		metrics: m,
		logger:  logger,
	}
}

// Handle 注册路由，pattern 形如 "GET /admin/api/v1/tenants/{tenant}"
func (r *Router) Handle(pattern string, h http.Handler) {
	r.mux.Handle(pattern, r.instrument(pattern, h))
}

func (r *Router) HandleFunc(pattern string, h http.HandlerFunc) {
	r.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// instrument 按路由模板（而非实际路径）统计请求数与耗时
func (r *Router) instrument(pattern string, h http.Handler) http.Handler {
	if r.metrics == nil {
		return h
	}
	_, route, found := strings.Cut(pattern, " ")
	if !found {
		route = pattern
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		h.ServeHTTP(sw, req)
		r.metrics.HTTPRequestsTotal.WithLabelValues(req.Method, route, strconv.Itoa(sw.Status())).Inc()
		r.metrics.HTTPRequestDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handlers 所有业务 handler
type Handlers struct {
	Auth          *AuthHandler
	Dashboard     *DashboardHandler
	Tenants       *TenantsHandler
	Invites       *InvitesHandler
	Billing       *BillingHandler
	Announcements *AnnouncementsHandler
	Impersonation *ImpersonationHandler
}

// RegisterAuthRoutes 登录/登出/当前用户（不经过守卫）
func (r *Router) RegisterAuthRoutes(h *AuthHandler) {
	r.HandleFunc("POST /auth/api/v1/login", h.Login)
	r.HandleFunc("POST /auth/api/v1/logout", h.Logout)
	r.HandleFunc("GET /auth/api/v1/me", h.Me)
}

// RegisterAdminRoutes 超级管理员接口，全部经过 Guard
func (r *Router) RegisterAdminRoutes(g *Guard, h Handlers) {
	admin := func(pattern string, fn http.HandlerFunc) {
		r.Handle(pattern, g.SuperAdmin(fn))
	}

	admin("GET /admin/api/v1/stats", h.Dashboard.Stats)

	// tenants
	admin("GET /admin/api/v1/tenants", h.Tenants.List)
	admin("POST /admin/api/v1/tenants", h.Tenants.Create)
	admin("GET /admin/api/v1/tenants/export", h.Tenants.Export)
	admin("GET /admin/api/v1/tenants/{tenant}", h.Tenants.Show)
	admin("PUT /admin/api/v1/tenants/{tenant}", h.Tenants.Update)
	admin("DELETE /admin/api/v1/tenants/{tenant}", h.Tenants.Destroy)
	admin("POST /admin/api/v1/tenants/{tenant}/suspend", h.Tenants.Suspend)
	admin("PUT /admin/api/v1/tenants/{tenant}/users/{user}", h.Tenants.UpdateUser)
	admin("POST /admin/api/v1/tenants/{tenant}/users/{user}/verify", h.Tenants.VerifyUser)

	// invites
	admin("GET /admin/api/v1/invites", h.Invites.Index)
	admin("POST /admin/api/v1/invites", h.Invites.Store)
	admin("DELETE /admin/api/v1/invites/{invite}", h.Invites.Destroy)

	// subscriptions / billing
	admin("PUT /admin/api/v1/subscriptions/{tenant}", h.Billing.UpdatePlan)
	admin("GET /admin/api/v1/billing/status", h.Billing.Status)
	admin("GET /admin/api/v1/billing/overview", h.Billing.Overview)
	admin("GET /admin/api/v1/billing/tenants/{tenant}", h.Billing.TenantBilling)
	admin("POST /admin/api/v1/billing/tenants/{tenant}/subscription", h.Billing.CreateSubscription)
	admin("POST /admin/api/v1/billing/tenants/{tenant}/invoices", h.Billing.CreateInvoice)
	admin("POST /admin/api/v1/billing/tenants/{tenant}/payments", h.Billing.RecordPayment)
	admin("POST /admin/api/v1/billing/tenants/{tenant}/cancel", h.Billing.Cancel)

	// announcements
	admin("GET /admin/api/v1/announcements", h.Announcements.Index)
	admin("POST /admin/api/v1/announcements", h.Announcements.Store)
	admin("GET /admin/api/v1/announcements/{announcement}", h.Announcements.Show)
	admin("PUT /admin/api/v1/announcements/{announcement}", h.Announcements.Update)
	admin("DELETE /admin/api/v1/announcements/{announcement}", h.Announcements.Destroy)
	admin("POST /admin/api/v1/announcements/{announcement}/toggle", h.Announcements.Toggle)

	// impersonation：stop/status 允许模拟中的会话
	admin("POST /admin/api/v1/impersonate/{user}", h.Impersonation.Start)
	r.Handle("POST /admin/api/v1/impersonate/stop", g.AllowImpersonating(http.HandlerFunc(h.Impersonation.Stop)))
	r.Handle("GET /admin/api/v1/impersonate/status", g.AllowImpersonating(http.HandlerFunc(h.Impersonation.Status)))
}

// RegisterTenantRoutes 租户端接口（任意已登录用户）
func (r *Router) RegisterTenantRoutes(g *Guard, h Handlers) {
	r.Handle("GET /api/v1/announcements", g.RequireAuth(http.HandlerFunc(h.Announcements.ForUser)))
	r.Handle("POST /api/v1/announcements/{announcement}/dismiss", g.RequireAuth(http.HandlerFunc(h.Announcements.Dismiss)))
	r.Handle("POST /api/v1/invites/redeem", g.RequireAuth(http.HandlerFunc(h.Invites.Redeem)))
}

// RegisterOpsRoutes 探活与指标
func (r *Router) RegisterOpsRoutes(health http.Handler, metricsHandler http.Handler) {
	r.mux.Handle("GET /healthz", health)
	if metricsHandler != nil {
		r.mux.Handle("GET /metrics", metricsHandler)
	}
}
