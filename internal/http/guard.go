package httpapi

import (
	"context"
	"net/http"

	"kosmo-admin/internal/domain"
	"kosmo-admin/internal/service"
	"kosmo-admin/internal/session"

	"go.uber.org/zap"
)

type userCtxKey struct{}

func withUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext 当前请求的认证用户（经过 Guard/RequireAuth 后非 nil）
func UserFromContext(ctx context.Context) *domain.User {
	u, _ := ctx.Value(userCtxKey{}).(*domain.User)
	return u
}

// Guard 超级管理员守卫
type Guard struct {
	auth     service.AuthService
	sessions session.Store
	logger   *zap.Logger
}

func NewGuard(auth service.AuthService, sessions session.Store, logger *zap.Logger) *Guard {
	return &Guard{auth: auth, sessions: sessions, logger: logger}
}

// unauthenticated API 调用方 401，页面请求跳转登录页
func (g *Guard) unauthenticated(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusUnauthorized, Fail("Unauthenticated."))
		return
	}
	http.Redirect(w, r, service.LoginPath, http.StatusFound)
}

// resolve 每次请求都从 users 表重新解析当前用户
func (g *Guard) resolve(w http.ResponseWriter, r *http.Request) (*session.Session, *domain.User, bool) {
	sess := session.FromContext(r.Context())
	user, err := g.auth.CurrentUser(r.Context(), sess)
	if err != nil {
		if domain.KindOf(err) == domain.KindUnauthenticated {
			g.unauthenticated(w, r)
			return nil, nil, false
		}
		writeError(w, r, g.logger, err)
		return nil, nil, false
	}
	return sess, user, true
}

// SuperAdmin 要求超级管理员；非超级管理员的会话被销毁（强制登出）
func (g *Guard) SuperAdmin(next http.Handler) http.Handler {
	return g.superAdmin(next, false)
}

// AllowImpersonating 仅用于 impersonate/stop 与 impersonate/status：
// 处于模拟登录中的会话即使当前用户不是超级管理员也可通过
func (g *Guard) AllowImpersonating(next http.Handler) http.Handler {
	return g.superAdmin(next, true)
}

func (g *Guard) superAdmin(next http.Handler, allowImpersonating bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, user, ok := g.resolve(w, r)
		if !ok {
			return
		}

		if allowImpersonating && sess.IsImpersonating() {
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
			return
		}

		if !user.IsSuperAdmin {
			if err := g.sessions.Destroy(r.Context(), sess); err != nil {
				g.logger.Error("Failed to destroy session of non-super-admin", zap.Int64("user_id", user.ID), zap.Error(err))
			}
			g.logger.Warn("Non-super-admin denied admin access, session destroyed",
				zap.Int64("user_id", user.ID),
				zap.String("path", r.URL.Path),
				zap.String("ip_address", clientIP(r)),
			)
			writeJSON(w, http.StatusForbidden, Fail("Access denied. Super admin privileges required."))
			return
		}

		if user.EmailVerifiedAt == nil {
			writeJSON(w, http.StatusForbidden, Fail("Your email address is not verified."))
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// RequireAuth 任意已登录用户（租户端接口）
func (g *Guard) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, user, ok := g.resolve(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}
