package service

import (
	"context"
	"fmt"
	"time"

	"kosmo-admin/internal/domain"
	"kosmo-admin/internal/metrics"
	"kosmo-admin/internal/repository"
	"kosmo-admin/internal/session"

	"go.uber.org/zap"
)

// 模拟登录结束后的跳转
const (
	AdminHomePath     = "/admin"
	LoginPath         = "/login"
	DefaultTenantHome = "/dashboard"
)

// ImpersonationService 超级管理员模拟登录
//
// 状态机只有两个状态：Normal（会话中无 impersonating_from）与 Impersonating。
// Start 只能从 Normal 进入；Stop 必须重新从 users 表校验原管理员。
type ImpersonationService interface {
	Start(ctx context.Context, sess *session.Session, caller *domain.User, targetID int64) (*ImpersonationResult, error)
	Stop(ctx context.Context, sess *session.Session) (*ImpersonationResult, error)
	Status(sess *session.Session) ImpersonationStatus
}

type impersonationService struct {
	users    repository.UsersRepository
	tenants  repository.TenantsRepository
	sessions session.Store
	audit    AuditRecorder
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewImpersonationService 创建 ImpersonationService 实例；m 可为 nil
func NewImpersonationService(
	users repository.UsersRepository,
	tenants repository.TenantsRepository,
	sessions session.Store,
	audit AuditRecorder,
	m *metrics.Metrics,
	logger *zap.Logger,
) ImpersonationService {
	return &impersonationService{
		users:    users,
		tenants:  tenants,
		sessions: sessions,
		audit:    audit,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// ImpersonationResult start/stop 响应
type ImpersonationResult struct {
	Message    string              `json:"message"`
	User       *domain.UserSummary `json:"user,omitempty"`
	RedirectTo string              `json:"redirect_to"`
}

// ImpersonationStatus status 响应
type ImpersonationStatus struct {
	IsImpersonating bool       `json:"is_impersonating"`
	StartedAt       *time.Time `json:"started_at"`
}

func (s *impersonationService) Start(ctx context.Context, sess *session.Session, caller *domain.User, targetID int64) (*ImpersonationResult, error) {
	if caller == nil || !caller.IsSuperAdmin {
		return nil, domain.Forbidden("Unauthorized. Super admin access required.")
	}
	if sess.IsImpersonating() {
		return nil, domain.InvalidState("Already impersonating a user")
	}

	target, err := s.users.GetUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.IsSuperAdmin {
		s.logger.Warn("Blocked impersonation of super admin",
			zap.Int64("admin_id", caller.ID),
			zap.Int64("target_id", target.ID),
		)
		return nil, domain.Forbidden("Cannot impersonate another super admin")
	}

	redirect, err := s.tenantHome(ctx, target)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess.BeginImpersonation(caller.ID, target.ID, now)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.audit.Record(ctx, AuditEvent{
		Action:      AuditImpersonationStarted,
		AdminID:     caller.ID,
		AdminEmail:  caller.Email,
		TargetID:    target.ID,
		TargetEmail: target.Email,
		At:          now,
	})
	s.count("start")

	summary := target.Summary()
	return &ImpersonationResult{
		Message:    fmt.Sprintf("Now impersonating %s", target.Name),
		User:       &summary,
		RedirectTo: redirect,
	}, nil
}

// tenantHome 目标用户的租户首页，无租户时为 /dashboard
func (s *impersonationService) tenantHome(ctx context.Context, target *domain.User) (string, error) {
	if target.TenantID == nil {
		return DefaultTenantHome, nil
	}
	tenant, err := s.tenants.GetTenant(ctx, *target.TenantID)
	if err != nil {
		if domain.IsNotFound(err) {
			return DefaultTenantHome, nil
		}
		return "", err
	}
	return "/" + tenant.Slug + "/dashboard", nil
}

func (s *impersonationService) Stop(ctx context.Context, sess *session.Session) (*ImpersonationResult, error) {
	if !sess.IsImpersonating() {
		return nil, domain.InvalidState("Not currently impersonating anyone")
	}
	adminID := *sess.ImpersonatingFrom
	impersonatedID := sess.UserID

	admin, err := s.users.GetUser(ctx, adminID)
	if err != nil && !domain.IsNotFound(err) {
		return nil, err
	}
	if admin == nil || !admin.IsSuperAdmin {
		// 会话中的管理员 ID 不再可信：清空并强制登出
		s.logger.Warn("Impersonation stop with invalid admin account, forcing logout",
			zap.Int64("admin_id", adminID),
			zap.Int64("impersonated_user_id", impersonatedID),
		)
		sess.ClearImpersonation()
		if err := s.sessions.Destroy(ctx, sess); err != nil {
			return nil, fmt.Errorf("failed to destroy session: %w", err)
		}
		s.count("invalid_admin")
		return nil, domain.AdminAccountInvalid("Original admin account not found")
	}

	sess.ClearImpersonation()
	sess.LoginAs(admin.ID)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	event := AuditEvent{
		Action:     AuditImpersonationEnded,
		AdminID:    admin.ID,
		AdminEmail: admin.Email,
		TargetID:   impersonatedID,
		At:         s.now(),
	}
	if target, err := s.users.GetUser(ctx, impersonatedID); err == nil {
		event.TargetEmail = target.Email
	}
	s.audit.Record(ctx, event)
	s.count("stop")

	return &ImpersonationResult{
		Message:    "Returned to admin account",
		RedirectTo: AdminHomePath,
	}, nil
}

func (s *impersonationService) Status(sess *session.Session) ImpersonationStatus {
	if !sess.IsImpersonating() {
		return ImpersonationStatus{}
	}
	return ImpersonationStatus{IsImpersonating: true, StartedAt: sess.ImpersonationStartedAt}
}

func (s *impersonationService) count(action string) {
	if s.metrics != nil {
		s.metrics.ImpersonationsTotal.WithLabelValues(action).Inc()
	}
}
