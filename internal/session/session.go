package session

import (
	"context"
	"time"
)

// State 服务端会话内容（存于 Redis，JSON 编码）
type State struct {
	UserID                 int64      `json:"user_id,omitempty"`
	ImpersonatingFrom      *int64     `json:"impersonating_from,omitempty"`
	ImpersonationStartedAt *time.Time `json:"impersonation_started_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
}

// Session 请求级会话对象，由中间件加载并放入 context
type Session struct {
	ID string
	State

	destroyed bool
}

// IsAuthenticated 会话是否绑定了用户
func (s *Session) IsAuthenticated() bool { return s != nil && s.UserID != 0 }

// IsImpersonating 会话是否处于模拟登录状态
func (s *Session) IsImpersonating() bool { return s != nil && s.ImpersonatingFrom != nil }

// Destroyed 本次请求中会话已被销毁（需清除 cookie）
func (s *Session) Destroyed() bool { return s.destroyed }

// LoginAs 切换当前认证用户
func (s *Session) LoginAs(userID int64) {
	s.UserID = userID
}

// BeginImpersonation 记录原管理员并切换到目标用户
func (s *Session) BeginImpersonation(adminID, targetID int64, at time.Time) {
	from := adminID
	started := at.UTC()
	s.ImpersonatingFrom = &from
	s.ImpersonationStartedAt = &started
	s.UserID = targetID
}

// ClearImpersonation 移除模拟登录相关字段
func (s *Session) ClearImpersonation() {
	s.ImpersonatingFrom = nil
	s.ImpersonationStartedAt = nil
}

// Store 会话持久化（服务层只依赖此接口）
type Store interface {
	Save(ctx context.Context, s *Session) error
	Destroy(ctx context.Context, s *Session) error
	Regenerate(ctx context.Context, s *Session) error
}

type ctxKey struct{}

// WithSession 将会话放入 context
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext 取出会话；未经过会话中间件时返回 nil
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
