package service

import (
	"context"
	"fmt"
	"strings"

	"kosmo-admin/internal/domain"
	"kosmo-admin/internal/repository"
	"kosmo-admin/internal/session"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthService 登录/登出/当前用户
type AuthService interface {
	Login(ctx context.Context, sess *session.Session, req LoginRequest) (*domain.User, error)
	Logout(ctx context.Context, sess *session.Session) error
	// CurrentUser 从 users 表实时解析会话中的用户；未登录或用户已删除返回 Unauthenticated
	CurrentUser(ctx context.Context, sess *session.Session) (*domain.User, error)
}

type authService struct {
	users    repository.UsersRepository
	sessions session.Store
	logger   *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(users repository.UsersRepository, sessions session.Store, logger *zap.Logger) AuthService {
	return &authService{users: users, sessions: sessions, logger: logger}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

func (s *authService) Login(ctx context.Context, sess *session.Session, req LoginRequest) (*domain.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	var v domain.Validation
	v.Check(req.Email != "", "email", "The email field is required.")
	v.Check(req.Password != "", "password", "The password field is required.")
	if err := v.Err(); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil && !domain.IsNotFound(err) {
		return nil, err
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		s.logger.Warn("User login failed: invalid credentials",
			zap.String("ip_address", req.IPAddress),
			zap.String("user_agent", req.UserAgent),
			zap.String("reason", "invalid_credentials"),
		)
		return nil, domain.FieldError("email", "These credentials do not match our records.")
	}

	if err := s.sessions.Regenerate(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to regenerate session: %w", err)
	}
	sess.ClearImpersonation()
	sess.LoginAs(user.ID)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Info("User logged in",
		zap.Int64("user_id", user.ID),
		zap.Bool("is_super_admin", user.IsSuperAdmin),
		zap.String("ip_address", req.IPAddress),
	)
	return user, nil
}

func (s *authService) Logout(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return nil
	}
	if err := s.sessions.Destroy(ctx, sess); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

func (s *authService) CurrentUser(ctx context.Context, sess *session.Session) (*domain.User, error) {
	if !sess.IsAuthenticated() {
		return nil, domain.Unauthenticated("Unauthenticated.")
	}
	user, err := s.users.GetUser(ctx, sess.UserID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.Unauthenticated("Unauthenticated.")
		}
		return nil, err
	}
	return user, nil
}
