package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"kosmo-admin/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const keyPrefix = "session:"

// Options 会话管理配置
type Options struct {
	Secret     string
	TTL        time.Duration
	CookieName string
	Secure     bool
}

// Manager 会话管理：Redis 存储内容，cookie 中只保存签名后的会话 ID
type Manager struct {
	kv         store.KV
	secret     []byte
	ttl        time.Duration
	cookieName string
	secure     bool
	now        func() time.Time
}

var _ Store = (*Manager)(nil)

func NewManager(kv store.KV, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.CookieName == "" {
		opts.CookieName = "kosmo_session"
	}
	return &Manager{
		kv:         kv,
		secret:     []byte(opts.Secret),
		ttl:        opts.TTL,
		cookieName: opts.CookieName,
		secure:     opts.Secure,
		now:        time.Now,
	}
}

type claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Load 从请求 cookie 恢复会话；cookie 缺失、签名无效或 Redis 中已过期时返回空会话
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	c, err := r.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return &Session{}, nil
	}
	sid, err := m.parseToken(c.Value)
	if err != nil {
		return &Session{}, nil
	}

	raw, err := m.kv.Get(ctx, keyPrefix+sid)
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return &Session{}, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var st State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		// 损坏的会话直接丢弃
		_ = m.kv.Del(ctx, keyPrefix+sid)
		return &Session{}, nil
	}

	// 滑动过期
	if err := m.kv.Expire(ctx, keyPrefix+sid, m.ttl); err != nil && !errors.Is(err, store.ErrMiss) {
		return nil, fmt.Errorf("failed to refresh session ttl: %w", err)
	}
	return &Session{ID: sid, State: st}, nil
}

// Save 写入 Redis，新会话在此分配 ID
func (m *Manager) Save(ctx context.Context, s *Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.now().UTC()
	}
	raw, err := json.Marshal(s.State)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := m.kv.Set(ctx, keyPrefix+s.ID, string(raw), m.ttl); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	s.destroyed = false
	return nil
}

// Destroy 删除服务端会话并清空内容（强制登出）
func (m *Manager) Destroy(ctx context.Context, s *Session) error {
	if s.ID != "" {
		if err := m.kv.Del(ctx, keyPrefix+s.ID); err != nil {
			return fmt.Errorf("failed to destroy session: %w", err)
		}
	}
	s.ID = ""
	s.State = State{}
	s.destroyed = true
	return nil
}

// Regenerate 丢弃旧 ID 换新 ID（登录时防止会话固定），内容保留，需随后 Save
func (m *Manager) Regenerate(ctx context.Context, s *Session) error {
	if s.ID != "" {
		if err := m.kv.Del(ctx, keyPrefix+s.ID); err != nil {
			return fmt.Errorf("failed to regenerate session: %w", err)
		}
	}
	s.ID = uuid.NewString()
	return nil
}

// WriteCookie 根据会话状态写入或清除 cookie，须在写响应体之前调用
func (m *Manager) WriteCookie(w http.ResponseWriter, s *Session) error {
	if s.destroyed || s.ID == "" {
		http.SetCookie(w, &http.Cookie{
			Name:     m.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   m.secure,
			SameSite: http.SameSiteLaxMode,
		})
		return nil
	}
	token, err := m.signToken(s.ID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *Manager) signToken(sid string) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

func (m *Manager) parseToken(raw string) (string, error) {
	c := &claims{}
	token, err := jwt.ParseWithClaims(raw, c, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return "", err
	}
	if !token.Valid || c.SessionID == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return c.SessionID, nil
}
