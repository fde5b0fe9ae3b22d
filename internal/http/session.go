package httpapi

import (
	"context"
	"net/http"

	"kosmo-admin/internal/session"

	"go.uber.org/zap"
)

// SessionManager 会话加载与 cookie 写入（session.Manager 实现）
type SessionManager interface {
	session.Store
	Load(ctx context.Context, r *http.Request) (*session.Session, error)
	WriteCookie(w http.ResponseWriter, s *session.Session) error
}

// cookieWriter 在第一次写响应头之前按会话最终状态写 cookie
type cookieWriter struct {
	http.ResponseWriter
	mgr     SessionManager
	sess    *session.Session
	logger  *zap.Logger
	written bool
}

func (w *cookieWriter) writeCookie() {
	if w.written {
		return
	}
	w.written = true
	if w.sess.ID == "" && !w.sess.Destroyed() {
		return
	}
	if err := w.mgr.WriteCookie(w.ResponseWriter, w.sess); err != nil {
		w.logger.Error("Failed to write session cookie", zap.Error(err))
	}
}

func (w *cookieWriter) WriteHeader(code int) {
	w.writeCookie()
	w.ResponseWriter.WriteHeader(code)
}

func (w *cookieWriter) Write(b []byte) (int, error) {
	w.writeCookie()
	return w.ResponseWriter.Write(b)
}

// Sessions 加载会话放入 context，响应时同步 cookie
func Sessions(mgr SessionManager, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := mgr.Load(r.Context(), r)
			if err != nil {
				logger.Error("Failed to load session", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, Fail("Session store unavailable"))
				return
			}
			cw := &cookieWriter{ResponseWriter: w, mgr: mgr, sess: sess, logger: logger}
			next.ServeHTTP(cw, r.WithContext(session.WithSession(r.Context(), sess)))
			cw.writeCookie()
		})
	}
}
