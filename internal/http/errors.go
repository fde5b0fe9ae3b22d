package httpapi

import (
	"errors"
	"net/http"

	"kosmo-admin/internal/domain"
	"kosmo-admin/internal/service"

	"go.uber.org/zap"
)

func statusForKind(k domain.ErrorKind) int {
	switch k {
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindInvalidState, domain.KindAdminAccountInvalid:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindValidationFailed:
		return http.StatusUnprocessableEntity
	case domain.KindExternalProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError 领域错误映射为状态码 + ErrorResult；其它错误记日志并返回 500
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind == domain.KindInternal {
		logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResult{Code: ResultError, Type: "error", Message: "Server Error"})
		return
	}

	status := statusForKind(de.Kind)
	out := ErrorResult{Code: ResultError, Type: "error", Message: de.Message}
	switch de.Kind {
	case domain.KindValidationFailed:
		out.Errors = de.Fields
	case domain.KindAdminAccountInvalid:
		out.RedirectTo = service.LoginPath
	case domain.KindExternalProvider:
		logger.Error("External provider error", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, out)
}

func writeBadBody(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusNotFound, Fail(message))
}
