package domain

import (
	"errors"
	"fmt"
)

// ErrorKind 错误分类，HTTP 层据此选择状态码
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindUnauthenticated
	KindForbidden
	KindInvalidState
	KindNotFound
	KindConflict
	KindValidationFailed
	KindAdminAccountInvalid
	KindExternalProvider
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindInvalidState:
		return "invalid_state"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidationFailed:
		return "validation_failed"
	case KindAdminAccountInvalid:
		return "admin_account_invalid"
	case KindExternalProvider:
		return "external_provider_error"
	default:
		return "internal"
	}
}

// Error 领域错误
type Error struct {
	Kind    ErrorKind
	Message string
	// Fields 字段级校验错误（仅 KindValidationFailed）
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Unauthenticated(format string, args ...any) *Error {
	return newError(KindUnauthenticated, format, args...)
}

func Forbidden(format string, args ...any) *Error { return newError(KindForbidden, format, args...) }

func InvalidState(format string, args ...any) *Error {
	return newError(KindInvalidState, format, args...)
}

func NotFound(format string, args ...any) *Error { return newError(KindNotFound, format, args...) }

func Conflict(format string, args ...any) *Error { return newError(KindConflict, format, args...) }

func AdminAccountInvalid(format string, args ...any) *Error {
	return newError(KindAdminAccountInvalid, format, args...)
}

// ExternalProvider 包装第三方（Square/SMTP）调用失败
func ExternalProvider(err error, format string, args ...any) *Error {
	e := newError(KindExternalProvider, format, args...)
	e.Err = err
	return e
}

// ValidationFailed 字段级校验失败
func ValidationFailed(fields map[string]string) *Error {
	return &Error{Kind: KindValidationFailed, Message: "The given data was invalid.", Fields: fields}
}

// FieldError 单字段校验失败
func FieldError(field, message string) *Error {
	return ValidationFailed(map[string]string{field: message})
}

// KindOf 返回错误分类，非领域错误视为 KindInternal
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsNotFound 便捷判断
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// Validation 收集字段错误
type Validation struct {
	fields map[string]string
}

// Add 记录字段错误（同一字段只保留第一条）
func (v *Validation) Add(field, message string) {
	if v.fields == nil {
		v.fields = map[string]string{}
	}
	if _, ok := v.fields[field]; !ok {
		v.fields[field] = message
	}
}

// Check cond 为 false 时记录错误
func (v *Validation) Check(cond bool, field, message string) {
	if !cond {
		v.Add(field, message)
	}
}

// Has 字段是否已有错误
func (v *Validation) Has(field string) bool {
	_, ok := v.fields[field]
	return ok
}

// Err 无错误返回 nil
func (v *Validation) Err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return ValidationFailed(v.fields)
}
