package service

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"kosmo-admin/internal/domain"
)

// isEmail 只接受裸地址（不含显示名）
func isEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func maxLen(v *domain.Validation, value, field string, n int) {
	if utf8.RuneCountInString(value) > n {
		v.Add(field, fmt.Sprintf("The %s may not be greater than %d characters.", humanize(field), n))
	}
}

func required(v *domain.Validation, value, field string) bool {
	if strings.TrimSpace(value) == "" {
		v.Add(field, fmt.Sprintf("The %s field is required.", humanize(field)))
		return false
	}
	return true
}

const (
	minPasswordLength = 8
	// bcrypt 拒绝超过 72 字节的密码
	maxPasswordBytes = 72
)

func passwordLength(v *domain.Validation, value, field string) {
	switch {
	case utf8.RuneCountInString(value) < minPasswordLength:
		v.Add(field, fmt.Sprintf("The %s must be at least %d characters.", humanize(field), minPasswordLength))
	case len(value) > maxPasswordBytes:
		v.Add(field, fmt.Sprintf("The %s may not be greater than %d bytes.", humanize(field), maxPasswordBytes))
	}
}

func humanize(field string) string { return strings.ReplaceAll(field, "_", " ") }

// trimmed nil 与空白都视为未提供
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
