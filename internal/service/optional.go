package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// acceptedTimeLayouts 表单与 API 客户端常见的时间格式
var acceptedTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime 解析 acceptedTimeLayouts 中任一格式；无时区时按 UTC
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range acceptedTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}

// OptionalTime 区分"未提供"与"显式 null"的可空时间字段
type OptionalTime struct {
	Set     bool
	Value   *time.Time
	Invalid bool
}

func (o *OptionalTime) UnmarshalJSON(b []byte) error {
	o.Set = true
	o.Value = nil
	o.Invalid = false
	if string(b) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		o.Invalid = true
		return nil
	}
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	t, err := ParseTime(raw)
	if err != nil {
		o.Invalid = true
		return nil
	}
	o.Value = &t
	return nil
}

func (o OptionalTime) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
