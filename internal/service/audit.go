package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// 审计动作
const (
	AuditImpersonationStarted = "impersonation.started"
	AuditImpersonationEnded   = "impersonation.ended"
)

// AuditEvent 审计事件
type AuditEvent struct {
	Action      string    `json:"action"`
	AdminID     int64     `json:"admin_id"`
	AdminEmail  string    `json:"admin_email"`
	TargetID    int64     `json:"target_id,omitempty"`
	TargetEmail string    `json:"target_email,omitempty"`
	At          time.Time `json:"at"`
}

// AuditPublisher 审计事件外发（MQTT client 满足此接口）
type AuditPublisher interface {
	Publish(topic string, payload []byte) error
}

// AuditRecorder 审计记录接口
type AuditRecorder interface {
	Record(ctx context.Context, event AuditEvent)
}

type auditRecorder struct {
	logger    *zap.Logger
	publisher AuditPublisher
	topic     string
}

// NewAuditRecorder 创建审计记录器；publisher 为 nil 时只写日志
func NewAuditRecorder(logger *zap.Logger, publisher AuditPublisher, topic string) AuditRecorder {
	return &auditRecorder{logger: logger, publisher: publisher, topic: topic}
}

func (a *auditRecorder) Record(ctx context.Context, event AuditEvent) {
	a.logger.Info("Audit event",
		zap.String("action", event.Action),
		zap.Int64("admin_id", event.AdminID),
		zap.String("admin_email", event.AdminEmail),
		zap.Int64("target_id", event.TargetID),
		zap.String("target_email", event.TargetEmail),
		zap.Time("at", event.At),
	)
	if a.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		a.logger.Warn("Failed to encode audit event", zap.Error(err))
		return
	}
	if err := a.publisher.Publish(a.topic, payload); err != nil {
		a.logger.Warn("Failed to publish audit event",
			zap.String("topic", a.topic),
			zap.String("action", event.Action),
			zap.Error(err),
		)
	}
}
