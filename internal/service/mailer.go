package service

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"net/url"
	"time"

	"kosmo-admin/internal/config"
	"kosmo-admin/internal/domain"
	"kosmo-admin/internal/metrics"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// InviteSubject 邀请邮件标题
const InviteSubject = "You've been invited to FlowKosmo"

//go:embed templates/invite.html
var inviteTemplateSource string

var inviteTemplate = template.Must(template.New("invite").Parse(inviteTemplateSource))

// InviteMailer 邀请邮件发送接口
type InviteMailer interface {
	SendInvite(ctx context.Context, inv *domain.Invitation) error
}

type inviteView struct {
	Code      string
	URL       string
	ExpiresAt *time.Time
	Year      int
}

// RegistrationLink <base>?code=<code>
func RegistrationLink(base, code string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid registration url %q: %w", base, err)
	}
	q := u.Query()
	q.Set("code", code)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// renderInvite 渲染邀请邮件正文
func renderInvite(registrationURL string, inv *domain.Invitation, now time.Time) (string, error) {
	link, err := RegistrationLink(registrationURL, inv.Code)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := inviteTemplate.Execute(&buf, inviteView{
		Code:      inv.Code,
		URL:       link,
		ExpiresAt: inv.ExpiresAt,
		Year:      now.Year(),
	}); err != nil {
		return "", fmt.Errorf("failed to render invite email: %w", err)
	}
	return buf.String(), nil
}

type smtpMailer struct {
	cfg     config.MailConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewInviteMailer 创建 SMTP 邀请邮件发送器；未配置 SMTP_HOST 时返回只记录日志的实现
func NewInviteMailer(cfg config.MailConfig, m *metrics.Metrics, logger *zap.Logger) InviteMailer {
	if cfg.Host == "" {
		return &logMailer{registrationURL: cfg.RegistrationURL, logger: logger}
	}
	return &smtpMailer{cfg: cfg, metrics: m, logger: logger}
}

func (m *smtpMailer) SendInvite(ctx context.Context, inv *domain.Invitation) error {
	if inv.Email == nil {
		return nil
	}
	body, err := renderInvite(m.cfg.RegistrationURL, inv, time.Now())
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(*inv.Email); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(InviteSubject)
	msg.SetBodyString(mail.TypeTextHTML, body)

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTimeout(m.cfg.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		m.count("error")
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		m.count("error")
		return fmt.Errorf("failed to send invite email: %w", err)
	}
	m.count("sent")
	m.logger.Info("Invite email sent", zap.Int64("invitation_id", inv.ID), zap.String("email", *inv.Email))
	return nil
}

func (m *smtpMailer) count(result string) {
	if m.metrics != nil {
		m.metrics.InviteEmailsTotal.WithLabelValues(result).Inc()
	}
}

// logMailer 未配置 SMTP 时使用：只把注册链接写入日志
type logMailer struct {
	registrationURL string
	logger          *zap.Logger
}

func (m *logMailer) SendInvite(ctx context.Context, inv *domain.Invitation) error {
	if inv.Email == nil {
		return nil
	}
	link, err := RegistrationLink(m.registrationURL, inv.Code)
	if err != nil {
		return err
	}
	m.logger.Info("SMTP not configured, invite email not sent",
		zap.Int64("invitation_id", inv.ID),
		zap.String("email", *inv.Email),
		zap.String("registration_url", link),
	)
	return nil
}
