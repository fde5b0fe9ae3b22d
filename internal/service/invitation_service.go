package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"kosmo-admin/internal/domain"
	"kosmo-admin/internal/repository"

	"go.uber.org/zap"
)

const (
	inviteCodeLength   = 8
	inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeAttempts    = 10
)

var customCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{4,20}$`)

// InvitationService 邀请码服务接口
type InvitationService interface {
	Index(ctx context.Context, status string, page int) (*Paginated[*domain.Invitation], error)
	Store(ctx context.Context, creator *domain.User, req CreateInvitationRequest) (*domain.Invitation, error)
	Destroy(ctx context.Context, invitationID int64) error
	// Redeem 注册流程中使用邀请码
	Redeem(ctx context.Context, req RedeemInvitationRequest) (*domain.Invitation, error)
}

type invitationService struct {
	invitations repository.InvitationsRepository
	mailer      InviteMailer
	logger      *zap.Logger
	now         func() time.Time
	randomCode  func() (string, error)
}

// NewInvitationService 创建 InvitationService 实例
func NewInvitationService(invitations repository.InvitationsRepository, mailer InviteMailer, logger *zap.Logger) InvitationService {
	return &invitationService{
		invitations: invitations,
		mailer:      mailer,
		logger:      logger,
		now:         time.Now,
		randomCode:  randomInviteCode,
	}
}

// CreateInvitationRequest 创建邀请码
type CreateInvitationRequest struct {
	Code          *string `json:"code"`
	Email         *string `json:"email"`
	ExpiresInDays *int    `json:"expires_in_days"`
}

// RedeemInvitationRequest 使用邀请码
type RedeemInvitationRequest struct {
	Code     string `json:"code"`
	UserID   int64  `json:"-"`
	Email    string `json:"-"`
	TenantID int64  `json:"tenant_id"`
}

func (s *invitationService) Index(ctx context.Context, status string, page int) (*Paginated[*domain.Invitation], error) {
	switch status {
	case "", domain.InvitationStatusUsed, domain.InvitationStatusUnused, domain.InvitationStatusExpired:
	default:
		return nil, domain.FieldError("status", "The selected status is invalid.")
	}
	items, total, err := s.invitations.ListInvitations(ctx,
		repository.InvitationFilters{Status: status, Now: s.now()},
		repository.Page{Number: page, Size: repository.DefaultPageSize})
	if err != nil {
		return nil, err
	}
	return newPaginated(items, page, repository.DefaultPageSize, total), nil
}

func (s *invitationService) Store(ctx context.Context, creator *domain.User, req CreateInvitationRequest) (*domain.Invitation, error) {
	code := trimmed(req.Code)
	email := trimmed(req.Email)

	var v domain.Validation
	if code != nil {
		if !customCodePattern.MatchString(*code) {
			v.Add("code", "The code must be 4 to 20 letters or digits.")
		} else {
			upper := strings.ToUpper(*code)
			code = &upper
			exists, err := s.invitations.CodeExists(ctx, upper)
			if err != nil {
				return nil, err
			}
			v.Check(!exists, "code", "The code has already been taken.")
		}
	}
	if email != nil {
		maxLen(&v, *email, "email", 255)
		if !v.Has("email") && !isEmail(*email) {
			v.Add("email", "The email must be a valid email address.")
		}
	}
	if req.ExpiresInDays != nil && (*req.ExpiresInDays < 1 || *req.ExpiresInDays > 365) {
		v.Add("expires_in_days", "The expires in days must be between 1 and 365.")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	if code == nil {
		generated, err := s.uniqueCode(ctx)
		if err != nil {
			return nil, err
		}
		code = &generated
	}

	inv := &domain.Invitation{Code: *code, Email: email}
	if creator != nil {
		id := creator.ID
		inv.CreatedBy = &id
	}
	if req.ExpiresInDays != nil {
		exp := s.now().AddDate(0, 0, *req.ExpiresInDays)
		inv.ExpiresAt = &exp
	}
	if err := s.invitations.CreateInvitation(ctx, inv); err != nil {
		if domain.KindOf(err) == domain.KindConflict {
			return nil, domain.FieldError("code", "The code has already been taken.")
		}
		return nil, err
	}

	s.logger.Info("Invite code created",
		zap.Int64("invitation_id", inv.ID),
		zap.String("code", inv.Code),
		zap.Bool("has_email", inv.Email != nil),
	)

	// 邮件发送失败只记录日志，不影响邀请码本身
	if inv.Email != nil {
		if err := s.mailer.SendInvite(ctx, inv); err != nil {
			s.logger.Error("Failed to send invite email",
				zap.Int64("invitation_id", inv.ID),
				zap.String("email", *inv.Email),
				zap.Error(err),
			)
		}
	}
	return inv, nil
}

// uniqueCode 随机生成直到未被占用
func (s *invitationService) uniqueCode(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := s.randomCode()
		if err != nil {
			return "", err
		}
		exists, err := s.invitations.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique invite code after %d attempts", maxCodeAttempts)
}

func randomInviteCode() (string, error) {
	b := make([]byte, inviteCodeLength)
	max := big.NewInt(int64(len(inviteCodeAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate invite code: %w", err)
		}
		b[i] = inviteCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}

func (s *invitationService) Destroy(ctx context.Context, invitationID int64) error {
	if err := s.invitations.DeleteUnusedInvitation(ctx, invitationID); err != nil {
		return err
	}
	s.logger.Info("Invite code revoked", zap.Int64("invitation_id", invitationID))
	return nil
}

func (s *invitationService) Redeem(ctx context.Context, req RedeemInvitationRequest) (*domain.Invitation, error) {
	code := strings.TrimSpace(req.Code)
	var v domain.Validation
	required(&v, code, "code")
	v.Check(req.TenantID > 0, "tenant_id", "The tenant id field is required.")
	if err := v.Err(); err != nil {
		return nil, err
	}
	inv, err := s.invitations.RedeemInvitation(ctx, code, req.UserID, req.TenantID, req.Email, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("Invite code redeemed",
		zap.Int64("invitation_id", inv.ID),
		zap.Int64("user_id", req.UserID),
		zap.Int64("tenant_id", req.TenantID),
	)
	return inv, nil
}
