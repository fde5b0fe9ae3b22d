package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"kosmo-admin/internal/domain"
	"kosmo-admin/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeInvitations struct {
	repository.InvitationsRepository
	codes    map[string]bool
	created  []*domain.Invitation
	filter   repository.InvitationFilters
	conflict bool
	redeemed []string
}

func (f *fakeInvitations) RedeemInvitation(ctx context.Context, code string, userID, tenantID int64, email string, now time.Time) (*domain.Invitation, error) {
	f.redeemed = append(f.redeemed, fmt.Sprintf("%s|%d|%d|%s", code, userID, tenantID, email))
	return &domain.Invitation{ID: 1, Code: code, IsUsed: true, UsedBy: &userID, TenantID: &tenantID, UsedAt: &now}, nil
}

func (f *fakeInvitations) CodeExists(ctx context.Context, code string) (bool, error) {
	return f.codes[strings.ToUpper(code)], nil
}

func (f *fakeInvitations) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	if f.conflict {
		return domain.Conflict("Invite code %s already exists", inv.Code)
	}
	inv.ID = int64(len(f.created) + 1)
	f.created = append(f.created, inv)
	return nil
}

func (f *fakeInvitations) ListInvitations(ctx context.Context, filter repository.InvitationFilters, page repository.Page) ([]*domain.Invitation, int, error) {
	f.filter = filter
	return []*domain.Invitation{{ID: 1, Code: "ABCD1234"}}, 21, nil
}

type fakeMailer struct {
	sent []*domain.Invitation
	err  error
}

func (f *fakeMailer) SendInvite(ctx context.Context, inv *domain.Invitation) error {
	f.sent = append(f.sent, inv)
	return f.err
}

func newTestInvitationService(repo *fakeInvitations, mailer InviteMailer) *invitationService {
	svc := NewInvitationService(repo, mailer, zap.NewNop()).(*invitationService)
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestInvitationStore_CustomCodeUppercased(t *testing.T) {
	repo := &fakeInvitations{codes: map[string]bool{}}
	mailer := &fakeMailer{}
	svc := newTestInvitationService(repo, mailer)
	creator := &domain.User{ID: 1}

	inv, err := svc.Store(context.Background(), creator, CreateInvitationRequest{
		Code:          strp("welcome1"),
		Email:         strp("new@biz.com"),
		ExpiresInDays: intp(7),
	})
	require.NoError(t, err)
	assert.Equal(t, "WELCOME1", inv.Code)
	require.NotNil(t, inv.CreatedBy)
	assert.Equal(t, int64(1), *inv.CreatedBy)
	require.NotNil(t, inv.ExpiresAt)
	assert.Equal(t, time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC), *inv.ExpiresAt)
	require.Len(t, mailer.sent, 1)
}

func TestInvitationStore_CustomCodeCollision(t *testing.T) {
	repo := &fakeInvitations{codes: map[string]bool{"WELCOME1": true}}
	svc := newTestInvitationService(repo, &fakeMailer{})

	_, err := svc.Store(context.Background(), nil, CreateInvitationRequest{Code: strp("welcome1")})
	assert.Equal(t, "The code has already been taken.", fieldErrors(t, err)["code"])
	assert.Empty(t, repo.created)
}

func TestInvitationStore_Validation(t *testing.T) {
	svc := newTestInvitationService(&fakeInvitations{codes: map[string]bool{}}, &fakeMailer{})

	_, err := svc.Store(context.Background(), nil, CreateInvitationRequest{
		Code:          strp("ab!"),
		Email:         strp("not-an-email"),
		ExpiresInDays: intp(366),
	})
	fields := fieldErrors(t, err)
	assert.Contains(t, fields, "code")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "expires_in_days")
}

func TestInvitationStore_GeneratedCodeRetriesOnCollision(t *testing.T) {
	repo := &fakeInvitations{codes: map[string]bool{"AAAAAAAA": true}}
	svc := newTestInvitationService(repo, &fakeMailer{})
	queue := []string{"AAAAAAAA", "BBBBBBBB"}
	svc.randomCode = func() (string, error) {
		c := queue[0]
		queue = queue[1:]
		return c, nil
	}

	inv, err := svc.Store(context.Background(), nil, CreateInvitationRequest{})
	require.NoError(t, err)
	assert.Equal(t, "BBBBBBBB", inv.Code)
	assert.Nil(t, inv.ExpiresAt)
}

func TestInvitationStore_MailFailureIsNotFatal(t *testing.T) {
	repo := &fakeInvitations{codes: map[string]bool{}}
	mailer := &fakeMailer{err: errors.New("smtp down")}
	svc := newTestInvitationService(repo, mailer)

	inv, err := svc.Store(context.Background(), nil, CreateInvitationRequest{Email: strp("new@biz.com")})
	require.NoError(t, err)
	assert.NotZero(t, inv.ID)
	assert.Len(t, mailer.sent, 1)
}

func TestInvitationStore_NoEmailNoMail(t *testing.T) {
	mailer := &fakeMailer{}
	svc := newTestInvitationService(&fakeInvitations{codes: map[string]bool{}}, mailer)

	_, err := svc.Store(context.Background(), nil, CreateInvitationRequest{})
	require.NoError(t, err)
	assert.Empty(t, mailer.sent)
}

func TestRandomInviteCode(t *testing.T) {
	re := regexp.MustCompile(`^[A-Z0-9]{8}$`)
	for i := 0; i < 20; i++ {
		code, err := randomInviteCode()
		require.NoError(t, err)
		assert.Regexp(t, re, code)
	}
}

func TestInvitationIndex(t *testing.T) {
	repo := &fakeInvitations{}
	svc := newTestInvitationService(repo, &fakeMailer{})

	page, err := svc.Index(context.Background(), domain.InvitationStatusExpired, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 2, page.LastPage)
	assert.Equal(t, 21, page.Total)
	assert.Equal(t, domain.InvitationStatusExpired, repo.filter.Status)
	assert.False(t, repo.filter.Now.IsZero())

	_, err = svc.Index(context.Background(), "bogus", 1)
	assert.Contains(t, fieldErrors(t, err), "status")
}

func TestInvitationRedeem(t *testing.T) {
	repo := &fakeInvitations{}
	svc := newTestInvitationService(repo, &fakeMailer{})

	inv, err := svc.Redeem(context.Background(), RedeemInvitationRequest{Code: " WELCOME1 ", UserID: 42, Email: "alice@acme.com", TenantID: 7})
	require.NoError(t, err)
	assert.True(t, inv.IsUsed)
	assert.Equal(t, []string{"WELCOME1|42|7|alice@acme.com"}, repo.redeemed)

	_, err = svc.Redeem(context.Background(), RedeemInvitationRequest{UserID: 42})
	errs := fieldErrors(t, err)
	assert.Contains(t, errs, "code")
	assert.Contains(t, errs, "tenant_id")
	assert.Len(t, repo.redeemed, 1)
}
