package service

import (
	"context"
	"strings"
	"time"

	"kosmo-admin/internal/domain"
	"kosmo-admin/internal/repository"

	"go.uber.org/zap"
)

// UserAnnouncementLimit 用户端最多展示条数
const UserAnnouncementLimit = 5

// AnnouncementService 公告服务接口
type AnnouncementService interface {
	// 管理端
	Index(ctx context.Context, activeOnly bool, page int) (*Paginated[*domain.Announcement], error)
	Store(ctx context.Context, creator *domain.User, req AnnouncementRequest) (*domain.Announcement, error)
	Show(ctx context.Context, announcementID int64) (*domain.Announcement, error)
	Update(ctx context.Context, announcementID int64, req AnnouncementRequest) (*domain.Announcement, error)
	Destroy(ctx context.Context, announcementID int64) error
	Toggle(ctx context.Context, announcementID int64) (*domain.Announcement, error)

	// 租户端
	ForUser(ctx context.Context, user *domain.User) ([]*domain.Announcement, error)
	Dismiss(ctx context.Context, user *domain.User, announcementID int64) error
}

type announcementService struct {
	announcements repository.AnnouncementsRepository
	tenants       repository.TenantsRepository
	users         repository.UsersRepository
	plans         *domain.PlanCatalog
	logger        *zap.Logger
	now           func() time.Time
}

// NewAnnouncementService 创建 AnnouncementService 实例
func NewAnnouncementService(
	announcements repository.AnnouncementsRepository,
	tenants repository.TenantsRepository,
	users repository.UsersRepository,
	plans *domain.PlanCatalog,
	logger *zap.Logger,
) AnnouncementService {
	return &announcementService{
		announcements: announcements,
		tenants:       tenants,
		users:         users,
		plans:         plans,
		logger:        logger,
		now:           time.Now,
	}
}

// AnnouncementRequest 创建（必填 title/content/type/target）或部分更新
type AnnouncementRequest struct {
	Title         *string      `json:"title"`
	Content       *string      `json:"content"`
	Type          *string      `json:"type"`
	Target        *string      `json:"target"`
	IsActive      *bool        `json:"is_active"`
	IsDismissible *bool        `json:"is_dismissible"`
	StartsAt      OptionalTime `json:"starts_at"`
	EndsAt        OptionalTime `json:"ends_at"`
}

func (s *announcementService) Index(ctx context.Context, activeOnly bool, page int) (*Paginated[*domain.Announcement], error) {
	items, total, err := s.announcements.ListAnnouncements(ctx,
		repository.AnnouncementFilters{ActiveOnly: activeOnly, Now: s.now()},
		repository.Page{Number: page, Size: repository.AnnouncementPageSize})
	if err != nil {
		return nil, err
	}
	return newPaginated(items, page, repository.AnnouncementPageSize, total), nil
}

// apply 校验请求并写入 a；creating 为 true 时必填字段必须出现
func (s *announcementService) apply(a *domain.Announcement, req AnnouncementRequest, creating bool) error {
	var v domain.Validation

	if req.Title != nil || creating {
		title := strings.TrimSpace(deref(req.Title))
		if required(&v, title, "title") {
			maxLen(&v, title, "title", 255)
		}
		a.Title = title
	}
	if req.Content != nil || creating {
		content := strings.TrimSpace(deref(req.Content))
		if required(&v, content, "content") {
			maxLen(&v, content, "content", 5000)
		}
		a.Content = content
	}
	if req.Type != nil || creating {
		typ := strings.TrimSpace(deref(req.Type))
		if required(&v, typ, "type") && !domain.IsAnnouncementType(typ) {
			v.Add("type", "The selected type is invalid.")
		}
		a.Type = typ
	}
	if req.Target != nil || creating {
		target := strings.TrimSpace(deref(req.Target))
		if required(&v, target, "target") {
			maxLen(&v, target, "target", 50)
			if !v.Has("target") && !s.validTarget(target) {
				v.Add("target", "The target must be \"all\" or \"plan:<plan>\".")
			}
		}
		a.Target = target
	}
	if req.IsActive != nil {
		a.IsActive = *req.IsActive
	}
	if req.IsDismissible != nil {
		a.IsDismissible = *req.IsDismissible
	}
	if req.StartsAt.Set {
		if req.StartsAt.Invalid {
			v.Add("starts_at", "The starts at is not a valid date.")
		}
		a.StartsAt = req.StartsAt.Value
	}
	if req.EndsAt.Set {
		if req.EndsAt.Invalid {
			v.Add("ends_at", "The ends at is not a valid date.")
		}
		a.EndsAt = req.EndsAt.Value
	}
	if a.StartsAt != nil && a.EndsAt != nil && !a.EndsAt.After(*a.StartsAt) {
		v.Add("ends_at", "The ends at must be a date after starts at.")
	}
	return v.Err()
}

func (s *announcementService) validTarget(target string) bool {
	if target == domain.TargetAll {
		return true
	}
	plan, ok := domain.ParsePlanTarget(target)
	return ok && s.plans.Has(plan)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (s *announcementService) Store(ctx context.Context, creator *domain.User, req AnnouncementRequest) (*domain.Announcement, error) {
	a := &domain.Announcement{IsActive: true, IsDismissible: true}
	// 新公告总是启用，is_active 只能通过更新/切换修改
	req.IsActive = nil
	if err := s.apply(a, req, true); err != nil {
		return nil, err
	}
	if creator != nil {
		id := creator.ID
		a.CreatedBy = &id
		summary := creator.Summary()
		a.Creator = &summary
	}
	if err := s.announcements.CreateAnnouncement(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("Announcement created",
		zap.Int64("announcement_id", a.ID),
		zap.String("type", a.Type),
		zap.String("target", a.Target),
	)
	return a, nil
}

func (s *announcementService) Show(ctx context.Context, announcementID int64) (*domain.Announcement, error) {
	a, err := s.announcements.GetAnnouncement(ctx, announcementID)
	if err != nil {
		return nil, err
	}
	if a.CreatedBy != nil {
		if u, err := s.users.GetUser(ctx, *a.CreatedBy); err == nil {
			summary := u.Summary()
			a.Creator = &summary
		}
	}
	return a, nil
}

func (s *announcementService) Update(ctx context.Context, announcementID int64, req AnnouncementRequest) (*domain.Announcement, error) {
	a, err := s.announcements.GetAnnouncement(ctx, announcementID)
	if err != nil {
		return nil, err
	}
	if err := s.apply(a, req, false); err != nil {
		return nil, err
	}
	if err := s.announcements.UpdateAnnouncement(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *announcementService) Destroy(ctx context.Context, announcementID int64) error {
	return s.announcements.DeleteAnnouncement(ctx, announcementID)
}

func (s *announcementService) Toggle(ctx context.Context, announcementID int64) (*domain.Announcement, error) {
	return s.announcements.ToggleAnnouncement(ctx, announcementID)
}

func (s *announcementService) ForUser(ctx context.Context, user *domain.User) ([]*domain.Announcement, error) {
	plan := domain.PlanFree
	if user.TenantID != nil {
		tenant, err := s.tenants.GetTenant(ctx, *user.TenantID)
		if err != nil && !domain.IsNotFound(err) {
			return nil, err
		}
		if tenant != nil && tenant.Plan != "" {
			plan = tenant.Plan
		}
	}
	return s.announcements.ListForUser(ctx, plan, user.ID, s.now(), UserAnnouncementLimit)
}

func (s *announcementService) Dismiss(ctx context.Context, user *domain.User, announcementID int64) error {
	a, err := s.announcements.GetAnnouncement(ctx, announcementID)
	if err != nil {
		return err
	}
	if !a.IsDismissible {
		return domain.InvalidState("This announcement cannot be dismissed")
	}
	return s.announcements.Dismiss(ctx, a.ID, user.ID, s.now())
}
