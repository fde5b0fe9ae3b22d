package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kosmo-admin/internal/domain"
)

// PostgresAnnouncementsRepository 公告Repository实现
type PostgresAnnouncementsRepository struct {
	db *sql.DB
}

func NewPostgresAnnouncementsRepository(db *sql.DB) *PostgresAnnouncementsRepository {
	return &PostgresAnnouncementsRepository{db: db}
}

var _ AnnouncementsRepository = (*PostgresAnnouncementsRepository)(nil)

const announcementColumns = `a.id, a.title, a.content, a.type, a.target, a.is_active, a.is_dismissible, a.starts_at, a.ends_at, a.created_by, a.created_at, a.updated_at`

// activeScope 生效条件：is_active 且在起止时间之内；时间参数占位符为 $n
func activeScope(n int) string {
	return fmt.Sprintf("a.is_active = TRUE AND (a.starts_at IS NULL OR a.starts_at <= $%d) AND (a.ends_at IS NULL OR a.ends_at >= $%d)", n, n)
}

func scanAnnouncement(row rowScanner, extra ...any) (*domain.Announcement, error) {
	var (
		a                domain.Announcement
		startsAt, endsAt sql.NullTime
		createdBy        sql.NullInt64
	)
	dest := append([]any{&a.ID, &a.Title, &a.Content, &a.Type, &a.Target, &a.IsActive, &a.IsDismissible,
		&startsAt, &endsAt, &createdBy, &a.CreatedAt, &a.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	a.StartsAt = timePtr(startsAt)
	a.EndsAt = timePtr(endsAt)
	a.CreatedBy = int64Ptr(createdBy)
	return &a, nil
}

func (r *PostgresAnnouncementsRepository) ListAnnouncements(ctx context.Context, filter AnnouncementFilters, page Page) ([]*domain.Announcement, int, error) {
	page = page.normalize(AnnouncementPageSize)

	whereClause := ""
	args := []any{}
	argIdx := 1
	if filter.ActiveOnly {
		now := filter.Now
		if now.IsZero() {
			now = time.Now()
		}
		whereClause = "WHERE " + activeScope(argIdx)
		args = append(args, now)
		argIdx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM announcements a `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count announcements: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s, c.name, c.email FROM announcements a
		LEFT JOIN users c ON c.id = a.created_by
		%s ORDER BY a.created_at DESC, a.id DESC LIMIT $%d OFFSET $%d`,
		announcementColumns, whereClause, argIdx, argIdx+1)
	args = append(args, page.Size, page.offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list announcements: %w", err)
	}
	defer rows.Close()

	items := []*domain.Announcement{}
	for rows.Next() {
		var creatorName, creatorEmail sql.NullString
		a, err := scanAnnouncement(rows, &creatorName, &creatorEmail)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan announcement: %w", err)
		}
		if a.CreatedBy != nil && creatorName.Valid {
			a.Creator = &domain.UserSummary{ID: *a.CreatedBy, Name: creatorName.String, Email: creatorEmail.String}
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate announcements: %w", err)
	}
	return items, total, nil
}

func (r *PostgresAnnouncementsRepository) GetAnnouncement(ctx context.Context, announcementID int64) (*domain.Announcement, error) {
	a, err := scanAnnouncement(r.db.QueryRowContext(ctx,
		`SELECT `+announcementColumns+` FROM announcements a WHERE a.id = $1`, announcementID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("Announcement not found")
		}
		return nil, fmt.Errorf("failed to get announcement: %w", err)
	}
	return a, nil
}

func (r *PostgresAnnouncementsRepository) CreateAnnouncement(ctx context.Context, a *domain.Announcement) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO announcements (title, content, type, target, is_active, is_dismissible, starts_at, ends_at, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		a.Title, a.Content, a.Type, a.Target, a.IsActive, a.IsDismissible, a.StartsAt, a.EndsAt, nullInt64(a.CreatedBy),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create announcement: %w", err)
	}
	return nil
}

func (r *PostgresAnnouncementsRepository) UpdateAnnouncement(ctx context.Context, a *domain.Announcement) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE announcements
		 SET title = $1, content = $2, type = $3, target = $4, is_active = $5, is_dismissible = $6,
		     starts_at = $7, ends_at = $8, updated_at = NOW()
		 WHERE id = $9
		 RETURNING updated_at`,
		a.Title, a.Content, a.Type, a.Target, a.IsActive, a.IsDismissible, a.StartsAt, a.EndsAt, a.ID,
	).Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound("Announcement not found")
		}
		return fmt.Errorf("failed to update announcement: %w", err)
	}
	return nil
}

func (r *PostgresAnnouncementsRepository) DeleteAnnouncement(ctx context.Context, announcementID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = $1`, announcementID)
	if err != nil {
		return fmt.Errorf("failed to delete announcement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("Announcement not found")
	}
	return nil
}

func (r *PostgresAnnouncementsRepository) ToggleAnnouncement(ctx context.Context, announcementID int64) (*domain.Announcement, error) {
	a, err := scanAnnouncement(r.db.QueryRowContext(ctx,
		`UPDATE announcements a SET is_active = NOT a.is_active, updated_at = NOW()
		 WHERE a.id = $1
		 RETURNING `+announcementColumns, announcementID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("Announcement not found")
		}
		return nil, fmt.Errorf("failed to toggle announcement: %w", err)
	}
	return a, nil
}

func (r *PostgresAnnouncementsRepository) ListForUser(ctx context.Context, plan string, userID int64, now time.Time, limit int) ([]*domain.Announcement, error) {
	if limit <= 0 {
		limit = 5
	}
	query := `SELECT ` + announcementColumns + ` FROM announcements a
		WHERE ` + activeScope(1) + `
		  AND (a.target = $2 OR a.target = $3)
		  AND NOT EXISTS (
		      SELECT 1 FROM announcement_dismissals d
		      WHERE d.announcement_id = a.id AND d.user_id = $4)
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT $5`

	rows, err := r.db.QueryContext(ctx, query, now, domain.TargetAll, domain.PlanTarget(plan), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list announcements for user: %w", err)
	}
	defer rows.Close()

	items := []*domain.Announcement{}
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan announcement: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate announcements: %w", err)
	}
	return items, nil
}

func (r *PostgresAnnouncementsRepository) Dismiss(ctx context.Context, announcementID, userID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO announcement_dismissals (announcement_id, user_id, dismissed_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (announcement_id, user_id) DO NOTHING`,
		announcementID, userID, at)
	if err != nil {
		return fmt.Errorf("failed to dismiss announcement: %w", err)
	}
	return nil
}
