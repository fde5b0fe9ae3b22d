package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"kosmo-admin/internal/domain"
)

// PostgresInvitationsRepository 邀请码Repository实现
type PostgresInvitationsRepository struct {
	db *sql.DB
}

func NewPostgresInvitationsRepository(db *sql.DB) *PostgresInvitationsRepository {
	return &PostgresInvitationsRepository{db: db}
}

var _ InvitationsRepository = (*PostgresInvitationsRepository)(nil)

const invitationColumns = `i.id, i.code, i.email, i.is_used, i.expires_at, i.created_by, i.used_by, i.tenant_id, i.used_at, i.created_at, i.updated_at`

// 列表附带创建人、使用人和租户名
const invitationJoinColumns = `,
	c.name, c.email, ub.name, ub.email, t.name`

const invitationJoins = `
	LEFT JOIN users c ON c.id = i.created_by
	LEFT JOIN users ub ON ub.id = i.used_by
	LEFT JOIN tenants t ON t.id = i.tenant_id`

func scanInvitation(row rowScanner, withJoins bool) (*domain.Invitation, error) {
	var (
		inv                               domain.Invitation
		email                             sql.NullString
		expiresAt, usedAt                 sql.NullTime
		createdBy, usedBy, tenantID       sql.NullInt64
		creatorName, creatorEmail         sql.NullString
		usedByName, usedByEmail, tenantNm sql.NullString
	)
	dest := []any{&inv.ID, &inv.Code, &email, &inv.IsUsed, &expiresAt, &createdBy, &usedBy,
		&tenantID, &usedAt, &inv.CreatedAt, &inv.UpdatedAt}
	if withJoins {
		dest = append(dest, &creatorName, &creatorEmail, &usedByName, &usedByEmail, &tenantNm)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	inv.Email = stringPtr(email)
	inv.ExpiresAt = timePtr(expiresAt)
	inv.UsedAt = timePtr(usedAt)
	inv.CreatedBy = int64Ptr(createdBy)
	inv.UsedBy = int64Ptr(usedBy)
	inv.TenantID = int64Ptr(tenantID)
	if withJoins {
		if inv.CreatedBy != nil && creatorName.Valid {
			inv.Creator = &domain.UserSummary{ID: *inv.CreatedBy, Name: creatorName.String, Email: creatorEmail.String}
		}
		if inv.UsedBy != nil && usedByName.Valid {
			inv.UsedByUser = &domain.UserSummary{ID: *inv.UsedBy, Name: usedByName.String, Email: usedByEmail.String}
		}
		inv.TenantName = stringPtr(tenantNm)
	}
	return &inv, nil
}

func (f InvitationFilters) where() (string, []any, int) {
	switch f.Status {
	case domain.InvitationStatusUsed:
		return "WHERE i.is_used = TRUE", nil, 1
	case domain.InvitationStatusUnused:
		return "WHERE i.is_used = FALSE", nil, 1
	case domain.InvitationStatusExpired:
		now := f.Now
		if now.IsZero() {
			now = time.Now()
		}
		return "WHERE i.is_used = FALSE AND i.expires_at IS NOT NULL AND i.expires_at < $1", []any{now}, 2
	default:
		return "", nil, 1
	}
}

func (r *PostgresInvitationsRepository) ListInvitations(ctx context.Context, filter InvitationFilters, page Page) ([]*domain.Invitation, int, error) {
	page = page.normalize(DefaultPageSize)
	whereClause, args, argIdx := filter.where()

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invitations i `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count invitations: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s%s FROM invitations i %s %s ORDER BY i.created_at DESC, i.id DESC LIMIT $%d OFFSET $%d`,
		invitationColumns, invitationJoinColumns, invitationJoins, whereClause, argIdx, argIdx+1)
	args = append(args, page.Size, page.offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	items := []*domain.Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows, true)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan invitation: %w", err)
		}
		items = append(items, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate invitations: %w", err)
	}
	return items, total, nil
}

func (r *PostgresInvitationsRepository) GetInvitation(ctx context.Context, invitationID int64) (*domain.Invitation, error) {
	inv, err := scanInvitation(r.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+invitationJoinColumns+` FROM invitations i `+invitationJoins+` WHERE i.id = $1`, invitationID), true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("Invitation not found")
		}
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

func (r *PostgresInvitationsRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM invitations WHERE UPPER(code) = UPPER($1))`, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check invitation code: %w", err)
	}
	return exists, nil
}

func (r *PostgresInvitationsRepository) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	inv.Code = strings.ToUpper(inv.Code)
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO invitations (code, email, is_used, expires_at, created_by)
		 VALUES ($1, $2, FALSE, $3, $4)
		 RETURNING id, created_at, updated_at`,
		inv.Code, nullString(inv.Email), inv.ExpiresAt, nullInt64(inv.CreatedBy),
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return domain.Conflict("Invitation code %s already exists", inv.Code)
		}
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

func (r *PostgresInvitationsRepository) DeleteUnusedInvitation(ctx context.Context, invitationID int64) error {
	var isUsed bool
	err := r.db.QueryRowContext(ctx,
		`WITH target AS (SELECT id, is_used FROM invitations WHERE id = $1),
		      deleted AS (DELETE FROM invitations WHERE id = $1 AND is_used = FALSE RETURNING id)
		 SELECT target.is_used FROM target`, invitationID).Scan(&isUsed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound("Invitation not found")
		}
		return fmt.Errorf("failed to delete invitation: %w", err)
	}
	if isUsed {
		return domain.Conflict("Cannot delete an already used invite code")
	}
	return nil
}

func (r *PostgresInvitationsRepository) RedeemInvitation(ctx context.Context, code string, userID, tenantID int64, email string, now time.Time) (*domain.Invitation, error) {
	inv, err := scanInvitation(r.db.QueryRowContext(ctx,
		`UPDATE invitations i
		 SET is_used = TRUE, used_by = $2, tenant_id = $3, used_at = $4, updated_at = NOW()
		 WHERE UPPER(i.code) = UPPER($1)
		   AND i.is_used = FALSE
		   AND (i.expires_at IS NULL OR i.expires_at > $4)
		   AND (i.email IS NULL OR LOWER(i.email) = LOWER($5))
		 RETURNING `+invitationColumns,
		strings.TrimSpace(code), userID, tenantID, now, strings.TrimSpace(email)), false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Conflict("Invite code is invalid or no longer available")
		}
		return nil, fmt.Errorf("failed to redeem invitation: %w", err)
	}
	return inv, nil
}
