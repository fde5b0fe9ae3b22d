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

// PostgresUsersRepository 用户Repository实现
type PostgresUsersRepository struct {
	db *sql.DB
}

func NewPostgresUsersRepository(db *sql.DB) *PostgresUsersRepository {
	return &PostgresUsersRepository{db: db}
}

var _ UsersRepository = (*PostgresUsersRepository)(nil)

const userColumns = `id, tenant_id, name, email, password_hash, role, is_super_admin, email_verified_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u        domain.User
		tenantID sql.NullInt64
		verified sql.NullTime
	)
	if err := row.Scan(&u.ID, &tenantID, &u.Name, &u.Email, &u.PasswordHash, &u.Role,
		&u.IsSuperAdmin, &verified, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.TenantID = int64Ptr(tenantID)
	u.EmailVerifiedAt = timePtr(verified)
	return &u, nil
}

func (r *PostgresUsersRepository) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	if userID <= 0 {
		return nil, domain.NotFound("User not found")
	}
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("User not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (r *PostgresUsersRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("User not found")
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

func (r *PostgresUsersRepository) EmailExists(ctx context.Context, email string, excludeUserID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1) AND id <> $2)`,
		strings.TrimSpace(email), excludeUserID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user email: %w", err)
	}
	return exists, nil
}

func (r *PostgresUsersRepository) ListTenantStaff(ctx context.Context, tenantID int64) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND role <> $2 ORDER BY id`,
		tenantID, domain.RoleCustomer)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant users: %w", err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

func (r *PostgresUsersRepository) TenantAdminEmail(ctx context.Context, tenantID int64) (string, error) {
	var email string
	err := r.db.QueryRowContext(ctx,
		`SELECT email FROM users WHERE tenant_id = $1 AND role = $2 ORDER BY id LIMIT 1`,
		tenantID, domain.RoleAdmin).Scan(&email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get tenant admin email: %w", err)
	}
	return email, nil
}

func (r *PostgresUsersRepository) UpdateUser(ctx context.Context, user *domain.User, passwordHash *string) error {
	query := `UPDATE users SET name = $1, email = $2, updated_at = NOW()`
	args := []any{user.Name, user.Email}
	if passwordHash != nil {
		query += `, password_hash = $3 WHERE id = $4`
		args = append(args, *passwordHash, user.ID)
	} else {
		query += ` WHERE id = $3`
		args = append(args, user.ID)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return domain.FieldError("email", "The email has already been taken.")
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("User not found")
	}
	return nil
}

func (r *PostgresUsersRepository) MarkEmailVerified(ctx context.Context, userID int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET email_verified_at = $1, updated_at = NOW() WHERE id = $2`, at, userID)
	if err != nil {
		return fmt.Errorf("failed to verify user email: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("User not found")
	}
	return nil
}
