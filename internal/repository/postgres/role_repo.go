package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lumenmfb/backend/internal/domain/staff"
)

type RoleRepository struct {
	pool *pgxpool.Pool
}

func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{pool: pool}
}

const roleColumns = `
  r.user_id, u.email, r.role, r.is_active, r.failed_attempts, r.locked_until,
  r.access_code_hash, COALESCE(r.assigned_by::text, ''), r.created_at, r.updated_at`

func (r *RoleRepository) Get(ctx context.Context, userID string) (*staff.Assignment, error) {
	q := `SELECT ` + roleColumns + ` FROM user_roles r JOIN users u ON u.id = r.user_id WHERE r.user_id = $1`
	a := &staff.Assignment{}
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&a.UserID, &a.Email, &a.Role, &a.IsActive, &a.FailedAttempts, &a.LockedUntil,
		&a.AccessCodeHash, &a.AssignedBy, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, mapNotFound(err, staff.ErrNotFound)
	}
	return a, nil
}

func (r *RoleRepository) List(ctx context.Context) ([]staff.Assignment, error) {
	q := `SELECT ` + roleColumns + ` FROM user_roles r JOIN users u ON u.id = r.user_id ORDER BY r.created_at`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]staff.Assignment, 0)
	for rows.Next() {
		var a staff.Assignment
		if err := rows.Scan(
			&a.UserID, &a.Email, &a.Role, &a.IsActive, &a.FailedAttempts, &a.LockedUntil,
			&a.AccessCodeHash, &a.AssignedBy, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RoleRepository) FindUserIDByEmail(ctx context.Context, email string) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `SELECT id FROM users WHERE LOWER(email) = $1 ORDER BY created_at LIMIT 1`, strings.ToLower(email)).Scan(&id)
	if err != nil {
		return "", mapNotFound(err, staff.ErrUserNotFound)
	}
	return id, nil
}

func (r *RoleRepository) Upsert(ctx context.Context, in staff.AssignInput) (*staff.Assignment, error) {
	q := `
INSERT INTO user_roles (user_id, role, access_code_hash, assigned_by)
VALUES ($1, $2, $3, NULLIF($4, '')::uuid)
ON CONFLICT (user_id) DO UPDATE SET
  role = EXCLUDED.role,
  access_code_hash = EXCLUDED.access_code_hash,
  assigned_by = EXCLUDED.assigned_by,
  is_active = TRUE,
  failed_attempts = 0,
  locked_until = NULL,
  updated_at = NOW()
`
	if _, err := r.pool.Exec(ctx, q, in.UserID, in.Role, in.AccessCodeHash, in.AssignedBy); err != nil {
		return nil, err
	}
	return r.Get(ctx, in.UserID)
}

func (r *RoleRepository) SetActive(ctx context.Context, userID string, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE user_roles SET is_active = $2, updated_at = NOW() WHERE user_id = $1`, userID, active)
	if err != nil {
		return mapNotFound(err, staff.ErrNotFound)
	}
	if tag.RowsAffected() == 0 {
		return staff.ErrNotFound
	}
	return nil
}

func (r *RoleRepository) RecordFailure(ctx context.Context, userID string, failedAttempts int32, lockedUntil *time.Time) error {
	q := `UPDATE user_roles SET failed_attempts = $2, locked_until = $3, updated_at = NOW() WHERE user_id = $1`
	_, err := r.pool.Exec(ctx, q, userID, failedAttempts, lockedUntil)
	return err
}

func (r *RoleRepository) ResetFailures(ctx context.Context, userID string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE user_roles SET failed_attempts = 0, locked_until = NULL, updated_at = NOW() WHERE user_id = $1`, userID)
	if err != nil {
		return mapNotFound(err, staff.ErrNotFound)
	}
	if tag.RowsAffected() == 0 {
		return staff.ErrNotFound
	}
	return nil
}
