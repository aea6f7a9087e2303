package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	admindomain "github.com/lumenmfb/backend/internal/domain/admin"
)

type AdminAuditRepository struct {
	pool *pgxpool.Pool
}

func NewAdminAuditRepository(pool *pgxpool.Pool) *AdminAuditRepository {
	return &AdminAuditRepository{pool: pool}
}

func (r *AdminAuditRepository) Log(ctx context.Context, in admindomain.AuditLogInput) error {
	q := `
INSERT INTO admin_audit_logs (admin_user_id, action, target_type, target_id, payload)
VALUES (NULLIF($1, '')::uuid, $2, $3, $4, $5::jsonb)
`
	_, err := r.pool.Exec(ctx, q, in.AdminUserID, in.Action, in.TargetType, in.TargetID, in.Payload)
	return err
}

type AdminActionRepository struct {
	pool *pgxpool.Pool
}

func NewAdminActionRepository(pool *pgxpool.Pool) *AdminActionRepository {
	return &AdminActionRepository{pool: pool}
}

func (r *AdminActionRepository) List(ctx context.Context, f admindomain.ActionFilter) ([]admindomain.Action, error) {
	builder := strings.Builder{}
	builder.WriteString(`
SELECT a.id, a.application_id, a.application_kind, COALESCE(a.admin_user_id::text, ''), COALESCE(u.email, ''),
       a.role, a.action, a.previous_status, a.new_status, a.notes, a.created_at
FROM admin_actions a
LEFT JOIN users u ON u.id = a.admin_user_id
WHERE 1=1`)
	args := []any{}
	argPos := 1
	if strings.TrimSpace(f.ApplicationID) != "" {
		builder.WriteString(" AND a.application_id::text = $")
		builder.WriteString(strconv.Itoa(argPos))
		args = append(args, f.ApplicationID)
		argPos++
	}
	if strings.TrimSpace(f.AdminUserID) != "" {
		builder.WriteString(" AND a.admin_user_id::text = $")
		builder.WriteString(strconv.Itoa(argPos))
		args = append(args, f.AdminUserID)
		argPos++
	}
	builder.WriteString(" ORDER BY a.id DESC LIMIT $")
	builder.WriteString(strconv.Itoa(argPos))
	args = append(args, f.Limit)
	argPos++
	builder.WriteString(" OFFSET $")
	builder.WriteString(strconv.Itoa(argPos))
	args = append(args, f.Offset)

	rows, err := r.pool.Query(ctx, builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]admindomain.Action, 0)
	for rows.Next() {
		var a admindomain.Action
		if err := rows.Scan(
			&a.ID, &a.ApplicationID, &a.ApplicationKind, &a.AdminUserID, &a.AdminEmail,
			&a.Role, &a.Action, &a.PreviousStatus, &a.NewStatus, &a.Notes, &a.CreatedAt,
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

type SettingsRepository struct {
	pool *pgxpool.Pool
}

func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

func (r *SettingsRepository) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM admin_settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (r *SettingsRepository) Set(ctx context.Context, key, value, updatedBy string) error {
	q := `
INSERT INTO admin_settings (key, value, updated_by, updated_at)
VALUES ($1, $2, NULLIF($3, '')::uuid, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = NOW()
`
	_, err := r.pool.Exec(ctx, q, key, value, updatedBy)
	return err
}
