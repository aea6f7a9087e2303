package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lumenmfb/backend/internal/ws"
)

type WSRepository struct {
	pool *pgxpool.Pool
}

func NewWSRepository(pool *pgxpool.Pool) *WSRepository {
	return &WSRepository{pool: pool}
}

func (r *WSRepository) ListStatusEventsSince(ctx context.Context, lastID int64, limit int32) ([]ws.StatusEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `
SELECT id, application_id, application_kind, COALESCE(user_id::text, ''), action,
       previous_status, new_status, created_at
FROM admin_actions
WHERE id > $1
ORDER BY id ASC
LIMIT $2
`
	rows, err := r.pool.Query(ctx, q, lastID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ws.StatusEvent, 0)
	for rows.Next() {
		var ev ws.StatusEvent
		if err := rows.Scan(&ev.ID, &ev.ApplicationID, &ev.ApplicationKind, &ev.UserID, &ev.Action,
			&ev.PreviousStatus, &ev.NewStatus, &ev.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LatestEventID lets a fresh notifier start from now instead of replaying
// the whole audit trail.
func (r *WSRepository) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM admin_actions`).Scan(&id)
	return id, err
}
