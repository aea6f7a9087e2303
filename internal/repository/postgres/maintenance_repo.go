package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MaintenanceRepository struct {
	pool *pgxpool.Pool
}

func NewMaintenanceRepository(pool *pgxpool.Pool) *MaintenanceRepository {
	return &MaintenanceRepository{pool: pool}
}

// CleanupCandidates returns customers whose every application is declined,
// whose latest decline happened before cutoff and whose uploads are still
// present. Staff members and anyone with an open or approved application
// are never returned.
func (r *MaintenanceRepository) CleanupCandidates(ctx context.Context, cutoff time.Time) ([]string, error) {
	q := `
WITH apps AS (
  SELECT user_id, status, updated_at, uploads_removed_at FROM loan_applications
  UNION ALL
  SELECT user_id, status, updated_at, uploads_removed_at FROM account_applications
)
SELECT apps.user_id::text
FROM apps
WHERE NOT EXISTS (SELECT 1 FROM user_roles ur WHERE ur.user_id = apps.user_id)
GROUP BY apps.user_id
HAVING BOOL_AND(apps.status = 'declined')
   AND MAX(apps.updated_at) < $1
   AND BOOL_OR(apps.uploads_removed_at IS NULL)
ORDER BY apps.user_id
`
	rows, err := r.pool.Query(ctx, q, cutoff)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *MaintenanceRepository) MarkUploadsRemoved(ctx context.Context, userID string, at time.Time) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE loan_applications SET uploads_removed_at = $2 WHERE user_id = $1 AND uploads_removed_at IS NULL`, userID, at); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE account_applications SET uploads_removed_at = $2 WHERE user_id = $1 AND uploads_removed_at IS NULL`, userID, at)
		return err
	})
}

func (r *MaintenanceRepository) NonStaffUserIDs(ctx context.Context) ([]string, error) {
	q := `
SELECT u.id::text FROM users u
WHERE NOT EXISTS (SELECT 1 FROM user_roles ur WHERE ur.user_id = u.id)
ORDER BY u.created_at
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// DeleteUsers removes the users and, through ON DELETE CASCADE, their
// applications, guarantors, sessions and audit rows. Users who gained a
// staff role since they were listed are skipped.
func (r *MaintenanceRepository) DeleteUsers(ctx context.Context, userIDs []string) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	q := `
DELETE FROM users u
WHERE u.id::text = ANY($1)
  AND NOT EXISTS (SELECT 1 FROM user_roles ur WHERE ur.user_id = u.id)
`
	tag, err := r.pool.Exec(ctx, q, userIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
