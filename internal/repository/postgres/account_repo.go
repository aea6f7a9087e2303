package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lumenmfb/backend/internal/domain/account"
)

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const accountColumns = `
  id, user_id, full_name, email, phone, date_of_birth, address, account_type, bvn, nin,
  passport_photo_path, signature_path, id_document_path,
  status, reviewed_by::text, review_notes, reviewed_at, created_at, updated_at`

func scanAccount(row pgx.Row) (*account.Entity, error) {
	e := &account.Entity{}
	err := row.Scan(
		&e.ID, &e.UserID, &e.FullName, &e.Email, &e.Phone, &e.DateOfBirth, &e.Address, &e.AccountType, &e.BVN, &e.NIN,
		&e.PassportPhotoPath, &e.SignaturePath, &e.IDDocumentPath,
		&e.Status, &e.ReviewedBy, &e.ReviewNotes, &e.ReviewedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *AccountRepository) Create(ctx context.Context, in account.CreateInput) (*account.Entity, error) {
	q := `
INSERT INTO account_applications (
  user_id, full_name, email, phone, date_of_birth, address, account_type, bvn, nin,
  passport_photo_path, signature_path, id_document_path
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING ` + accountColumns
	e, err := scanAccount(r.pool.QueryRow(ctx, q,
		in.UserID, in.FullName, in.Email, in.Phone, in.DateOfBirth, in.Address, in.AccountType, in.BVN, in.NIN,
		in.PassportPhotoPath, in.SignaturePath, in.IDDocumentPath,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, account.ErrAlreadyExists
		}
		return nil, err
	}
	return e, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*account.Entity, error) {
	e, err := scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM account_applications WHERE id = $1`, id))
	if err != nil {
		return nil, mapNotFound(err, account.ErrNotFound)
	}
	return e, nil
}

func (r *AccountRepository) GetByUser(ctx context.Context, userID string) (*account.Entity, error) {
	e, err := scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM account_applications WHERE user_id = $1`, userID))
	if err != nil {
		return nil, mapNotFound(err, account.ErrNotFound)
	}
	return e, nil
}

func (r *AccountRepository) List(ctx context.Context, f account.ListFilter) ([]account.Entity, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + accountColumns + ` FROM account_applications WHERE 1=1`)
	args := []any{}
	argPos := 1
	if strings.TrimSpace(f.Status) != "" {
		builder.WriteString(" AND status = $")
		builder.WriteString(strconv.Itoa(argPos))
		args = append(args, f.Status)
		argPos++
	}
	builder.WriteString(" ORDER BY created_at DESC LIMIT $")
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

	out := make([]account.Entity, 0)
	for rows.Next() {
		e, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Review applies an operations decision, its audit row and its outbox event
// together. Only a still-pending row is updated.
func (r *AccountRepository) Review(ctx context.Context, in account.ReviewInput) (*account.Entity, error) {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var applicantID string
		q := `
UPDATE account_applications
SET status = $2, reviewed_by = $3::uuid, review_notes = $4, reviewed_at = $5, updated_at = $5
WHERE id = $1 AND status = 'pending'
RETURNING user_id
`
		if err := tx.QueryRow(ctx, q, in.ApplicationID, in.Decision, in.Actor.UserID, in.Notes, in.At).Scan(&applicantID); err != nil {
			return mapNotFound(err, account.ErrAlreadyReviewed)
		}
		aq := `
INSERT INTO admin_actions (
  application_id, application_kind, user_id, admin_user_id, role, action,
  previous_status, new_status, notes, created_at
) VALUES ($1, 'account', $2, $3, $4, 'review', 'pending', $5, $6, $7)
`
		if _, err := tx.Exec(ctx, aq, in.ApplicationID, applicantID, in.Actor.UserID, in.Actor.Role, in.Decision, in.Notes, in.At); err != nil {
			return err
		}
		return enqueueOutbox(ctx, tx, account.TopicReviewed, in.EventPayload)
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, in.ApplicationID)
}
