package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lumenmfb/backend/internal/domain/application"
	"github.com/lumenmfb/backend/internal/domain/staff"
)

type ApplicationRepository struct {
	pool *pgxpool.Pool
}

func NewApplicationRepository(pool *pgxpool.Pool) *ApplicationRepository {
	return &ApplicationRepository{pool: pool}
}

const applicationColumns = `
  a.id, a.user_id, COALESCE(a.created_by::text, ''),
  a.full_name, a.email, a.phone, a.date_of_birth, a.address, a.state, a.lga,
  a.occupation, a.employer, a.monthly_income_minor, a.bvn, a.nin,
  a.passport_photo_path, a.id_document_path, a.utility_bill_path, a.bank_statement_path,
  a.product_code, a.amount_requested_minor, a.repayment_months,
  a.bank_name, a.account_number, a.account_name,
  a.credit_approved, a.credit_approved_by::text, a.credit_approved_at,
  a.audit_approved, a.audit_approved_by::text, a.audit_approved_at,
  a.coo_approved, a.coo_approved_by::text, a.coo_approved_at,
  a.status, a.decision_notes, a.is_draft, a.created_at, a.updated_at`

func scanApplication(row pgx.Row) (*application.Entity, error) {
	e := &application.Entity{}
	err := row.Scan(
		&e.ID, &e.UserID, &e.CreatedBy,
		&e.Applicant.FullName, &e.Applicant.Email, &e.Applicant.Phone, &e.Applicant.DateOfBirth,
		&e.Applicant.Address, &e.Applicant.State, &e.Applicant.LGA,
		&e.Applicant.Occupation, &e.Applicant.Employer, &e.Applicant.MonthlyIncomeMinor,
		&e.Applicant.BVN, &e.Applicant.NIN,
		&e.Documents.PassportPhotoPath, &e.Documents.IDDocumentPath, &e.Documents.UtilityBillPath, &e.Documents.BankStatementPath,
		&e.ProductCode, &e.AmountRequestedMinor, &e.RepaymentMonths,
		&e.Disbursement.BankName, &e.Disbursement.AccountNumber, &e.Disbursement.AccountName,
		&e.CreditApproval.Approved, &e.CreditApproval.By, &e.CreditApproval.At,
		&e.AuditApproval.Approved, &e.AuditApproval.By, &e.AuditApproval.At,
		&e.COOApproval.Approved, &e.COOApproval.By, &e.COOApproval.At,
		&e.Status, &e.DecisionNotes, &e.IsDraft, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// oneOpenPerUser is the partial unique index over pending, under_review and
// flagged applications.
const oneOpenPerUser = "loan_applications_one_open_per_user"

func (r *ApplicationRepository) Create(ctx context.Context, in application.CreateInput, eventPayload []byte) (*application.Entity, error) {
	var id string
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		a := in.Applicant
		q := `
INSERT INTO loan_applications (
  user_id, created_by, full_name, email, phone, date_of_birth, address, state, lga,
  occupation, employer, monthly_income_minor, bvn, nin,
  passport_photo_path, id_document_path, utility_bill_path, bank_statement_path,
  product_code, amount_requested_minor, repayment_months,
  bank_name, account_number, account_name
) VALUES ($1,NULLIF($2,'')::uuid,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
RETURNING id
`
		if err := tx.QueryRow(ctx, q,
			in.UserID, in.CreatedBy, a.FullName, a.Email, a.Phone, a.DateOfBirth, a.Address, a.State, a.LGA,
			a.Occupation, a.Employer, a.MonthlyIncomeMinor, a.BVN, a.NIN,
			in.Documents.PassportPhotoPath, in.Documents.IDDocumentPath, in.Documents.UtilityBillPath, in.Documents.BankStatementPath,
			in.ProductCode, in.AmountRequestedMinor, in.RepaymentMonths,
			in.Disbursement.BankName, in.Disbursement.AccountNumber, in.Disbursement.AccountName,
		).Scan(&id); err != nil {
			return err
		}

		g := in.Guarantor
		gq := `
INSERT INTO guarantors (
  application_id, full_name, phone, email, address, relationship, occupation,
  monthly_income_minor, bvn, nin, signature_path
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`
		if _, err := tx.Exec(ctx, gq,
			id, g.FullName, g.Phone, g.Email, g.Address, g.Relationship, g.Occupation,
			g.MonthlyIncomeMinor, g.BVN, g.NIN, g.SignaturePath,
		); err != nil {
			return err
		}
		return enqueueOutbox(ctx, tx, application.TopicSubmitted, withApplicationID(eventPayload, id))
	})
	if violatesConstraint(err, oneOpenPerUser) {
		// Lost a race with a concurrent submission for the same applicant.
		return nil, &application.NotEligibleError{Eligibility: application.Eligibility{Reason: application.ReasonInProgress}}
	}
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// IsCustomer is false for unknown ids, malformed ids and staff members.
func (r *ApplicationRepository) IsCustomer(ctx context.Context, userID string) (bool, error) {
	q := `
SELECT EXISTS (
  SELECT 1 FROM users u
  WHERE u.id = $1
    AND NOT EXISTS (SELECT 1 FROM user_roles ur WHERE ur.user_id = u.id)
)
`
	var ok bool
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&ok); err != nil {
		if isInvalidInput(err) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*application.Entity, error) {
	q := `SELECT ` + applicationColumns + ` FROM loan_applications a WHERE a.id = $1`
	e, err := scanApplication(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, mapNotFound(err, application.ErrNotFound)
	}

	g := &application.Guarantor{}
	gq := `
SELECT full_name, phone, email, address, relationship, occupation,
       monthly_income_minor, bvn, nin, signature_path
FROM guarantors WHERE application_id = $1
`
	err = r.pool.QueryRow(ctx, gq, id).Scan(
		&g.FullName, &g.Phone, &g.Email, &g.Address, &g.Relationship, &g.Occupation,
		&g.MonthlyIncomeMinor, &g.BVN, &g.NIN, &g.SignaturePath,
	)
	switch {
	case err == nil:
		e.Guarantor = g
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, err
	}
	return e, nil
}

func (r *ApplicationRepository) LatestForUser(ctx context.Context, userID string) (*application.Entity, error) {
	q := `SELECT ` + applicationColumns + ` FROM loan_applications a WHERE a.user_id = $1 ORDER BY a.created_at DESC LIMIT 1`
	e, err := scanApplication(r.pool.QueryRow(ctx, q, userID))
	if err != nil {
		return nil, mapNotFound(err, application.ErrNotFound)
	}
	return e, nil
}

func (r *ApplicationRepository) List(ctx context.Context, f application.ListFilter) ([]application.Entity, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + applicationColumns + ` FROM loan_applications a WHERE 1=1`)

	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if strings.TrimSpace(f.UserID) != "" {
		builder.WriteString(" AND a.user_id = " + arg(f.UserID))
	}
	if strings.TrimSpace(f.Status) != "" {
		builder.WriteString(" AND a.status = " + arg(f.Status))
	}
	switch f.Stage {
	case staff.RoleCredit:
		builder.WriteString(" AND NOT a.credit_approved AND a.status NOT IN ('approved','declined')")
	case staff.RoleAudit:
		builder.WriteString(" AND a.credit_approved AND NOT a.audit_approved AND a.status NOT IN ('approved','declined')")
	case staff.RoleCOO:
		builder.WriteString(" AND a.audit_approved AND NOT a.coo_approved AND a.status NOT IN ('approved','declined')")
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		p := arg("%" + q + "%")
		builder.WriteString(" AND (a.full_name ILIKE " + p + " OR a.email ILIKE " + p + " OR a.phone ILIKE " + p + " OR a.bvn ILIKE " + p + ")")
	}
	builder.WriteString(" ORDER BY a.created_at DESC")
	builder.WriteString(" LIMIT " + arg(f.Limit))
	builder.WriteString(" OFFSET " + arg(f.Offset))

	rows, err := r.pool.Query(ctx, builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]application.Entity, 0)
	for rows.Next() {
		e, err := scanApplication(rows)
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

var approvalColumn = map[staff.Role]string{
	staff.RoleCredit: "credit",
	staff.RoleAudit:  "audit",
	staff.RoleCOO:    "coo",
}

// ApplyTransition writes the decision, its audit row and its outbox event in
// one transaction. The UPDATE only matches while the stored state equals
// in.From, so a concurrent decision on the same stage loses with
// ErrStaleState instead of being applied twice.
func (r *ApplicationRepository) ApplyTransition(ctx context.Context, in application.TransitionInput) (*application.Entity, error) {
	col, ok := approvalColumn[in.Actor.Role]
	if !ok {
		return nil, application.ErrNotYourStage
	}

	args := []any{in.ApplicationID, in.From.Status, in.From.CreditApproved, in.From.AuditApproved, in.From.COOApproved, in.To.Status, in.At}
	set := "status = $6, updated_at = $7"
	if in.Notes != "" {
		args = append(args, in.Notes)
		set += ", decision_notes = $" + strconv.Itoa(len(args))
	}
	if in.Action == application.ActionApprove {
		args = append(args, in.Actor.UserID)
		set += fmt.Sprintf(", %[1]s_approved = TRUE, %[1]s_approved_by = $%[2]d::uuid, %[1]s_approved_at = $7", col, len(args))
	}
	q := `
UPDATE loan_applications SET ` + set + `
WHERE id = $1
  AND status = $2
  AND credit_approved = $3
  AND audit_approved = $4
  AND coo_approved = $5
RETURNING user_id
`
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var applicantID string
		err := tx.QueryRow(ctx, q, args...).Scan(&applicantID)
		if err != nil {
			return mapNotFound(err, application.ErrStaleState)
		}

		aq := `
INSERT INTO admin_actions (
  application_id, application_kind, user_id, admin_user_id, role, action,
  previous_status, new_status, notes, created_at
) VALUES ($1, 'loan', $2, $3, $4, $5, $6, $7, $8, $9)
`
		if _, err := tx.Exec(ctx, aq,
			in.ApplicationID, applicantID, in.Actor.UserID, in.Actor.Role, in.Action,
			in.From.Status, in.To.Status, in.Notes, in.At,
		); err != nil {
			return err
		}
		return enqueueOutbox(ctx, tx, application.TopicStatusChanged, in.EventPayload)
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, in.ApplicationID)
}

func (r *ApplicationRepository) Stats(ctx context.Context) (*application.Stats, error) {
	q := `
SELECT
  COUNT(*)::bigint,
  COUNT(*) FILTER (WHERE status = 'pending')::bigint,
  COUNT(*) FILTER (WHERE status = 'under_review')::bigint,
  COUNT(*) FILTER (WHERE status = 'approved')::bigint,
  COUNT(*) FILTER (WHERE status = 'declined')::bigint,
  COUNT(*) FILTER (WHERE status = 'flagged')::bigint,
  COUNT(*) FILTER (WHERE NOT credit_approved AND status NOT IN ('approved','declined'))::bigint,
  COUNT(*) FILTER (WHERE credit_approved AND NOT audit_approved AND status NOT IN ('approved','declined'))::bigint,
  COUNT(*) FILTER (WHERE audit_approved AND NOT coo_approved AND status NOT IN ('approved','declined'))::bigint,
  COALESCE(SUM(amount_requested_minor), 0)::bigint,
  COALESCE(SUM(amount_requested_minor) FILTER (WHERE status = 'approved'), 0)::bigint
FROM loan_applications
`
	out := &application.Stats{}
	var pending, review, approved, declined, flagged int64
	err := r.pool.QueryRow(ctx, q).Scan(
		&out.Total, &pending, &review, &approved, &declined, &flagged,
		&out.AwaitingCredit, &out.AwaitingAudit, &out.AwaitingCOO,
		&out.TotalRequestedMinor, &out.ApprovedAmountMinor,
	)
	if err != nil {
		return nil, err
	}
	out.ByStatus = map[application.Status]int64{
		application.StatusPending:     pending,
		application.StatusUnderReview: review,
		application.StatusApproved:    approved,
		application.StatusDeclined:    declined,
		application.StatusFlagged:     flagged,
	}
	if decided := approved + declined; decided > 0 {
		out.ApprovalRatePercent = float64(approved) * 100 / float64(decided)
	}
	return out, nil
}
