package application

import (
	"context"
	"errors"
	"time"

	"github.com/lumenmfb/backend/internal/domain/staff"
)

var (
	ErrNotFound      = errors.New("application_not_found")
	ErrStaleState    = errors.New("stale_application_state")
	ErrNotEligible   = errors.New("not_eligible")
	ErrNotesRequired = errors.New("notes_required")
	ErrForbidden     = errors.New("forbidden")
	ErrDraftsUnsaved = errors.New("drafts_not_supported")

	// ErrInvalidCustomer rejects an on-behalf submission whose customer_id is
	// the officer or another staff member.
	ErrInvalidCustomer = errors.New("invalid_customer")
)

type Approval struct {
	Approved bool       `json:"approved"`
	By       *string    `json:"by,omitempty"`
	At       *time.Time `json:"at,omitempty"`
}

type Applicant struct {
	FullName           string `json:"full_name"`
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	DateOfBirth        string `json:"date_of_birth"`
	Address            string `json:"address"`
	State              string `json:"state"`
	LGA                string `json:"lga"`
	Occupation         string `json:"occupation"`
	Employer           string `json:"employer"`
	MonthlyIncomeMinor int64  `json:"monthly_income_minor"`
	BVN                string `json:"bvn"`
	NIN                string `json:"nin"`
}

type Documents struct {
	PassportPhotoPath string `json:"passport_photo_path"`
	IDDocumentPath    string `json:"id_document_path"`
	UtilityBillPath   string `json:"utility_bill_path"`
	BankStatementPath string `json:"bank_statement_path"`
}

type Disbursement struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

type Guarantor struct {
	FullName           string `json:"full_name"`
	Phone              string `json:"phone"`
	Email              string `json:"email"`
	Address            string `json:"address"`
	Relationship       string `json:"relationship"`
	Occupation         string `json:"occupation"`
	MonthlyIncomeMinor int64  `json:"monthly_income_minor"`
	BVN                string `json:"bvn"`
	NIN                string `json:"nin"`
	SignaturePath      string `json:"signature_path"`
}

type Entity struct {
	ID                   string       `json:"id"`
	UserID               string       `json:"user_id"`
	CreatedBy            string       `json:"created_by"`
	Applicant            Applicant    `json:"applicant"`
	Documents            Documents    `json:"documents"`
	ProductCode          string       `json:"product_code"`
	AmountRequestedMinor int64        `json:"amount_requested_minor"`
	RepaymentMonths      int32        `json:"repayment_months"`
	Disbursement         Disbursement `json:"disbursement"`
	CreditApproval       Approval     `json:"credit_approval"`
	AuditApproval        Approval     `json:"audit_approval"`
	COOApproval          Approval     `json:"coo_approval"`
	Status               Status       `json:"status"`
	DecisionNotes        string       `json:"decision_notes,omitempty"`
	IsDraft              bool         `json:"is_draft"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
	Guarantor            *Guarantor   `json:"guarantor,omitempty"`
}

func (e *Entity) State() State {
	return State{
		Status:         e.Status,
		CreditApproved: e.CreditApproval.Approved,
		AuditApproved:  e.AuditApproval.Approved,
		COOApproved:    e.COOApproval.Approved,
	}
}

type CreateInput struct {
	UserID               string
	CreatedBy            string
	Applicant            Applicant
	Documents            Documents
	ProductCode          string
	AmountRequestedMinor int64
	RepaymentMonths      int32
	Disbursement         Disbursement
	Guarantor            Guarantor
}

type ListFilter struct {
	UserID string
	Status string
	Stage  staff.Role
	Query  string
	Limit  int32
	Offset int32
}

// TransitionInput carries one approval-chain decision to the repository.
// From is the state the decision was computed against; the write must fail
// with ErrStaleState if the stored row no longer matches it.
type TransitionInput struct {
	ApplicationID string
	Actor         staff.Actor
	Action        Action
	From          State
	To            State
	Notes         string
	At            time.Time
	EventPayload  []byte
}

type Stats struct {
	Total               int64            `json:"total"`
	ByStatus            map[Status]int64 `json:"by_status"`
	AwaitingCredit      int64            `json:"awaiting_credit"`
	AwaitingAudit       int64            `json:"awaiting_audit"`
	AwaitingCOO         int64            `json:"awaiting_coo"`
	TotalRequestedMinor int64            `json:"total_requested_minor"`
	ApprovedAmountMinor int64            `json:"approved_amount_minor"`
	ApprovalRatePercent float64          `json:"approval_rate_percent"`
}

type Repository interface {
	Create(ctx context.Context, in CreateInput, eventPayload []byte) (*Entity, error)
	GetByID(ctx context.Context, id string) (*Entity, error)
	LatestForUser(ctx context.Context, userID string) (*Entity, error)
	List(ctx context.Context, f ListFilter) ([]Entity, error)
	ApplyTransition(ctx context.Context, in TransitionInput) (*Entity, error)
	Stats(ctx context.Context) (*Stats, error)
	// IsCustomer reports whether userID is a known user without a staff role.
	IsCustomer(ctx context.Context, userID string) (bool, error)
}
