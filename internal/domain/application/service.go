package application

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/lumenmfb/backend/internal/domain/document"
	"github.com/lumenmfb/backend/internal/domain/kyc"
	"github.com/lumenmfb/backend/internal/domain/staff"
	"github.com/lumenmfb/backend/internal/observability"
)

const (
	TopicSubmitted     = "loan_application.submitted"
	TopicStatusChanged = "loan_application.status_changed"

	exportPageSize = 500
)

type SubmitInput struct {
	CustomerID           string       `json:"customer_id"`
	Applicant            Applicant    `json:"applicant"`
	Documents            Documents    `json:"documents"`
	ProductCode          string       `json:"product_code"`
	AmountRequestedMinor int64        `json:"amount_requested_minor"`
	RepaymentMonths      int32        `json:"repayment_months"`
	Disbursement         Disbursement `json:"disbursement"`
	Guarantor            Guarantor    `json:"guarantor"`
	IsDraft              bool         `json:"is_draft"`
}

// NotEligibleError carries the eligibility verdict that blocked a submission.
type NotEligibleError struct {
	Eligibility Eligibility
}

func (e *NotEligibleError) Error() string { return "not_eligible: " + e.Eligibility.Reason }

func (e *NotEligibleError) Unwrap() error { return ErrNotEligible }

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Submit records a new loan application. Customers apply for themselves;
// credit officers may apply on a customer's behalf by naming customer_id.
func (s *Service) Submit(ctx context.Context, actor staff.Actor, in SubmitInput) (*Entity, error) {
	if in.IsDraft {
		return nil, ErrDraftsUnsaved
	}

	owner := actor.UserID
	switch actor.Role {
	case staff.RoleCustomer:
	case staff.RoleCredit:
		owner = strings.TrimSpace(in.CustomerID)
		if owner == "" {
			return nil, &kyc.FieldError{Field: "customer_id", Message: "required"}
		}
		if owner == actor.UserID {
			return nil, ErrInvalidCustomer
		}
		ok, err := s.repo.IsCustomer(ctx, owner)
		if err != nil {
			return nil, fmt.Errorf("customer lookup: %w", err)
		}
		if !ok {
			return nil, ErrInvalidCustomer
		}
	default:
		return nil, ErrForbidden
	}

	if fe := validateSubmission(in, owner); fe != nil {
		return nil, fe
	}

	latest, err := s.repo.LatestForUser(ctx, owner)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("eligibility lookup: %w", err)
	}
	if verdict := CheckEligibility(latest, s.now()); !verdict.Eligible {
		return nil, &NotEligibleError{Eligibility: verdict}
	}

	payload, _ := json.Marshal(map[string]any{
		"event":        TopicSubmitted,
		"user_id":      owner,
		"created_by":   actor.UserID,
		"product_code": in.ProductCode,
		"amount_minor": in.AmountRequestedMinor,
		"at":           s.now().Format(time.RFC3339),
	})
	return s.repo.Create(ctx, CreateInput{
		UserID:               owner,
		CreatedBy:            actor.UserID,
		Applicant:            normalizeApplicant(in.Applicant),
		Documents:            in.Documents,
		ProductCode:          in.ProductCode,
		AmountRequestedMinor: in.AmountRequestedMinor,
		RepaymentMonths:      in.RepaymentMonths,
		Disbursement:         in.Disbursement,
		Guarantor:            in.Guarantor,
	}, payload)
}

// Eligibility answers the dashboard's "can I apply?" question. A failed
// lookup answers yes; Submit repeats the check and refuses on failure.
func (s *Service) Eligibility(ctx context.Context, userID string) (Eligibility, error) {
	latest, err := s.repo.LatestForUser(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Eligibility{Eligible: true, CheckFailed: true}, err
	}
	return CheckEligibility(latest, s.now()), nil
}

func (s *Service) ListMine(ctx context.Context, userID string, limit, offset int32) ([]Entity, error) {
	return s.repo.List(ctx, ListFilter{UserID: userID, Limit: limit, Offset: offset})
}

// GetForActor hides other customers' applications behind ErrNotFound.
func (s *Service) GetForActor(ctx context.Context, actor staff.Actor, id string) (*Entity, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && e.UserID != actor.UserID {
		return nil, ErrNotFound
	}
	return e, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Entity, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}

// Act applies an approval-chain decision on behalf of a staff member.
func (s *Service) Act(ctx context.Context, actor staff.Actor, id string, action Action, notes string) (*Entity, error) {
	notes = strings.TrimSpace(notes)
	if (action == ActionDecline || action == ActionFlag) && notes == "" {
		return nil, ErrNotesRequired
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := current.State()
	to, err := Transition(from, actor.Role, action)
	if err != nil {
		return nil, err
	}

	at := s.now()
	payload, _ := json.Marshal(map[string]any{
		"event":           TopicStatusChanged,
		"application_id":  current.ID,
		"user_id":         current.UserID,
		"role":            actor.Role,
		"action":          action,
		"previous_status": from.Status,
		"new_status":      to.Status,
		"at":              at.Format(time.RFC3339),
	})
	updated, err := s.repo.ApplyTransition(ctx, TransitionInput{
		ApplicationID: current.ID,
		Actor:         actor,
		Action:        action,
		From:          from,
		To:            to,
		Notes:         notes,
		At:            at,
		EventPayload:  payload,
	})
	if err != nil {
		return nil, err
	}
	observability.RecordTransition(string(actor.Role), string(action), string(to.Status))
	return updated, nil
}

var exportHeader = []string{
	"id", "created_at", "full_name", "email", "phone", "bvn", "product_code",
	"amount_requested", "repayment_months", "status", "stage",
	"credit_approved_at", "audit_approved_at", "coo_approved_at",
}

// ExportCSV writes every application matching the filter, newest first.
func (s *Service) ExportCSV(ctx context.Context, f ListFilter, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}

	f.Limit = exportPageSize
	f.Offset = 0
	for {
		items, err := s.repo.List(ctx, f)
		if err != nil {
			return err
		}
		for _, e := range items {
			if err := cw.Write(exportRow(e)); err != nil {
				return err
			}
		}
		if int32(len(items)) < f.Limit {
			break
		}
		f.Offset += f.Limit
	}
	cw.Flush()
	return cw.Error()
}

func exportRow(e Entity) []string {
	return []string{
		e.ID,
		e.CreatedAt.UTC().Format(time.RFC3339),
		e.Applicant.FullName,
		e.Applicant.Email,
		e.Applicant.Phone,
		e.Applicant.BVN,
		e.ProductCode,
		FormatNaira(e.AmountRequestedMinor),
		strconv.Itoa(int(e.RepaymentMonths)),
		string(e.Status),
		string(e.State().Stage()),
		formatOptionalTime(e.CreditApproval.At),
		formatOptionalTime(e.AuditApproval.At),
		formatOptionalTime(e.COOApproval.At),
	}
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func normalizeApplicant(a Applicant) Applicant {
	a.FullName = strings.TrimSpace(a.FullName)
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	a.Phone = strings.ReplaceAll(strings.TrimSpace(a.Phone), " ", "")
	a.BVN = strings.TrimSpace(a.BVN)
	a.NIN = strings.TrimSpace(a.NIN)
	return a
}

func validateSubmission(in SubmitInput, owner string) *kyc.FieldError {
	a := in.Applicant
	for _, f := range []struct{ name, value string }{
		{"applicant.full_name", a.FullName},
		{"applicant.address", a.Address},
		{"applicant.state", a.State},
		{"applicant.occupation", a.Occupation},
		{"documents.passport_photo_path", in.Documents.PassportPhotoPath},
		{"documents.id_document_path", in.Documents.IDDocumentPath},
		{"disbursement.bank_name", in.Disbursement.BankName},
		{"disbursement.account_name", in.Disbursement.AccountName},
		{"guarantor.full_name", in.Guarantor.FullName},
		{"guarantor.relationship", in.Guarantor.Relationship},
		{"guarantor.signature_path", in.Guarantor.SignaturePath},
	} {
		if fe := kyc.Required(f.name, f.value); fe != nil {
			return fe
		}
	}
	if !kyc.ValidEmail(a.Email) {
		return &kyc.FieldError{Field: "applicant.email", Message: "invalid email"}
	}
	if !kyc.ValidPhone(a.Phone) {
		return &kyc.FieldError{Field: "applicant.phone", Message: "invalid phone number"}
	}
	if !kyc.ValidBVN(a.BVN) {
		return &kyc.FieldError{Field: "applicant.bvn", Message: "must be 11 digits"}
	}
	if !kyc.ValidNIN(a.NIN) {
		return &kyc.FieldError{Field: "applicant.nin", Message: "must be 11 digits"}
	}
	if a.MonthlyIncomeMinor < 0 {
		return &kyc.FieldError{Field: "applicant.monthly_income_minor", Message: "must not be negative"}
	}

	product, err := LookupProduct(in.ProductCode)
	if err != nil {
		return &kyc.FieldError{Field: "product_code", Message: err.Error()}
	}
	if in.AmountRequestedMinor <= 0 || in.AmountRequestedMinor > product.PriceMinor {
		return &kyc.FieldError{Field: "amount_requested_minor", Message: ErrAmountOutOfRange.Error()}
	}
	if !ValidTerm(in.RepaymentMonths) {
		return &kyc.FieldError{Field: "repayment_months", Message: "must be 9 or 12"}
	}
	if !kyc.ValidAccountNumber(in.Disbursement.AccountNumber) {
		return &kyc.FieldError{Field: "disbursement.account_number", Message: "must be 10 digits"}
	}

	g := in.Guarantor
	if !kyc.ValidPhone(g.Phone) {
		return &kyc.FieldError{Field: "guarantor.phone", Message: "invalid phone number"}
	}
	if !kyc.ValidBVN(g.BVN) {
		return &kyc.FieldError{Field: "guarantor.bvn", Message: "must be 11 digits"}
	}
	if strings.TrimSpace(g.BVN) == strings.TrimSpace(a.BVN) {
		return &kyc.FieldError{Field: "guarantor.bvn", Message: "guarantor must be a different person"}
	}
	if g.NIN != "" && !kyc.ValidNIN(g.NIN) {
		return &kyc.FieldError{Field: "guarantor.nin", Message: "must be 11 digits"}
	}

	for _, p := range []struct{ name, value string }{
		{"documents.passport_photo_path", in.Documents.PassportPhotoPath},
		{"documents.id_document_path", in.Documents.IDDocumentPath},
		{"documents.utility_bill_path", in.Documents.UtilityBillPath},
		{"documents.bank_statement_path", in.Documents.BankStatementPath},
		{"guarantor.signature_path", g.SignaturePath},
	} {
		if p.value != "" && !document.OwnedBy(p.value, owner) {
			return &kyc.FieldError{Field: p.name, Message: "file does not belong to the applicant"}
		}
	}
	return nil
}
