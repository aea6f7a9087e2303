package account

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/lumenmfb/backend/internal/domain/document"
	"github.com/lumenmfb/backend/internal/domain/kyc"
	"github.com/lumenmfb/backend/internal/domain/staff"
	"github.com/lumenmfb/backend/internal/observability"
)

const TopicReviewed = "account_application.reviewed"

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) Submit(ctx context.Context, userID string, in CreateInput) (*Entity, error) {
	in.UserID = userID
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.ReplaceAll(strings.TrimSpace(in.Phone), " ", "")
	if in.AccountType == "" {
		in.AccountType = TypeSavings
	}
	if fe := validate(in); fe != nil {
		return nil, fe
	}
	return s.repo.Create(ctx, in)
}

func (s *Service) GetMine(ctx context.Context, userID string) (*Entity, error) {
	return s.repo.GetByUser(ctx, userID)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Entity, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, id string) (*Entity, error) {
	return s.repo.GetByID(ctx, id)
}

// Review approves or declines a pending account application. Only
// operations and the managing director review account applications.
func (s *Service) Review(ctx context.Context, actor staff.Actor, id string, decision Status, notes string) (*Entity, error) {
	if actor.Role != staff.RoleOperations && actor.Role != staff.RoleManagingDirector {
		return nil, ErrForbidden
	}
	if decision != StatusApproved && decision != StatusDeclined {
		return nil, ErrInvalidDecision
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusPending {
		return nil, ErrAlreadyReviewed
	}

	at := s.now()
	payload, _ := json.Marshal(map[string]any{
		"event":                  TopicReviewed,
		"account_application_id": current.ID,
		"user_id":                current.UserID,
		"role":                   actor.Role,
		"new_status":             decision,
		"at":                     at.Format(time.RFC3339),
	})
	updated, err := s.repo.Review(ctx, ReviewInput{
		ApplicationID: id,
		Actor:         actor,
		Decision:      decision,
		Notes:         strings.TrimSpace(notes),
		At:            at,
		EventPayload:  payload,
	})
	if err != nil {
		return nil, err
	}
	observability.RecordTransition(string(actor.Role), "review", string(decision))
	return updated, nil
}

func validate(in CreateInput) *kyc.FieldError {
	for _, f := range []struct{ name, value string }{
		{"full_name", in.FullName},
		{"date_of_birth", in.DateOfBirth},
		{"address", in.Address},
		{"passport_photo_path", in.PassportPhotoPath},
		{"signature_path", in.SignaturePath},
		{"id_document_path", in.IDDocumentPath},
	} {
		if fe := kyc.Required(f.name, f.value); fe != nil {
			return fe
		}
	}
	if _, err := time.Parse(time.DateOnly, in.DateOfBirth); err != nil {
		return &kyc.FieldError{Field: "date_of_birth", Message: "expected YYYY-MM-DD"}
	}
	if !kyc.ValidEmail(in.Email) {
		return &kyc.FieldError{Field: "email", Message: "invalid email"}
	}
	if !kyc.ValidPhone(in.Phone) {
		return &kyc.FieldError{Field: "phone", Message: "invalid phone number"}
	}
	if in.AccountType != TypeSavings && in.AccountType != TypeCurrent {
		return &kyc.FieldError{Field: "account_type", Message: "must be savings or current"}
	}
	if !kyc.ValidBVN(in.BVN) {
		return &kyc.FieldError{Field: "bvn", Message: "must be 11 digits"}
	}
	if !kyc.ValidNIN(in.NIN) {
		return &kyc.FieldError{Field: "nin", Message: "must be 11 digits"}
	}
	for _, p := range []struct{ name, value string }{
		{"passport_photo_path", in.PassportPhotoPath},
		{"signature_path", in.SignaturePath},
		{"id_document_path", in.IDDocumentPath},
	} {
		if !document.OwnedBy(p.value, in.UserID) {
			return &kyc.FieldError{Field: p.name, Message: "file does not belong to the applicant"}
		}
	}
	return nil
}
