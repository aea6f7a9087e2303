package account

import (
	"context"
	"testing"
	"time"

	"github.com/lumenmfb/backend/internal/domain/kyc"
	"github.com/lumenmfb/backend/internal/domain/staff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repoMock struct {
	byID    map[string]*Entity
	reviews []ReviewInput
}

func newRepoMock() *repoMock { return &repoMock{byID: map[string]*Entity{}} }

func (m *repoMock) Create(_ context.Context, in CreateInput) (*Entity, error) {
	for _, e := range m.byID {
		if e.UserID == in.UserID {
			return nil, ErrAlreadyExists
		}
	}
	e := &Entity{
		ID:          "acct-" + in.UserID,
		UserID:      in.UserID,
		FullName:    in.FullName,
		Email:       in.Email,
		AccountType: in.AccountType,
		Status:      StatusPending,
	}
	m.byID[e.ID] = e
	return e, nil
}

func (m *repoMock) GetByID(_ context.Context, id string) (*Entity, error) {
	e, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *repoMock) GetByUser(_ context.Context, userID string) (*Entity, error) {
	for _, e := range m.byID {
		if e.UserID == userID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *repoMock) List(_ context.Context, _ ListFilter) ([]Entity, error) {
	out := make([]Entity, 0, len(m.byID))
	for _, e := range m.byID {
		out = append(out, *e)
	}
	return out, nil
}

func (m *repoMock) Review(_ context.Context, in ReviewInput) (*Entity, error) {
	e, ok := m.byID[in.ApplicationID]
	if !ok {
		return nil, ErrNotFound
	}
	if e.Status != StatusPending {
		return nil, ErrAlreadyReviewed
	}
	e.Status = in.Decision
	e.ReviewNotes = in.Notes
	by := in.Actor.UserID
	e.ReviewedBy = &by
	at := in.At
	e.ReviewedAt = &at
	m.reviews = append(m.reviews, in)
	cp := *e
	return &cp, nil
}

func validInput(userID string) CreateInput {
	return CreateInput{
		FullName:          "Ngozi Eze",
		Email:             "ngozi@example.com",
		Phone:             "08012345678",
		DateOfBirth:       "1991-04-12",
		Address:           "4 Marina Road",
		BVN:               "22211122233",
		NIN:               "33322211100",
		PassportPhotoPath: userID + "/passport/p.jpg",
		SignaturePath:     userID + "/signature/s.png",
		IDDocumentPath:    userID + "/id/i.pdf",
	}
}

func TestSubmitDefaultsAndEnforcesOnePerUser(t *testing.T) {
	svc := NewService(newRepoMock())

	out, err := svc.Submit(context.Background(), "user-1", validInput("user-1"))
	require.NoError(t, err)
	assert.Equal(t, TypeSavings, out.AccountType)
	assert.Equal(t, StatusPending, out.Status)

	_, err = svc.Submit(context.Background(), "user-1", validInput("user-1"))
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestSubmitValidation(t *testing.T) {
	svc := NewService(newRepoMock())
	cases := map[string]func(*CreateInput){
		"date_of_birth":  func(in *CreateInput) { in.DateOfBirth = "12/04/1991" },
		"account_type":   func(in *CreateInput) { in.AccountType = "domiciliary" },
		"nin":            func(in *CreateInput) { in.NIN = "abc" },
		"signature_path": func(in *CreateInput) { in.SignaturePath = "someone-else/signature/s.png" },
	}
	for field, mutate := range cases {
		in := validInput("user-1")
		mutate(&in)
		_, err := svc.Submit(context.Background(), "user-1", in)
		var fe *kyc.FieldError
		require.ErrorAs(t, err, &fe, field)
		assert.Equal(t, field, fe.Field)
	}
}

func TestReviewRules(t *testing.T) {
	repo := newRepoMock()
	svc := NewService(repo)
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }
	created, err := svc.Submit(context.Background(), "user-1", validInput("user-1"))
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), staff.Actor{UserID: "c", Role: staff.RoleCredit}, created.ID, StatusApproved, "")
	require.ErrorIs(t, err, ErrForbidden)

	ops := staff.Actor{UserID: "ops-1", Role: staff.RoleOperations}
	_, err = svc.Review(context.Background(), ops, created.ID, StatusPending, "")
	require.ErrorIs(t, err, ErrInvalidDecision)

	out, err := svc.Review(context.Background(), ops, created.ID, StatusApproved, " verified ")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, out.Status)
	assert.Equal(t, "verified", out.ReviewNotes)
	require.Len(t, repo.reviews, 1)
	assert.Contains(t, string(repo.reviews[0].EventPayload), TopicReviewed)

	_, err = svc.Review(context.Background(), ops, created.ID, StatusDeclined, "")
	require.ErrorIs(t, err, ErrAlreadyReviewed)
}
