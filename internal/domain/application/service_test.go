package application

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/lumenmfb/backend/internal/domain/kyc"
	"github.com/lumenmfb/backend/internal/domain/staff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repoMock struct {
	items       map[string]*Entity
	seq         int
	latestErr   error
	staleOnce   bool
	transitions []TransitionInput
	payloads    [][]byte
	staffIDs    map[string]bool
}

func newRepoMock() *repoMock { return &repoMock{items: map[string]*Entity{}} }

func (m *repoMock) Create(_ context.Context, in CreateInput, payload []byte) (*Entity, error) {
	m.seq++
	e := &Entity{
		ID:                   "app-" + strconv.Itoa(m.seq),
		UserID:               in.UserID,
		CreatedBy:            in.CreatedBy,
		Applicant:            in.Applicant,
		Documents:            in.Documents,
		ProductCode:          in.ProductCode,
		AmountRequestedMinor: in.AmountRequestedMinor,
		RepaymentMonths:      in.RepaymentMonths,
		Disbursement:         in.Disbursement,
		Status:               StatusPending,
		CreatedAt:            time.Date(2026, 1, 1, 0, 0, m.seq, 0, time.UTC),
	}
	g := in.Guarantor
	e.Guarantor = &g
	m.items[e.ID] = e
	m.payloads = append(m.payloads, payload)
	return e, nil
}

func (m *repoMock) GetByID(_ context.Context, id string) (*Entity, error) {
	e, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *repoMock) LatestForUser(_ context.Context, userID string) (*Entity, error) {
	if m.latestErr != nil {
		return nil, m.latestErr
	}
	var latest *Entity
	for _, e := range m.items {
		if e.UserID == userID && (latest == nil || e.CreatedAt.After(latest.CreatedAt)) {
			latest = e
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *repoMock) List(_ context.Context, f ListFilter) ([]Entity, error) {
	var out []Entity
	for _, e := range m.items {
		if f.UserID != "" && e.UserID != f.UserID {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if int(f.Offset) >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && int(f.Limit) < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *repoMock) ApplyTransition(_ context.Context, in TransitionInput) (*Entity, error) {
	if m.staleOnce {
		m.staleOnce = false
		return nil, ErrStaleState
	}
	e, ok := m.items[in.ApplicationID]
	if !ok {
		return nil, ErrNotFound
	}
	if e.State() != in.From {
		return nil, ErrStaleState
	}
	e.Status = in.To.Status
	e.CreditApproval.Approved = in.To.CreditApproved
	e.AuditApproval.Approved = in.To.AuditApproved
	e.COOApproval.Approved = in.To.COOApproved
	if in.To.COOApproved {
		at := in.At
		e.COOApproval.At = &at
	}
	e.DecisionNotes = in.Notes
	m.transitions = append(m.transitions, in)
	cp := *e
	return &cp, nil
}

func (m *repoMock) Stats(_ context.Context) (*Stats, error) {
	return &Stats{Total: int64(len(m.items))}, nil
}

func (m *repoMock) IsCustomer(_ context.Context, userID string) (bool, error) {
	return !m.staffIDs[userID], nil
}

func validSubmission(owner string) SubmitInput {
	return SubmitInput{
		Applicant: Applicant{
			FullName:           "Ada Obi",
			Email:              "Ada@Example.com ",
			Phone:              "+2348012345678",
			Address:            "12 Allen Avenue",
			State:              "Lagos",
			Occupation:         "Trader",
			MonthlyIncomeMinor: 35_000_000,
			BVN:                "22212345678",
			NIN:                "12345678901",
		},
		Documents: Documents{
			PassportPhotoPath: owner + "/passport/a.jpg",
			IDDocumentPath:    owner + "/id/b.pdf",
		},
		ProductCode:          "solar_basic",
		AmountRequestedMinor: 45_000_000,
		RepaymentMonths:      12,
		Disbursement:         Disbursement{BankName: "GTBank", AccountNumber: "0123456789", AccountName: "Ada Obi"},
		Guarantor: Guarantor{
			FullName:      "Chidi Obi",
			Phone:         "08031234567",
			Relationship:  "Brother",
			BVN:           "22298765432",
			SignaturePath: owner + "/signature/c.png",
		},
	}
}

func newTestService(repo Repository, now time.Time) *Service {
	svc := NewService(repo)
	svc.now = func() time.Time { return now }
	return svc
}

func TestSubmitCreatesPendingApplication(t *testing.T) {
	repo := newRepoMock()
	svc := newTestService(repo, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	out, err := svc.Submit(context.Background(), staff.Actor{UserID: "user-1", Role: staff.RoleCustomer}, validSubmission("user-1"))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, out.Status)
	assert.Equal(t, "user-1", out.UserID)
	assert.Equal(t, "ada@example.com", out.Applicant.Email)
	require.Len(t, repo.payloads, 1)
	assert.Contains(t, string(repo.payloads[0]), TopicSubmitted)
}

func TestSubmitRejectsDraftsAndBadInput(t *testing.T) {
	svc := newTestService(newRepoMock(), time.Now())
	customer := staff.Actor{UserID: "user-1", Role: staff.RoleCustomer}

	draft := validSubmission("user-1")
	draft.IsDraft = true
	_, err := svc.Submit(context.Background(), customer, draft)
	require.ErrorIs(t, err, ErrDraftsUnsaved)

	cases := map[string]func(*SubmitInput){
		"applicant.bvn":                 func(in *SubmitInput) { in.Applicant.BVN = "123" },
		"product_code":                  func(in *SubmitInput) { in.ProductCode = "wind_turbine" },
		"amount_requested_minor":        func(in *SubmitInput) { in.AmountRequestedMinor = 45_000_001 },
		"repayment_months":              func(in *SubmitInput) { in.RepaymentMonths = 6 },
		"disbursement.account_number":   func(in *SubmitInput) { in.Disbursement.AccountNumber = "12" },
		"guarantor.signature_path":      func(in *SubmitInput) { in.Guarantor.SignaturePath = "" },
		"documents.passport_photo_path": func(in *SubmitInput) { in.Documents.PassportPhotoPath = "user-2/passport/x.jpg" },
	}
	for field, mutate := range cases {
		in := validSubmission("user-1")
		mutate(&in)
		_, err := svc.Submit(context.Background(), customer, in)
		var fe *kyc.FieldError
		require.ErrorAs(t, err, &fe, field)
		assert.Equal(t, field, fe.Field)
	}

	sameBVN := validSubmission("user-1")
	sameBVN.Guarantor.BVN = sameBVN.Applicant.BVN
	_, err = svc.Submit(context.Background(), customer, sameBVN)
	var fe *kyc.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "guarantor.bvn", fe.Field)
}

func TestSubmitOnBehalfRequiresCreditRole(t *testing.T) {
	repo := newRepoMock()
	svc := newTestService(repo, time.Now())

	in := validSubmission("cust-9")
	in.CustomerID = "cust-9"
	out, err := svc.Submit(context.Background(), staff.Actor{UserID: "officer-1", Role: staff.RoleCredit}, in)
	require.NoError(t, err)
	assert.Equal(t, "cust-9", out.UserID)
	assert.Equal(t, "officer-1", out.CreatedBy)

	_, err = svc.Submit(context.Background(), staff.Actor{UserID: "auditor", Role: staff.RoleAudit}, in)
	require.ErrorIs(t, err, ErrForbidden)

	in.CustomerID = ""
	_, err = svc.Submit(context.Background(), staff.Actor{UserID: "officer-1", Role: staff.RoleCredit}, in)
	var fe *kyc.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "customer_id", fe.Field)
}

func TestSubmitOnBehalfRejectsStaffCustomer(t *testing.T) {
	repo := newRepoMock()
	repo.staffIDs = map[string]bool{"officer-1": true, "coo-1": true}
	svc := newTestService(repo, time.Now())
	officer := staff.Actor{UserID: "officer-1", Role: staff.RoleCredit}

	self := validSubmission("officer-1")
	self.CustomerID = "officer-1"
	_, err := svc.Submit(context.Background(), officer, self)
	require.ErrorIs(t, err, ErrInvalidCustomer)

	colleague := validSubmission("coo-1")
	colleague.CustomerID = "coo-1"
	_, err = svc.Submit(context.Background(), officer, colleague)
	require.ErrorIs(t, err, ErrInvalidCustomer)
	assert.Empty(t, repo.items)
}

func TestSubmitBlocksWhileApplicationOpen(t *testing.T) {
	repo := newRepoMock()
	svc := newTestService(repo, time.Now())
	customer := staff.Actor{UserID: "user-1", Role: staff.RoleCustomer}

	_, err := svc.Submit(context.Background(), customer, validSubmission("user-1"))
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), customer, validSubmission("user-1"))
	require.ErrorIs(t, err, ErrNotEligible)
	var ne *NotEligibleError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, ReasonInProgress, ne.Eligibility.Reason)
}

func TestEligibilityFailsOpenButSubmitFailsClosed(t *testing.T) {
	repo := newRepoMock()
	repo.latestErr = errors.New("connection reset")
	svc := newTestService(repo, time.Now())

	verdict, err := svc.Eligibility(context.Background(), "user-1")
	require.Error(t, err)
	assert.True(t, verdict.Eligible)
	assert.True(t, verdict.CheckFailed)

	_, err = svc.Submit(context.Background(), staff.Actor{UserID: "user-1", Role: staff.RoleCustomer}, validSubmission("user-1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotEligible)
	assert.Empty(t, repo.items)
}

func TestActWalksTheChainAndRecordsEvents(t *testing.T) {
	repo := newRepoMock()
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)
	created, err := svc.Submit(context.Background(), staff.Actor{UserID: "user-1", Role: staff.RoleCustomer}, validSubmission("user-1"))
	require.NoError(t, err)

	for _, role := range []staff.Role{staff.RoleCredit, staff.RoleAudit, staff.RoleCOO} {
		_, err := svc.Act(context.Background(), staff.Actor{UserID: "staff-" + string(role), Role: role}, created.ID, ActionApprove, "")
		require.NoError(t, err, role)
	}

	got, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
	require.NotNil(t, got.COOApproval.At)
	assert.Equal(t, now, *got.COOApproval.At)
	require.Len(t, repo.transitions, 3)
	assert.Contains(t, string(repo.transitions[2].EventPayload), `"new_status":"approved"`)

	verdict, err := svc.Eligibility(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, verdict.Eligible)
	assert.Equal(t, ReasonCooldown, verdict.Reason)
}

func TestActValidation(t *testing.T) {
	repo := newRepoMock()
	svc := newTestService(repo, time.Now())
	created, err := svc.Submit(context.Background(), staff.Actor{UserID: "user-1", Role: staff.RoleCustomer}, validSubmission("user-1"))
	require.NoError(t, err)
	credit := staff.Actor{UserID: "officer", Role: staff.RoleCredit}

	_, err = svc.Act(context.Background(), credit, created.ID, ActionDecline, "   ")
	require.ErrorIs(t, err, ErrNotesRequired)

	_, err = svc.Act(context.Background(), staff.Actor{UserID: "coo", Role: staff.RoleCOO}, created.ID, ActionApprove, "")
	require.ErrorIs(t, err, ErrNotYourStage)

	_, err = svc.Act(context.Background(), credit, "missing", ActionApprove, "")
	require.ErrorIs(t, err, ErrNotFound)

	repo.staleOnce = true
	_, err = svc.Act(context.Background(), credit, created.ID, ActionApprove, "")
	require.ErrorIs(t, err, ErrStaleState)

	out, err := svc.Act(context.Background(), credit, created.ID, ActionDecline, "income unverifiable")
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, out.Status)
	assert.Equal(t, "income unverifiable", out.DecisionNotes)
}

func TestGetForActorHidesOtherCustomers(t *testing.T) {
	repo := newRepoMock()
	svc := newTestService(repo, time.Now())
	created, err := svc.Submit(context.Background(), staff.Actor{UserID: "user-1", Role: staff.RoleCustomer}, validSubmission("user-1"))
	require.NoError(t, err)

	_, err = svc.GetForActor(context.Background(), staff.Actor{UserID: "user-2", Role: staff.RoleCustomer}, created.ID)
	require.ErrorIs(t, err, ErrNotFound)

	got, err := svc.GetForActor(context.Background(), staff.Actor{UserID: "auditor", Role: staff.RoleAudit}, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestExportCSVPagesThroughResults(t *testing.T) {
	repo := newRepoMock()
	for i := 0; i < exportPageSize+3; i++ {
		id := "app-" + strconv.Itoa(i)
		repo.items[id] = &Entity{
			ID:                   id,
			UserID:               "u",
			ProductCode:          "solar_basic",
			AmountRequestedMinor: 45_000_000,
			RepaymentMonths:      9,
			Status:               StatusPending,
			CreatedAt:            time.Unix(int64(i), 0),
		}
	}
	svc := newTestService(repo, time.Now())

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(context.Background(), ListFilter{}, &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, exportPageSize+4)
	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, "₦450,000.00", rows[1][7])
	assert.Equal(t, "credit", rows[1][10])
}
