package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lumenmfb/backend/internal/domain/application"
	"github.com/lumenmfb/backend/internal/domain/document"
	"github.com/lumenmfb/backend/internal/domain/staff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memApplications is an application.Repository over a map. Users listed in
// staff hold a role row.
type memApplications struct {
	mu    sync.Mutex
	items map[string]*application.Entity
	staff map[string]bool
	seq   int
}

func (m *memApplications) Create(_ context.Context, in application.CreateInput, _ []byte) (*application.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	g := in.Guarantor
	e := &application.Entity{
		ID:                   "app-" + strconv.Itoa(m.seq),
		UserID:               in.UserID,
		CreatedBy:            in.CreatedBy,
		Applicant:            in.Applicant,
		Documents:            in.Documents,
		ProductCode:          in.ProductCode,
		AmountRequestedMinor: in.AmountRequestedMinor,
		RepaymentMonths:      in.RepaymentMonths,
		Disbursement:         in.Disbursement,
		Status:               application.StatusPending,
		CreatedAt:            time.Now(),
		Guarantor:            &g,
	}
	m.items[e.ID] = e
	return e, nil
}

func (m *memApplications) GetByID(_ context.Context, id string) (*application.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok {
		return nil, application.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memApplications) LatestForUser(_ context.Context, userID string) (*application.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.items {
		if e.UserID == userID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, application.ErrNotFound
}

func (m *memApplications) List(context.Context, application.ListFilter) ([]application.Entity, error) {
	return nil, nil
}

func (m *memApplications) ApplyTransition(context.Context, application.TransitionInput) (*application.Entity, error) {
	return nil, application.ErrStaleState
}

func (m *memApplications) Stats(context.Context) (*application.Stats, error) {
	return &application.Stats{}, nil
}

func (m *memApplications) IsCustomer(_ context.Context, userID string) (bool, error) {
	return !m.staff[userID], nil
}

func uploadPath(t *testing.T, h *harness, token, bucket, kind, ownerID string) string {
	t.Helper()
	w := h.do(multipartUploadAs(t, bucket, kind, ownerID, pngBytes(512)), token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var stored document.Stored
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))
	return stored.Path
}

func onBehalfBody(t *testing.T, customerID, photo, id, signature string) *bytes.Reader {
	t.Helper()
	raw, err := json.Marshal(application.SubmitInput{
		CustomerID: customerID,
		Applicant: application.Applicant{
			FullName:           "Ngozi Eze",
			Email:              "ngozi@example.com",
			Phone:              "08012345678",
			Address:            "4 Broad Street",
			State:              "Lagos",
			Occupation:         "Tailor",
			MonthlyIncomeMinor: 20_000_000,
			BVN:                "22211122233",
			NIN:                "11122233344",
		},
		Documents:            application.Documents{PassportPhotoPath: photo, IDDocumentPath: id},
		ProductCode:          "solar_basic",
		AmountRequestedMinor: 30_000_000,
		RepaymentMonths:      9,
		Disbursement:         application.Disbursement{BankName: "Access", AccountNumber: "0987654321", AccountName: "Ngozi Eze"},
		Guarantor: application.Guarantor{
			FullName:      "Emeka Eze",
			Phone:         "08098765432",
			Relationship:  "Husband",
			BVN:           "22299988877",
			SignaturePath: signature,
		},
	})
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func TestCreditOfficerUploadsAndSubmitsForCustomer(t *testing.T) {
	repo := &memApplications{items: map[string]*application.Entity{}, staff: map[string]bool{"credit-1": true}}
	h := buildHarness(t, fakeStreamer{}, application.NewService(repo))
	officer := h.token(t, "credit-1", staff.RoleCredit)

	photo := uploadPath(t, h, officer, "passport-photos", "passport", "cust-9")
	id := uploadPath(t, h, officer, "documents", "id", "cust-9")
	signature := uploadPath(t, h, officer, "signatures", "signature", "cust-9")
	assert.True(t, strings.HasPrefix(photo, "cust-9/passport/"))
	assert.True(t, strings.HasPrefix(signature, "cust-9/signature/"))

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/loan-applications", onBehalfBody(t, "cust-9", photo, id, signature))
	req.Header.Set("Content-Type", "application/json")
	w := h.do(req, officer)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created application.Entity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "cust-9", created.UserID)
	assert.Equal(t, "credit-1", created.CreatedBy)
	assert.Equal(t, application.StatusPending, created.Status)
}

func TestCreditOfficerCannotSubmitForSelf(t *testing.T) {
	repo := &memApplications{items: map[string]*application.Entity{}, staff: map[string]bool{"credit-1": true, "audit-1": true}}
	h := buildHarness(t, fakeStreamer{}, application.NewService(repo))
	officer := h.token(t, "credit-1", staff.RoleCredit)

	photo := uploadPath(t, h, officer, "passport-photos", "passport", "")
	id := uploadPath(t, h, officer, "documents", "id", "")
	signature := uploadPath(t, h, officer, "signatures", "signature", "")

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/loan-applications", onBehalfBody(t, "credit-1", photo, id, signature))
	req.Header.Set("Content-Type", "application/json")
	w := h.do(req, officer)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_customer", errorCode(t, w))

	req = httptest.NewRequest(http.MethodPost, "/v1/admin/loan-applications", onBehalfBody(t, "audit-1", "audit-1/passport/a.png", "audit-1/id/b.png", "audit-1/signature/c.png"))
	req.Header.Set("Content-Type", "application/json")
	w = h.do(req, officer)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_customer", errorCode(t, w))
	assert.Empty(t, repo.items)
}

func TestOnlyCreditMayUploadForAnotherUser(t *testing.T) {
	h := newHarness(t, fakeStreamer{})

	w := h.do(multipartUploadAs(t, "passport-photos", "passport", "user-2", pngBytes(256)), h.token(t, "user-1", staff.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", errorCode(t, w))

	w = h.do(multipartUploadAs(t, "passport-photos", "passport", "user-2", pngBytes(256)), h.token(t, "ops-1", staff.RoleOperations))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(multipartUploadAs(t, "passport-photos", "passport", "user-1", pngBytes(256)), h.token(t, "user-1", staff.RoleCustomer))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestSignedURLServedByLocalFiles(t *testing.T) {
	h := newHarness(t, fakeStreamer{})
	customer := h.token(t, "user-1", staff.RoleCustomer)
	photo := uploadPath(t, h, customer, "passport-photos", "passport", "")

	w := h.do(httptest.NewRequest(http.MethodGet, "/v1/uploads/signed-url?bucket=passport-photos&path="+url.QueryEscape(photo), nil), customer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var signed document.SignedURL
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &signed))

	u, err := url.Parse(signed.URL)
	require.NoError(t, err)
	w = h.do(httptest.NewRequest(http.MethodGet, u.RequestURI(), nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes(512), w.Body.Bytes())

	w = h.do(httptest.NewRequest(http.MethodGet, u.Path+"?expires=1", nil), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "url_expired", errorCode(t, w))
}
