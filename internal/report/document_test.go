package report

import (
	"context"
	"testing"
	"time"

	"github.com/lumenmfb/backend/internal/domain/application"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleApplication() *application.Entity {
	approvedAt := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	return &application.Entity{
		ID: "8d7c8f0e-1a2b-4c3d-9e8f-001122334455",
		Applicant: application.Applicant{
			FullName:           "Ada <script>Obi</script>",
			BVN:                "12345678901",
			MonthlyIncomeMinor: 25_000_000,
		},
		ProductCode:          "solar_basic",
		AmountRequestedMinor: 45_000_000,
		RepaymentMonths:      9,
		Status:               application.StatusUnderReview,
		CreditApproval:       application.Approval{Approved: true, At: &approvedAt},
		Guarantor:            &application.Guarantor{FullName: "Chidi Obi"},
		CreatedAt:            time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestHTMLRendersApplication(t *testing.T) {
	g, err := NewGenerator(nil)
	require.NoError(t, err)

	html, err := g.HTML(g.NewView(sampleApplication(), "https://files/p.png", ""))
	require.NoError(t, err)

	assert.Contains(t, html, "Solar Home Basic")
	assert.Contains(t, html, "₦450,000.00")
	assert.Contains(t, html, "₦50,000.00")
	assert.Contains(t, html, "Under Review")
	assert.Contains(t, html, "Approved 4 Mar 2026")
	assert.Contains(t, html, "•••••••8901")
	assert.NotContains(t, html, "12345678901")
	assert.NotContains(t, html, "<script>Obi")
	assert.Contains(t, html, `src="https://files/p.png"`)
	assert.NotContains(t, html, "Guarantor signature")
}

type fakePDF struct{ html string }

func (f *fakePDF) RenderPDF(_ context.Context, html string) ([]byte, error) {
	f.html = html
	return []byte("%PDF-1.7"), nil
}

func TestPDFRequiresRenderer(t *testing.T) {
	g, err := NewGenerator(nil)
	require.NoError(t, err)
	assert.False(t, g.PDFAvailable())
	_, err = g.PDF(context.Background(), g.NewView(sampleApplication(), "", ""))
	assert.ErrorIs(t, err, ErrRendererUnavailable)

	renderer := &fakePDF{}
	g, err = NewGenerator(renderer)
	require.NoError(t, err)
	out, err := g.PDF(context.Background(), g.NewView(sampleApplication(), "", ""))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(out))
	assert.Contains(t, renderer.html, "<!DOCTYPE html>")
}

func TestMask(t *testing.T) {
	assert.Equal(t, "123", mask("123"))
	assert.Equal(t, "•••••••8901", mask(" 12345678901 "))
}
