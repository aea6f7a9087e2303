package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumenmfb/backend/internal/domain/application"
)

const riskSystemPrompt = `You are a credit risk analyst at a Nigerian microfinance bank.
Assess the loan application you are given. Respond with:
1. Overall risk level (Low, Medium or High) with a one-line justification.
2. Affordability: the monthly installment against the applicant's stated income.
3. Guarantor strength.
4. Red flags or inconsistencies in the data.
5. A recommendation: approve, decline, or request more information.
Be concise and factual. Do not invent data that is not provided.`

type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

type RiskAnalyzer struct {
	llm Completer
}

func NewRiskAnalyzer(llm Completer) *RiskAnalyzer {
	return &RiskAnalyzer{llm: llm}
}

func (r *RiskAnalyzer) Analyze(ctx context.Context, app *application.Entity) (string, error) {
	return r.llm.Complete(ctx, []Message{
		{Role: "system", Content: riskSystemPrompt},
		{Role: "user", Content: RiskPrompt(app)},
	})
}

// RiskPrompt renders the application facts the analyst sees. Identity numbers
// are left out.
func RiskPrompt(app *application.Entity) string {
	var b strings.Builder
	a := app.Applicant
	installment := application.MonthlyInstallment(app.AmountRequestedMinor, app.RepaymentMonths)

	fmt.Fprintf(&b, "Loan application %s\n\n", app.ID)
	b.WriteString("Applicant\n")
	fmt.Fprintf(&b, "- Name: %s\n", a.FullName)
	fmt.Fprintf(&b, "- Date of birth: %s\n", orNA(a.DateOfBirth))
	fmt.Fprintf(&b, "- Location: %s, %s\n", orNA(a.LGA), orNA(a.State))
	fmt.Fprintf(&b, "- Occupation: %s\n", orNA(a.Occupation))
	fmt.Fprintf(&b, "- Employer: %s\n", orNA(a.Employer))
	fmt.Fprintf(&b, "- Monthly income: %s\n", application.FormatNaira(a.MonthlyIncomeMinor))

	b.WriteString("\nLoan\n")
	fmt.Fprintf(&b, "- Product: %s\n", app.ProductCode)
	fmt.Fprintf(&b, "- Amount requested: %s\n", application.FormatNaira(app.AmountRequestedMinor))
	fmt.Fprintf(&b, "- Repayment: %d months\n", app.RepaymentMonths)
	fmt.Fprintf(&b, "- Monthly installment: %s\n", application.FormatNaira(installment))
	fmt.Fprintf(&b, "- Current status: %s\n", app.Status)

	b.WriteString("\nGuarantor\n")
	if g := app.Guarantor; g != nil {
		fmt.Fprintf(&b, "- Name: %s\n", g.FullName)
		fmt.Fprintf(&b, "- Relationship: %s\n", orNA(g.Relationship))
		fmt.Fprintf(&b, "- Occupation: %s\n", orNA(g.Occupation))
		fmt.Fprintf(&b, "- Monthly income: %s\n", application.FormatNaira(g.MonthlyIncomeMinor))
	} else {
		b.WriteString("- None on record\n")
	}
	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "not provided"
	}
	return s
}
