// Package report renders the printable loan application document.
package report

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/lumenmfb/backend/internal/domain/application"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.html
var templatesFS embed.FS

var ErrRendererUnavailable = errors.New("pdf_renderer_unavailable")

const bankName = "Lumen Microfinance Bank"

// View is everything the document template reads.
type View struct {
	BankName                string
	Application             *application.Entity
	ProductName             string
	MonthlyInstallmentMinor int64
	PassportPhotoURL        string
	GuarantorSignatureURL   string
	GeneratedAt             time.Time
}

// PDFRenderer turns a complete HTML document into PDF bytes.
type PDFRenderer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

type Generator struct {
	tmpl *template.Template
	pdf  PDFRenderer
	now  func() time.Time
}

// NewGenerator parses the embedded template. pdf may be nil, in which case
// only HTML output is available.
func NewGenerator(pdf PDFRenderer) (*Generator, error) {
	tmpl, err := template.New("loan_application.html").Funcs(funcMap()).ParseFS(templatesFS, "templates/loan_application.html")
	if err != nil {
		return nil, fmt.Errorf("parse document template: %w", err)
	}
	return &Generator{tmpl: tmpl, pdf: pdf, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (g *Generator) NewView(app *application.Entity, photoURL, signatureURL string) View {
	name := app.ProductCode
	if p, err := application.LookupProduct(app.ProductCode); err == nil {
		name = p.Name
	}
	return View{
		BankName:                bankName,
		Application:             app,
		ProductName:             name,
		MonthlyInstallmentMinor: application.MonthlyInstallment(app.AmountRequestedMinor, app.RepaymentMonths),
		PassportPhotoURL:        photoURL,
		GuarantorSignatureURL:   signatureURL,
		GeneratedAt:             g.now(),
	}
}

func (g *Generator) HTML(v View) (string, error) {
	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render document: %w", err)
	}
	return buf.String(), nil
}

func (g *Generator) PDFAvailable() bool { return g.pdf != nil }

func (g *Generator) PDF(ctx context.Context, v View) ([]byte, error) {
	if g.pdf == nil {
		return nil, ErrRendererUnavailable
	}
	html, err := g.HTML(v)
	if err != nil {
		return nil, err
	}
	return g.pdf.RenderPDF(ctx, html)
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"naira":          application.FormatNaira,
		"formatDate":     func(t time.Time) string { return t.Format("2 January 2006") },
		"formatDateTime": func(t time.Time) string { return t.Format("2 Jan 2006 15:04 MST") },
		"string":         func(s application.Status) string { return strings.ReplaceAll(string(s), "_", " ") },
		"title":          func(s string) string { return cases.Title(language.English).String(s) },
		"mask":           mask,
		"approval": func(a application.Approval) string {
			if !a.Approved {
				return "Pending"
			}
			if a.At != nil {
				return "Approved " + a.At.Format("2 Jan 2006")
			}
			return "Approved"
		},
	}
}

// mask keeps the last four characters of an identity number.
func mask(v string) string {
	v = strings.TrimSpace(v)
	if len(v) <= 4 {
		return v
	}
	return strings.Repeat("•", len(v)-4) + v[len(v)-4:]
}
