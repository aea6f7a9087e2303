package application

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownProduct   = errors.New("unknown_product")
	ErrInvalidTerm      = errors.New("invalid_repayment_months")
	ErrAmountOutOfRange = errors.New("amount_out_of_range")
)

// RepaymentTerms are the only tenors offered, in months.
var RepaymentTerms = []int32{9, 12}

type Product struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceMinor  int64  `json:"price_minor"`
}

type Installment struct {
	Months       int32  `json:"months"`
	MonthlyMinor int64  `json:"monthly_minor"`
	Monthly      string `json:"monthly"`
}

type Quote struct {
	Product
	Price        string        `json:"price"`
	Installments []Installment `json:"installments"`
}

var catalogue = []Product{
	{
		Code:        "solar_basic",
		Name:        "Solar Home Basic",
		Description: "1kVA inverter, 2x200W panels, 1x200Ah battery",
		PriceMinor:  45_000_000,
	},
	{
		Code:        "solar_premium",
		Name:        "Solar Home Premium",
		Description: "3.5kVA inverter, 6x450W panels, 2x220Ah lithium batteries",
		PriceMinor:  185_000_000,
	},
}

func LookupProduct(code string) (Product, error) {
	for _, p := range catalogue {
		if p.Code == code {
			return p, nil
		}
	}
	return Product{}, ErrUnknownProduct
}

func ValidTerm(months int32) bool {
	for _, m := range RepaymentTerms {
		if m == months {
			return true
		}
	}
	return false
}

// MonthlyInstallment spreads the amount evenly, rounding each instalment up
// to the next kobo so the schedule never under-collects.
func MonthlyInstallment(amountMinor int64, months int32) int64 {
	if months <= 0 {
		return 0
	}
	return decimal.NewFromInt(amountMinor).
		Div(decimal.NewFromInt32(months)).
		Ceil().
		IntPart()
}

// FormatNaira renders kobo as "₦1,234.50".
func FormatNaira(amountMinor int64) string {
	d := decimal.New(amountMinor, -2)
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	whole, frac := s[:len(s)-3], s[len(s)-2:]

	grouped := make([]byte, 0, len(whole)+len(whole)/3)
	for i := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped = append(grouped, ',')
		}
		grouped = append(grouped, whole[i])
	}
	out := "₦" + string(grouped) + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

func Quotes() []Quote {
	out := make([]Quote, 0, len(catalogue))
	for _, p := range catalogue {
		q := Quote{Product: p, Price: FormatNaira(p.PriceMinor)}
		for _, m := range RepaymentTerms {
			monthly := MonthlyInstallment(p.PriceMinor, m)
			q.Installments = append(q.Installments, Installment{Months: m, MonthlyMinor: monthly, Monthly: FormatNaira(monthly)})
		}
		out = append(out, q)
	}
	return out
}
