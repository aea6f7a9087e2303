package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthlyInstallmentRoundsUp(t *testing.T) {
	assert.Equal(t, int64(5_000_000), MonthlyInstallment(45_000_000, 9))
	assert.Equal(t, int64(15_416_667), MonthlyInstallment(185_000_000, 12))
	assert.Equal(t, int64(0), MonthlyInstallment(100, 0))
}

func TestFormatNaira(t *testing.T) {
	assert.Equal(t, "₦0.00", FormatNaira(0))
	assert.Equal(t, "₦1.05", FormatNaira(105))
	assert.Equal(t, "₦999.99", FormatNaira(99_999))
	assert.Equal(t, "₦1,234.50", FormatNaira(123_450))
	assert.Equal(t, "₦1,850,000.00", FormatNaira(185_000_000))
	assert.Equal(t, "-₦12.00", FormatNaira(-1200))
}

func TestQuotesCoverCatalogue(t *testing.T) {
	quotes := Quotes()
	require.Len(t, quotes, 2)
	for _, q := range quotes {
		require.Len(t, q.Installments, len(RepaymentTerms))
		assert.Equal(t, FormatNaira(q.PriceMinor), q.Price)
	}

	_, err := LookupProduct("solar_premium")
	require.NoError(t, err)
	_, err = LookupProduct("diesel")
	require.ErrorIs(t, err, ErrUnknownProduct)
	assert.True(t, ValidTerm(9))
	assert.False(t, ValidTerm(10))
}
