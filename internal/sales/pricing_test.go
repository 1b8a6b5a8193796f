package sales

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-retail/meridian/internal/shared"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestPriceLineRoundsPerLine(t *testing.T) {
	line, err := PriceLine(1, 3, dec("9.99"), dec("0"), dec("7.5"))
	require.NoError(t, err)
	require.True(t, line.Subtotal.Equal(dec("29.97")))
	require.True(t, line.TaxAmount.Equal(dec("2.25"))) // 29.97 * 7.5% = 2.24775
	require.True(t, line.LineTotal.Equal(dec("32.22")))
}

func TestPriceLineTaxesGrossBeforeDiscount(t *testing.T) {
	line, err := PriceLine(1, 3, dec("10"), dec("5"), dec("10"))
	require.NoError(t, err)
	require.True(t, line.Subtotal.Equal(dec("30")))
	require.True(t, line.TaxAmount.Equal(dec("3.00"))) // tax on 30.00, not 25.00
	require.True(t, line.LineTotal.Equal(dec("28.00")))
}

func TestPriceLineRejectsBadInput(t *testing.T) {
	_, err := PriceLine(1, 0, dec("10"), dec("0"), dec("0"))
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = PriceLine(1, 1, dec("-1"), dec("0"), dec("0"))
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = PriceLine(1, 1, dec("10"), dec("11"), dec("0"))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSumLinesTotalsAreSumsOfRoundedLines(t *testing.T) {
	first, err := PriceLine(1, 3, dec("9.99"), dec("0"), dec("7.5"))
	require.NoError(t, err)
	second, err := PriceLine(2, 1, dec("0.33"), dec("0"), dec("7.5"))
	require.NoError(t, err)

	totals := SumLines([]PricedLine{first, second})
	require.True(t, totals.Subtotal.Equal(dec("30.30")))
	require.True(t, totals.TaxTotal.Equal(first.TaxAmount.Add(second.TaxAmount)))
	require.True(t, totals.Total.Equal(first.LineTotal.Add(second.LineTotal)))
}
