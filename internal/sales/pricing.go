package sales

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meridian-retail/meridian/internal/shared"
)

// PricedLine is one cart line after pricing: amounts are rounded to two
// decimals per line, and the sale totals are sums of the rounded lines, so
// the stored sale always reproduces from its items.
type PricedLine struct {
	ProductID int64
	Quantity  int64
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
	TaxRate   decimal.Decimal
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	LineTotal decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// PriceLine computes one line: tax on the gross subtotal, then the discount
// comes off. The discount applies to the whole line, not per unit, and does
// not shrink the tax base.
func PriceLine(productID int64, quantity int64, unitPrice, discount, taxRate decimal.Decimal) (PricedLine, error) {
	if quantity <= 0 {
		return PricedLine{}, fmt.Errorf("%w: quantity must be positive", shared.ErrValidation)
	}
	if unitPrice.IsNegative() || discount.IsNegative() {
		return PricedLine{}, fmt.Errorf("%w: price and discount cannot be negative", shared.ErrValidation)
	}
	subtotal := unitPrice.Mul(decimal.NewFromInt(quantity)).Round(2)
	if discount.GreaterThan(subtotal) {
		return PricedLine{}, fmt.Errorf("%w: discount exceeds line subtotal", shared.ErrValidation)
	}
	tax := subtotal.Mul(taxRate).Div(hundred).Round(2)
	return PricedLine{
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Discount:  discount,
		TaxRate:   taxRate,
		Subtotal:  subtotal,
		TaxAmount: tax,
		LineTotal: subtotal.Sub(discount).Add(tax),
	}, nil
}

// Totals are the sale-level sums of rounded lines.
type Totals struct {
	Subtotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	TaxTotal      decimal.Decimal
	Total         decimal.Decimal
}

// SumLines folds priced lines into sale totals.
func SumLines(lines []PricedLine) Totals {
	t := Totals{
		Subtotal:      decimal.Zero,
		DiscountTotal: decimal.Zero,
		TaxTotal:      decimal.Zero,
		Total:         decimal.Zero,
	}
	for _, line := range lines {
		t.Subtotal = t.Subtotal.Add(line.Subtotal)
		t.DiscountTotal = t.DiscountTotal.Add(line.Discount)
		t.TaxTotal = t.TaxTotal.Add(line.TaxAmount)
		t.Total = t.Total.Add(line.LineTotal)
	}
	return t
}
