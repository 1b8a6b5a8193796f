// Package sales owns checkout: the single transaction that prices a cart,
// consumes stock first-expired-first-out, settles payment against the drawer
// or the customer credit ledger, and persists the numbered sale.
package sales

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-retail/meridian/internal/shared"
)

// Status lifecycle for a sale. Returns move a completed sale through
// PARTIALLY_RETURNED to RETURNED.
type Status string

const (
	StatusCompleted         Status = "COMPLETED"
	StatusPartiallyReturned Status = "PARTIALLY_RETURNED"
	StatusReturned          Status = "RETURNED"
)

// Method enumerates settlement methods. CARD and MOBILE_MONEY are full
// non-cash tenders recorded as drawer settlements; PARTIAL splits the total
// between an up-front tender and customer credit.
type Method string

const (
	MethodCash        Method = "CASH"
	MethodCard        Method = "CARD"
	MethodMobileMoney Method = "MOBILE_MONEY"
	MethodCredit      Method = "CREDIT"
	MethodPartial     Method = "PARTIAL"
)

// Sale is the persisted checkout result.
type Sale struct {
	ID            int64           `json:"id"`
	OrgID         int64           `json:"org_id"`
	Number        string          `json:"number"`
	LocationID    int64           `json:"location_id"`
	CustomerID    int64           `json:"customer_id,omitempty"`
	CashierID     int64           `json:"cashier_id"`
	Status        Status          `json:"status"`
	Method        Method          `json:"method"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	TaxTotal      decimal.Decimal `json:"tax_total"`
	Total         decimal.Decimal `json:"total"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	ChangeDue     decimal.Decimal `json:"change_due"`
	InvoiceID     int64           `json:"invoice_id,omitempty"`
	Items         []Item          `json:"items,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Item is one sold line. Returns read Quantity and the priced amounts to
// bound and value refunds.
type Item struct {
	ID        int64           `json:"id"`
	SaleID    int64           `json:"sale_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	LineTotal decimal.Decimal `json:"line_total"`
}

var (
	// ErrSaleNotFound indicates the sale does not exist.
	ErrSaleNotFound = fmt.Errorf("sales: sale %w", shared.ErrNotFound)
	// ErrEmptyCart rejects checkouts without lines.
	ErrEmptyCart = errors.New("sales: cart is empty")
	// ErrInsufficientPayment indicates the tendered cash does not cover the
	// total.
	ErrInsufficientPayment = errors.New("sales: tendered amount below total")
	// ErrCustomerRequired indicates a credit settlement without a customer.
	ErrCustomerRequired = errors.New("sales: credit settlement requires a customer")
	// ErrInvalidMethod indicates an unknown settlement method.
	ErrInvalidMethod = errors.New("sales: invalid settlement method")
)
